//go:build with_libav
// +build with_libav

package libav

import (
	"context"
	"strings"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
)

// SetupLogging routes the libav log messages to the logger of the context.
//
// libav logging is process-wide, so it is up to the application (not the
// decoders) to call this.
func SetupLogging(ctx context.Context) {
	astiav.SetLogLevel(logLevelToAstiav(logger.FromCtx(ctx).Level()))
	astiav.SetLogCallback(func(c astiav.Classer, l astiav.LogLevel, fmt, msg string) {
		msg = strings.TrimSpace(msg)
		if msg == "" {
			return
		}
		var source string
		if c != nil {
			if cl := c.Class(); cl != nil {
				source = cl.Name()
			}
		}
		logger.Logf(ctx, logLevelFromAstiav(l), "libav[%s]: %s", source, msg)
	})
}

// DisableLogging silences libav.
func DisableLogging() {
	astiav.ResetLogCallback()
	astiav.SetLogLevel(astiav.LogLevelQuiet)
}

func logLevelToAstiav(level logger.Level) astiav.LogLevel {
	switch level {
	case logger.LevelUndefined:
		return astiav.LogLevelWarning
	case logger.LevelPanic:
		return astiav.LogLevelPanic
	case logger.LevelFatal:
		return astiav.LogLevelFatal
	case logger.LevelError:
		return astiav.LogLevelError
	case logger.LevelWarning:
		return astiav.LogLevelWarning
	case logger.LevelInfo:
		return astiav.LogLevelInfo
	case logger.LevelDebug:
		return astiav.LogLevelVerbose
	default:
		return astiav.LogLevelDebug
	}
}

func logLevelFromAstiav(level astiav.LogLevel) logger.Level {
	switch {
	case level <= astiav.LogLevelError:
		// logger.LevelPanic and logger.LevelFatal would terminate the process
		return logger.LevelError
	case level <= astiav.LogLevelWarning:
		return logger.LevelWarning
	case level <= astiav.LogLevelInfo:
		return logger.LevelInfo
	case level <= astiav.LogLevelVerbose:
		return logger.LevelDebug
	default:
		return logger.LevelTrace
	}
}
