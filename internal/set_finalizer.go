package internal

import (
	"context"
	"runtime"

	"github.com/facebookincubator/go-belt/tool/logger"
)

type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// SetFinalizerShutdown shuts "obj" down when it is garbage collected while
// isRunning still reports true.
func SetFinalizerShutdown[T Shutdowner](
	ctx context.Context,
	obj T,
	isRunning func(T) bool,
) {
	runtime.SetFinalizer(obj, func(obj T) {
		if !isRunning(obj) {
			return
		}
		logger.Warnf(ctx, "%T was not shut down before being garbage collected", obj)
		if err := obj.Shutdown(ctx); err != nil {
			logger.Errorf(ctx, "unable to shut down %T: %v", obj, err)
		}
	})
}
