//go:build !with_libav
// +build !with_libav

package libav

import (
	"context"
	"errors"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/esdecoder"
	"github.com/xaionaro-go/esdecoder/convert"
)

var ErrNotCompiled = errors.New("not compiled with libav support")

func newEngine(context.Context, esdecoder.DecoderConfig) (esdecoder.Engine, error) {
	return nil, ErrNotCompiled
}

func newColorConverter(_ context.Context, algorithm esdecoder.ScalingAlgorithm) (esdecoder.ColorConverter, error) {
	c, err := convert.New(algorithm)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func SetupLogging(ctx context.Context) {
	logger.Debugf(ctx, "not compiled with libav support, nothing to set up")
}

func DisableLogging() {}
