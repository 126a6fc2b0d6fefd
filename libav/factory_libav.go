//go:build with_libav
// +build with_libav

package libav

import (
	"context"

	"github.com/xaionaro-go/esdecoder"
)

func newEngine(ctx context.Context, cfg esdecoder.DecoderConfig) (esdecoder.Engine, error) {
	e, err := NewEngine(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func newColorConverter(_ context.Context, algorithm esdecoder.ScalingAlgorithm) (esdecoder.ColorConverter, error) {
	s, err := NewScaler(algorithm)
	if err != nil {
		return nil, err
	}
	return s, nil
}
