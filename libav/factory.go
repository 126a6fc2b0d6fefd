package libav

import (
	"context"

	"github.com/xaionaro-go/esdecoder"
)

// Factory creates libav-backed engines and converters. Without the
// "with_libav" build tag the engines are not available and the converters
// are pure-Go.
type Factory struct{}

func (Factory) NewEngine(
	ctx context.Context,
	cfg esdecoder.DecoderConfig,
) (esdecoder.Engine, error) {
	return newEngine(ctx, cfg)
}

func (Factory) NewColorConverter(
	ctx context.Context,
	algorithm esdecoder.ScalingAlgorithm,
) (esdecoder.ColorConverter, error) {
	return newColorConverter(ctx, algorithm)
}
