package pipeline

import (
	"context"

	"github.com/xaionaro-go/esdecoder"
)

type Factory struct {
	Options Options
}

var _ esdecoder.Factory = Factory{}

func (f Factory) NewDecoder(
	ctx context.Context,
	cfg esdecoder.Config,
) (esdecoder.Decoder, error) {
	p, err := New(ctx, cfg, f.Options...)
	if err != nil {
		return nil, err
	}
	return p, nil
}
