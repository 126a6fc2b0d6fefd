package esdecoder

import (
	"context"
)

type Factory interface {
	NewDecoder(context.Context, Config) (Decoder, error)
}
