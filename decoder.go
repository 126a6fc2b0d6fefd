package esdecoder

import (
	"context"
)

// Decoder is an asynchronous elementary stream decoder: the producer submits
// compressed bytes, the consumer polls for decoded RGBA frames.
type Decoder interface {
	// Submit never blocks on decoding; bytes submitted after Shutdown are dropped.
	Submit(ctx context.Context, b []byte)

	// TryGetFrame returns the oldest decoded frame or nil if there is none, yet.
	TryGetFrame(ctx context.Context) *Frame

	// Flush marks the end of the currently submitted stream, so that pictures
	// held back by the parser and the decoder are emitted.
	Flush(ctx context.Context)

	Shutdown(ctx context.Context) error
	Stats() Stats
}
