package esdecoder

import (
	"context"
	"image"
	"io"
)

// AccessUnit is a complete unit of compressed data that the decoder may turn
// into zero or one picture.
type AccessUnit struct {
	Data []byte

	// KeyFrame is set only by parsers that are able to tell it.
	KeyFrame bool
}

// Engine is a stateful parser+decoder for a single elementary stream.
//
// It is driven by a single goroutine and does not need to be thread-safe.
type Engine interface {
	io.Closer

	// Parse consumes a prefix of "in" and returns an access unit if the consumed
	// bytes completed one. A nil access unit with a nil error means more bytes
	// are needed.
	Parse(in []byte) (consumed int, au *AccessUnit, err error)

	// ParseFlush returns the access unit held back by the parser, if any.
	ParseFlush() (*AccessUnit, error)

	// SendAccessUnit returns nil, or an error wrapping ErrBusy,
	// ErrDecodeRejected or ErrEngineFatal.
	SendAccessUnit(au *AccessUnit) error

	// SendEndOfStream switches the decoder into draining mode.
	SendEndOfStream() error

	// ReceivePicture returns an error wrapping ErrNoPicture if no picture is ready.
	ReceivePicture() (Picture, error)

	// Reset makes the engine accept a new stream after it was drained.
	Reset() error
}

type EngineFactory func(ctx context.Context, cfg DecoderConfig) (Engine, error)

// Picture is a decoded picture in the native sample layout of the engine.
type Picture interface {
	Width() int
	Height() int

	// Release returns the picture to the engine; the picture must not be used
	// after that.
	Release()
}

// ImagePicture is a Picture that could be represented as an image.Image.
type ImagePicture interface {
	Picture
	Image() (image.Image, error)
}

// ColorConverter converts pictures into tightly packed RGBA buffers of the
// requested size. The returned buffer is owned by the caller.
type ColorConverter interface {
	io.Closer
	Convert(ctx context.Context, pic Picture, width, height int) ([]byte, error)
}
