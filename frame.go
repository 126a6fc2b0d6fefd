package esdecoder

import (
	"image"
)

// Frame is a decoded picture converted to RGBA.
type Frame struct {
	// Seq is the decode-order sequence number, strictly increasing within a decoder.
	Seq uint64

	Width  int
	Height int

	// Pixels is Width*Height*4 bytes in R, G, B, A order, without row padding.
	Pixels []byte
}

// Image returns an image.RGBA sharing the pixels of the frame.
func (f *Frame) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pixels,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}
