//go:build with_libav
// +build with_libav

package libav

import (
	"fmt"
	"image"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/esdecoder"
)

// Picture is a decoded frame in RAM, owned by the receiver until Release.
type Picture struct {
	*astiav.Frame
}

var _ esdecoder.ImagePicture = (*Picture)(nil)

func (p *Picture) Width() int {
	return p.Frame.Width()
}

func (p *Picture) Height() int {
	return p.Frame.Height()
}

func (p *Picture) Release() {
	p.Frame.Free()
	p.Frame = nil
}

func (p *Picture) Image() (image.Image, error) {
	img, err := p.Frame.Data().GuessImageFormat()
	if err != nil {
		return nil, fmt.Errorf("unable to guess the image format for %s: %w", p.Frame.PixelFormat(), err)
	}
	if err := p.Frame.Data().ToImage(img); err != nil {
		return nil, fmt.Errorf("unable to convert the frame to %T: %w", img, err)
	}
	return img, nil
}
