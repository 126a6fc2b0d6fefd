// Package convert converts pictures to RGBA in pure Go.
package convert

import (
	"context"
	"fmt"
	"image"

	"github.com/xaionaro-go/esdecoder"
	"golang.org/x/image/draw"
)

type Converter struct {
	scaler draw.Scaler
}

var _ esdecoder.ColorConverter = (*Converter)(nil)

func New(algorithm esdecoder.ScalingAlgorithm) (*Converter, error) {
	var scaler draw.Scaler
	switch algorithm {
	case esdecoder.ScalingAlgorithmDefault:
		scaler = draw.ApproxBiLinear
	case esdecoder.ScalingAlgorithmNearest:
		scaler = draw.NearestNeighbor
	case esdecoder.ScalingAlgorithmBilinear:
		scaler = draw.BiLinear
	case esdecoder.ScalingAlgorithmCatmullRom:
		scaler = draw.CatmullRom
	default:
		return nil, fmt.Errorf("unknown scaling algorithm '%s'", algorithm)
	}
	return &Converter{scaler: scaler}, nil
}

// Convert supports pictures implementing esdecoder.ImagePicture. The result
// is a new buffer on each call.
func (c *Converter) Convert(
	ctx context.Context,
	pic esdecoder.Picture,
	width, height int,
) ([]byte, error) {
	imgPic, ok := pic.(esdecoder.ImagePicture)
	if !ok {
		return nil, fmt.Errorf("pictures of type %T are not supported", pic)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target resolution %dx%d", width, height)
	}

	src, err := imgPic.Image()
	if err != nil {
		return nil, fmt.Errorf("unable to get the image: %w", err)
	}
	srcRect := src.Bounds()

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	if srcRect.Dx() == width && srcRect.Dy() == height {
		draw.Draw(dst, dst.Rect, src, srcRect.Min, draw.Src)
	} else {
		c.scaler.Scale(dst, dst.Rect, src, srcRect, draw.Src, nil)
	}
	return dst.Pix, nil
}

func (c *Converter) Close() error {
	return nil
}

// Picture adapts an image.Image to esdecoder.ImagePicture.
type Picture struct {
	Img image.Image
}

var _ esdecoder.ImagePicture = Picture{}

func (p Picture) Width() int {
	return p.Img.Bounds().Dx()
}

func (p Picture) Height() int {
	return p.Img.Bounds().Dy()
}

func (Picture) Release() {}

func (p Picture) Image() (image.Image, error) {
	return p.Img, nil
}
