//go:build with_libav
// +build with_libav

package libav

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/esdecoder"
	"github.com/xaionaro-go/esdecoder/convert"
)

type scalerKey struct {
	SourceWidth       int
	SourceHeight      int
	SourcePixelFormat astiav.PixelFormat
	TargetWidth       int
	TargetHeight      int
}

// Scaler converts libav pictures to RGBA with libswscale. The scaling context
// is re-created only when the source or the target format changes. Pictures
// not produced by libav are converted by the pure-Go converter.
type Scaler struct {
	flags    astiav.SoftwareScaleContextFlags
	fallback *convert.Converter

	key            scalerKey
	scaleContext   *astiav.SoftwareScaleContext
	rgbaFrame      *astiav.Frame
	contextChanges uint64
}

var _ esdecoder.ColorConverter = (*Scaler)(nil)

func NewScaler(algorithm esdecoder.ScalingAlgorithm) (*Scaler, error) {
	fallback, err := convert.New(algorithm)
	if err != nil {
		return nil, err
	}

	var flag astiav.SoftwareScaleContextFlag
	switch algorithm {
	case esdecoder.ScalingAlgorithmNearest:
		flag = astiav.SoftwareScaleContextFlagPoint
	case esdecoder.ScalingAlgorithmDefault, esdecoder.ScalingAlgorithmBilinear:
		flag = astiav.SoftwareScaleContextFlagBilinear
	case esdecoder.ScalingAlgorithmCatmullRom:
		flag = astiav.SoftwareScaleContextFlagBicubic
	default:
		return nil, fmt.Errorf("unknown scaling algorithm '%s'", algorithm)
	}

	return &Scaler{
		flags:     astiav.NewSoftwareScaleContextFlags(flag),
		fallback:  fallback,
		rgbaFrame: astiav.AllocFrame(),
	}, nil
}

func (s *Scaler) Convert(
	ctx context.Context,
	pic esdecoder.Picture,
	width, height int,
) ([]byte, error) {
	p, ok := pic.(*Picture)
	if !ok {
		return s.fallback.Convert(ctx, pic, width, height)
	}
	src := p.Frame

	key := scalerKey{
		SourceWidth:       src.Width(),
		SourceHeight:      src.Height(),
		SourcePixelFormat: src.PixelFormat(),
		TargetWidth:       width,
		TargetHeight:      height,
	}
	if s.scaleContext == nil || key != s.key {
		logger.Debugf(ctx, "creating a scaling context: %#+v", key)
		if s.scaleContext != nil {
			s.scaleContext.Free()
			s.scaleContext = nil
		}
		scaleContext, err := astiav.CreateSoftwareScaleContext(
			key.SourceWidth, key.SourceHeight, key.SourcePixelFormat,
			key.TargetWidth, key.TargetHeight, astiav.PixelFormatRgba,
			s.flags,
		)
		if err != nil {
			return nil, fmt.Errorf("unable to create a scaling context for %#+v: %w", key, err)
		}
		s.scaleContext = scaleContext
		s.key = key
		s.contextChanges++
	}

	dst := s.rgbaFrame
	dst.Unref()
	dst.SetWidth(width)
	dst.SetHeight(height)
	dst.SetPixelFormat(astiav.PixelFormatRgba)
	if err := dst.AllocBuffer(1); err != nil {
		return nil, fmt.Errorf("unable to allocate the RGBA frame: %w", err)
	}
	if err := s.scaleContext.ScaleFrame(src, dst); err != nil {
		return nil, fmt.Errorf("unable to scale the frame: %w", err)
	}

	// Bytes copies the data into a new tightly packed buffer
	b, err := dst.Data().Bytes(1)
	if err != nil {
		return nil, fmt.Errorf("unable to copy the RGBA data: %w", err)
	}
	return b, nil
}

// ContextChanges returns how many times the scaling context was (re-)created.
func (s *Scaler) ContextChanges() uint64 {
	return s.contextChanges
}

func (s *Scaler) Close() error {
	if s.scaleContext != nil {
		s.scaleContext.Free()
		s.scaleContext = nil
	}
	if s.rgbaFrame != nil {
		s.rgbaFrame.Free()
		s.rgbaFrame = nil
	}
	return s.fallback.Close()
}
