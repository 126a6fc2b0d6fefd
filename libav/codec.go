//go:build with_libav
// +build with_libav

package libav

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/esdecoder"
)

type codec struct {
	codec                 *astiav.Codec
	codecContext          *astiav.CodecContext
	hardwareDeviceContext *astiav.HardwareDeviceContext
	hardwarePixelFormat   astiav.PixelFormat
	closer                astikit.Closer
}

func (c *codec) Close() error {
	return c.closer.Close()
}

func codecIDFor(vc esdecoder.VideoCodec) (astiav.CodecID, error) {
	switch vc {
	case esdecoder.VideoCodecH264:
		return astiav.CodecIDH264, nil
	case esdecoder.VideoCodecHEVC:
		return astiav.CodecIDHevc, nil
	default:
		return astiav.CodecIDNone, fmt.Errorf("codec '%s' is not supported", vc)
	}
}

func newDecoderCodec(
	ctx context.Context,
	cfg esdecoder.DecoderConfig,
) (_ret *codec, _err error) {
	logger.Debugf(ctx, "newDecoderCodec(ctx, %s)", cfg.Codec)
	defer func() { logger.Debugf(ctx, "/newDecoderCodec: %v", _err) }()

	c := &codec{}
	defer func() {
		if _err != nil {
			_ = c.Close()
		}
	}()

	codecID, err := codecIDFor(cfg.Codec)
	if err != nil {
		return nil, err
	}

	c.codec = astiav.FindDecoder(codecID)
	if c.codec == nil {
		return nil, fmt.Errorf("unable to find a decoder for codec ID %v", codecID)
	}

	c.codecContext = astiav.AllocCodecContext(c.codec)
	if c.codecContext == nil {
		return nil, fmt.Errorf("unable to allocate codec context")
	}
	c.closer.Add(c.codecContext.Free)

	if cfg.LowDelay {
		c.codecContext.SetFlags(c.codecContext.Flags().Add(astiav.CodecContextFlagLowDelay))
	}
	if cfg.Threads > 0 {
		c.codecContext.SetThreadCount(cfg.Threads)
	}

	var options *astiav.Dictionary
	if items, ok := esdecoder.GetCustomOption[esdecoder.DictionaryItems](cfg.GetCustomOptions()); ok && len(items) > 0 {
		options = astiav.NewDictionary()
		c.closer.Add(options.Free)
		for _, opt := range items {
			logger.Debugf(ctx, "decoder option: '%s' = '%s'", opt.Key, opt.Value)
			if err := options.Set(opt.Key, opt.Value, 0); err != nil {
				return nil, fmt.Errorf("unable to set option '%s': %w", opt.Key, err)
			}
		}
	}

	if cfg.HardwareDeviceTypeName != "" {
		hardwareDeviceType := astiav.FindHardwareDeviceTypeByName(cfg.HardwareDeviceTypeName)
		if hardwareDeviceType == astiav.HardwareDeviceTypeNone {
			return nil, fmt.Errorf("unknown hardware device type '%s'", cfg.HardwareDeviceTypeName)
		}

		c.hardwarePixelFormat = astiav.PixelFormatNone
		for _, p := range c.codec.HardwareConfigs() {
			if p.MethodFlags().Has(astiav.CodecHardwareConfigMethodFlagHwDeviceCtx) && p.HardwareDeviceType() == hardwareDeviceType {
				c.hardwarePixelFormat = p.PixelFormat()
				break
			}
		}
		if c.hardwarePixelFormat == astiav.PixelFormatNone {
			return nil, fmt.Errorf("hardware device type '%v' is not supported by %s", hardwareDeviceType, c.codec.Name())
		}

		c.hardwareDeviceContext, err = astiav.CreateHardwareDeviceContext(
			hardwareDeviceType,
			cfg.HardwareDeviceName,
			nil,
			0,
		)
		if err != nil {
			return nil, fmt.Errorf("unable to create hardware device context: %w", err)
		}
		c.closer.Add(c.hardwareDeviceContext.Free)

		c.codecContext.SetHardwareDeviceContext(c.hardwareDeviceContext)
		c.codecContext.SetPixelFormatCallback(func(pfs []astiav.PixelFormat) astiav.PixelFormat {
			for _, pf := range pfs {
				if pf == c.hardwarePixelFormat {
					return pf
				}
			}

			logger.Errorf(ctx, "unable to find appropriate pixel format")
			return astiav.PixelFormatNone
		})
	}

	if err := c.codecContext.Open(c.codec, options); err != nil {
		return nil, fmt.Errorf("unable to open codec context: %w", err)
	}

	return c, nil
}
