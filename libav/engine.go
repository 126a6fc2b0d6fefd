//go:build with_libav
// +build with_libav

package libav

import (
	"context"
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/esdecoder"
)

// Engine decodes H.264/H.265 elementary streams with libavcodec.
type Engine struct {
	codec  *codec
	parser *parser
	packet *astiav.Packet
	closer astikit.Closer
}

var _ esdecoder.Engine = (*Engine)(nil)

func NewEngine(
	ctx context.Context,
	cfg esdecoder.DecoderConfig,
) (_ret *Engine, _err error) {
	logger.Debugf(ctx, "NewEngine(ctx, %#+v)", cfg)
	defer func() { logger.Debugf(ctx, "/NewEngine: %v", _err) }()

	e := &Engine{}
	defer func() {
		if _err != nil {
			_ = e.Close()
		}
	}()

	c, err := newDecoderCodec(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the decoder: %w", err)
	}
	e.codec = c
	e.closer.AddWithError(c.Close)

	e.parser, err = newParser(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the parser: %w", err)
	}

	e.packet = astiav.AllocPacket()
	e.closer.Add(e.packet.Free)
	return e, nil
}

func (e *Engine) Close() error {
	return e.closer.Close()
}

func (e *Engine) Parse(in []byte) (int, *esdecoder.AccessUnit, error) {
	return e.parser.Parse(in)
}

func (e *Engine) ParseFlush() (*esdecoder.AccessUnit, error) {
	return e.parser.Flush()
}

func (e *Engine) SendAccessUnit(au *esdecoder.AccessUnit) error {
	defer e.packet.Unref()
	if err := e.packet.FromData(au.Data); err != nil {
		return fmt.Errorf("%w: unable to fill the packet: %w", esdecoder.ErrEngineFatal, err)
	}
	if au.KeyFrame {
		e.packet.SetFlags(e.packet.Flags().Add(astiav.PacketFlagKey))
	}

	err := e.codec.codecContext.SendPacket(e.packet)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, astiav.ErrEagain):
		return fmt.Errorf("%w: %w", esdecoder.ErrBusy, err)
	case isFatal(err):
		return fmt.Errorf("%w: unable to send the packet: %w", esdecoder.ErrEngineFatal, err)
	default:
		return fmt.Errorf("%w: %w", esdecoder.ErrDecodeRejected, err)
	}
}

func (e *Engine) SendEndOfStream() error {
	err := e.codec.codecContext.SendPacket(nil)
	switch {
	case err == nil, errors.Is(err, astiav.ErrEof):
		return nil
	case isFatal(err):
		return fmt.Errorf("%w: unable to enter the draining mode: %w", esdecoder.ErrEngineFatal, err)
	default:
		return fmt.Errorf("unable to enter the draining mode: %w", err)
	}
}

func (e *Engine) ReceivePicture() (_ esdecoder.Picture, _err error) {
	frame := astiav.AllocFrame()
	defer func() {
		if _err != nil {
			frame.Free()
		}
	}()

	err := e.codec.codecContext.ReceiveFrame(frame)
	switch {
	case err == nil:
	case errors.Is(err, astiav.ErrEagain), errors.Is(err, astiav.ErrEof):
		return nil, esdecoder.ErrNoPicture
	case isFatal(err):
		return nil, fmt.Errorf("%w: unable to receive a frame: %w", esdecoder.ErrEngineFatal, err)
	default:
		return nil, fmt.Errorf("%w: %w", esdecoder.ErrDecodeRejected, err)
	}

	if e.codec.hardwareDeviceContext == nil || frame.PixelFormat() != e.codec.hardwarePixelFormat {
		return &Picture{Frame: frame}, nil
	}

	ramFrame := astiav.AllocFrame()
	if err := frame.TransferHardwareData(ramFrame); err != nil {
		ramFrame.Free()
		return nil, fmt.Errorf("%w: failed to transfer frame from hardware decoder to RAM: %w", esdecoder.ErrDecodeRejected, err)
	}
	ramFrame.SetPts(frame.Pts())
	frame.Free()
	return &Picture{Frame: ramFrame}, nil
}

// Reset drops the decoder and the parser state after a drain.
func (e *Engine) Reset() error {
	e.codec.codecContext.FlushBuffers()
	if err := e.parser.Reset(); err != nil {
		return fmt.Errorf("%w: unable to reset the parser: %w", esdecoder.ErrEngineFatal, err)
	}
	return nil
}

func isFatal(err error) bool {
	return errors.Is(err, astiav.ErrBug) || errors.Is(err, astiav.ErrBug2) || errors.Is(err, astiav.ErrExternal)
}
