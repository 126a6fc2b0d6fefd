package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/esdecoder"
)

type workerState uint32

const (
	workerStateIdle = workerState(iota)
	workerStateParsing
	workerStateDraining
	workerStateExiting
)

func (s workerState) String() string {
	switch s {
	case workerStateIdle:
		return "idle"
	case workerStateParsing:
		return "parsing"
	case workerStateDraining:
		return "draining"
	case workerStateExiting:
		return "exiting"
	}
	return fmt.Sprintf("unexpected_worker_state_%d", uint32(s))
}

var errStopRequested = errors.New("stop requested")

// worker is the only user of the engine and the converter until it exits.
type worker struct {
	engine    esdecoder.Engine
	converter esdecoder.ColorConverter
	input     *bufferQueue
	output    *frameQueue
	stats     *statistics

	wakeCh <-chan struct{}
	stopCh <-chan struct{}

	readBufferSize  int
	idleWaitTimeout time.Duration
	maxSendRetries  int
	outputWidth     int
	outputHeight    int

	state   workerState
	lastSeq uint64
}

// run returns nil if the stop was requested, otherwise an error wrapping
// esdecoder.ErrEngineFatal.
func (w *worker) run(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "worker")
	defer func() { logger.Debugf(ctx, "/worker: %v", _err) }()
	defer w.setState(ctx, workerStateExiting)

	timer := time.NewTimer(w.idleWaitTimeout)
	defer timer.Stop()

	for {
		if w.isStopRequested() {
			return nil
		}

		var err error
		buf, endOfStream := w.input.next(ctx, w.readBufferSize)
		switch {
		case endOfStream:
			err = w.endOfStream(ctx)
		case len(buf) > 0:
			w.setState(ctx, workerStateParsing)
			err = w.parse(ctx, buf)
		default:
			w.setState(ctx, workerStateIdle)
			if !w.wait(timer) {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, errStopRequested) {
				return nil
			}
			return err
		}
	}
}

func (w *worker) isStopRequested() bool {
	select {
	case <-w.stopCh:
		return true
	default:
		return false
	}
}

// wait returns false if the stop was requested.
func (w *worker) wait(timer *time.Timer) bool {
	timer.Reset(w.idleWaitTimeout)
	defer timer.Stop()
	select {
	case <-w.stopCh:
		return false
	case <-w.wakeCh:
	case <-timer.C:
	}
	return true
}

func (w *worker) setState(ctx context.Context, state workerState) {
	if w.state == state {
		return
	}
	logger.Tracef(ctx, "worker state: %s -> %s", w.state, state)
	w.state = state
}

func (w *worker) parse(ctx context.Context, buf []byte) error {
	for len(buf) > 0 {
		if w.isStopRequested() {
			return errStopRequested
		}

		n, au, err := w.engine.Parse(buf)
		if err != nil {
			if errors.Is(err, esdecoder.ErrEngineFatal) {
				return fmt.Errorf("unable to parse: %w", err)
			}
			logger.Warnf(ctx, "unable to parse %d bytes: %v", len(buf), err)
			w.stats.AccessUnitsRejected.Add(1)
		}
		if n > len(buf) {
			n = len(buf)
		}
		if n <= 0 && au == nil {
			logger.Warnf(ctx, "the parser made no progress, skipping %d bytes", len(buf))
			w.stats.BytesDropped.Add(uint64(len(buf)))
			return nil
		}
		buf = buf[max(n, 0):]

		if au != nil {
			if err := w.decode(ctx, au); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *worker) decode(ctx context.Context, au *esdecoder.AccessUnit) error {
	w.stats.AccessUnitsParsed.Add(1)
	logger.Tracef(ctx, "access unit: %d bytes, keyframe: %t", len(au.Data), au.KeyFrame)

	for attempt := 0; ; attempt++ {
		err := w.engine.SendAccessUnit(au)
		switch {
		case err == nil:
			w.stats.AccessUnitsSent.Add(1)
			return w.drain(ctx)
		case errors.Is(err, esdecoder.ErrEngineFatal):
			return fmt.Errorf("unable to send the access unit: %w", err)
		case errors.Is(err, esdecoder.ErrBusy):
			if attempt >= w.maxSendRetries {
				logger.Warnf(ctx, "the engine is still busy after %d retries, skipping the access unit of %d bytes", attempt, len(au.Data))
				w.stats.AccessUnitsRejected.Add(1)
				return w.drain(ctx)
			}
			w.stats.SendRetries.Add(1)
			if err := w.drain(ctx); err != nil {
				return err
			}
		default:
			logger.Warnf(ctx, "the access unit of %d bytes was rejected: %v", len(au.Data), err)
			w.stats.AccessUnitsRejected.Add(1)
			return w.drain(ctx)
		}
	}
}

func (w *worker) drain(ctx context.Context) error {
	w.setState(ctx, workerStateDraining)
	for {
		pic, err := w.engine.ReceivePicture()
		if err != nil {
			switch {
			case errors.Is(err, esdecoder.ErrNoPicture):
				return nil
			case errors.Is(err, esdecoder.ErrEngineFatal):
				return fmt.Errorf("unable to receive a picture: %w", err)
			default:
				logger.Warnf(ctx, "unable to receive a picture: %v", err)
				w.stats.AccessUnitsRejected.Add(1)
				return nil
			}
		}
		w.publish(ctx, pic)
	}
}

func (w *worker) publish(ctx context.Context, pic esdecoder.Picture) {
	defer pic.Release()
	w.stats.FramesDecoded.Add(1)

	width, height := pic.Width(), pic.Height()
	if width <= 0 || height <= 0 {
		logger.Debugf(ctx, "discarding a picture of %dx%d", width, height)
		w.stats.FramesDiscarded.Add(1)
		return
	}
	if w.outputWidth > 0 && w.outputHeight > 0 {
		width, height = w.outputWidth, w.outputHeight
	}

	pixels, err := w.converter.Convert(ctx, pic, width, height)
	if err != nil {
		logger.Errorf(ctx, "unable to convert the picture of %dx%d: %v", pic.Width(), pic.Height(), err)
		w.stats.ConversionErrors.Add(1)
		return
	}
	if len(pixels) != width*height*4 {
		logger.Errorf(ctx, "the converter returned %d bytes for %dx%d", len(pixels), width, height)
		w.stats.ConversionErrors.Add(1)
		return
	}

	w.lastSeq++
	dropped := w.output.push(ctx, &esdecoder.Frame{
		Seq:    w.lastSeq,
		Width:  width,
		Height: height,
		Pixels: pixels,
	})
	if dropped > 0 {
		logger.Debugf(ctx, "the frame queue is full, dropped %d frames", dropped)
		w.stats.FramesDropped.Add(dropped)
	}
}

func (w *worker) endOfStream(ctx context.Context) error {
	logger.Debugf(ctx, "end of stream")

	au, err := w.engine.ParseFlush()
	switch {
	case err == nil:
	case errors.Is(err, esdecoder.ErrEngineFatal):
		return fmt.Errorf("unable to flush the parser: %w", err)
	default:
		logger.Warnf(ctx, "unable to flush the parser: %v", err)
	}
	if au != nil {
		if err := w.decode(ctx, au); err != nil {
			return err
		}
	}

	if err := w.engine.SendEndOfStream(); err != nil {
		if errors.Is(err, esdecoder.ErrEngineFatal) {
			return fmt.Errorf("unable to send the end of stream: %w", err)
		}
		logger.Warnf(ctx, "unable to send the end of stream: %v", err)
	}
	if err := w.drain(ctx); err != nil {
		return err
	}

	if err := w.engine.Reset(); err != nil {
		return fmt.Errorf("unable to reset the engine: %w: %w", esdecoder.ErrEngineFatal, err)
	}
	w.stats.StreamsFlushed.Add(1)
	return nil
}
