// Package pipeline implements an asynchronous decoder of elementary video
// streams: compressed bytes are submitted by producers, a single background
// worker parses, decodes and converts them, and RGBA frames are polled by
// consumers.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/asticode/go-astikit"
	"github.com/davecgh/go-spew/spew"
	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/google/uuid"
	"github.com/xaionaro-go/esdecoder"
	"github.com/xaionaro-go/esdecoder/internal"
	"github.com/xaionaro-go/esdecoder/libav"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xcontext"
)

type State uint32

const (
	StateRunning = State(iota)
	StateStopRequested
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopRequested:
		return "stop_requested"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("unexpected_state_%d", uint32(s))
}

type Pipeline struct {
	id     uuid.UUID
	logger logger.Logger
	state  atomic.Uint32
	stats  *statistics

	input  *bufferQueue
	output *frameQueue

	wakeCh     chan struct{}
	stopCh     chan struct{}
	workerDone chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
	closer       *astikit.Closer
}

var _ esdecoder.Decoder = (*Pipeline)(nil)

// New creates the engine and the color converter and starts the worker.
// All the errors are wrapping esdecoder.ErrInitFailed.
func New(
	ctx context.Context,
	cfg esdecoder.Config,
	opts ...Option,
) (_ret *Pipeline, _err error) {
	logger.Debugf(ctx, "New(ctx, %s)", cfg.Decoder.Codec)
	defer func() { logger.Debugf(ctx, "/New: %v", _err) }()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid config: %w", esdecoder.ErrInitFailed, err)
	}
	cfg = cfg.WithDefaults()

	id := uuid.New()
	l := logger.FromCtx(ctx)
	if level, _ := cfg.LoggerLevel(); level != logger.LevelUndefined {
		l = l.WithLevel(level)
	}
	l = l.WithField("pipeline_id", id.String())
	ctx = logger.CtxWithLogger(ctx, l)
	logger.Tracef(ctx, "config: %s", spew.Sdump(cfg))

	o := Options(opts).config()
	if o.EngineFactory == nil {
		o.EngineFactory = libav.Factory{}.NewEngine
	}

	closer := astikit.NewCloser()
	defer func() {
		if _err != nil {
			if err := closer.Close(); err != nil {
				logger.Errorf(ctx, "unable to release the resources: %v", err)
			}
		}
	}()

	converter := o.ColorConverter
	if converter == nil {
		var err error
		converter, err = libav.Factory{}.NewColorConverter(ctx, cfg.ScalingAlgorithm)
		if err != nil {
			return nil, fmt.Errorf("%w: unable to initialize the color converter: %w", esdecoder.ErrInitFailed, err)
		}
	}
	closer.AddWithError(converter.Close)

	engine, err := o.EngineFactory(ctx, cfg.Decoder)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to initialize the engine for '%s': %w", esdecoder.ErrInitFailed, cfg.Decoder.Codec, err)
	}
	closer.AddWithError(engine.Close)

	p := &Pipeline{
		id:         id,
		logger:     l,
		stats:      &statistics{},
		input:      newBufferQueue(cfg.MaxQueuedBytes),
		output:     newFrameQueue(cfg.MaxQueuedFrames),
		wakeCh:     make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		workerDone: make(chan struct{}),
		closer:     closer,
	}
	p.state.Store(uint32(StateRunning))

	input, output, stats := p.input, p.output, p.stats
	closer.Add(func() {
		ctx := context.Background()
		input.release(ctx)
		output.release(ctx)
	})

	w := &worker{
		engine:          engine,
		converter:       converter,
		input:           input,
		output:          output,
		stats:           stats,
		wakeCh:          p.wakeCh,
		stopCh:          p.stopCh,
		readBufferSize:  cfg.ReadBufferSize,
		idleWaitTimeout: cfg.IdleWaitTimeout,
		maxSendRetries:  cfg.MaxSendRetries,
	}
	w.outputWidth, w.outputHeight, _ = cfg.OutputResolution()

	// the worker must not reference the Pipeline, otherwise the finalizer never runs
	workerDone := p.workerDone
	observability.Go(xcontext.DetachDone(ctx), func(ctx context.Context) {
		defer close(workerDone)
		err := w.run(ctx)
		if err == nil {
			return
		}
		errmon.ObserveErrorCtx(ctx, err)
		stats.EngineFailed.Store(true)
		input.release(ctx)
		output.release(ctx)
	})

	internal.SetFinalizerShutdown(ctx, p, func(p *Pipeline) bool {
		return p.State() != StateStopped
	})
	return p, nil
}

// NewH264 is a shorthand for New with the codec set to H.264.
func NewH264(ctx context.Context, cfg esdecoder.Config, opts ...Option) (*Pipeline, error) {
	cfg.Decoder.Codec = esdecoder.VideoCodecH264
	return New(ctx, cfg, opts...)
}

// NewHEVC is a shorthand for New with the codec set to H.265.
func NewHEVC(ctx context.Context, cfg esdecoder.Config, opts ...Option) (*Pipeline, error) {
	cfg.Decoder.Codec = esdecoder.VideoCodecHEVC
	return New(ctx, cfg, opts...)
}

func (p *Pipeline) ID() uuid.UUID {
	return p.id
}

func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) ctx(ctx context.Context) context.Context {
	return logger.CtxWithLogger(ctx, p.logger)
}

func (p *Pipeline) isAcceptingInput() bool {
	return p.State() == StateRunning && !p.stats.EngineFailed.Load()
}

func (p *Pipeline) wake() {
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

// Submit copies "b" into the input queue. It never waits for the worker.
func (p *Pipeline) Submit(ctx context.Context, b []byte) {
	if len(b) == 0 {
		return
	}
	ctx = p.ctx(ctx)
	if !p.isAcceptingInput() {
		logger.Debugf(ctx, "the pipeline is not running, dropping %d bytes", len(b))
		p.stats.BytesDropped.Add(uint64(len(b)))
		return
	}

	buf := make([]byte, len(b))
	copy(buf, b)
	if !p.input.push(ctx, buf) {
		logger.Debugf(ctx, "the input queue is full or released, dropping %d bytes", len(b))
		p.stats.BytesDropped.Add(uint64(len(b)))
		return
	}
	p.stats.BytesSubmitted.Add(uint64(len(b)))
	p.stats.ChunksSubmitted.Add(1)
	p.wake()
}

// TryGetFrame returns the oldest decoded frame or nil. The frame is owned by the caller.
func (p *Pipeline) TryGetFrame(ctx context.Context) *esdecoder.Frame {
	if p.State() == StateStopped {
		return nil
	}
	return p.output.pop(p.ctx(ctx))
}

// Flush makes the worker emit the pictures held back by the parser and the
// engine once it reaches the bytes submitted so far. The engine is then
// ready for a new stream.
func (p *Pipeline) Flush(ctx context.Context) {
	ctx = p.ctx(ctx)
	logger.Debugf(ctx, "Flush")
	defer func() { logger.Debugf(ctx, "/Flush") }()
	if !p.isAcceptingInput() {
		return
	}
	if p.input.pushEndOfStream(ctx) {
		p.wake()
	}
}

// Shutdown stops the worker, waits for it and releases all the resources.
// It is safe to call it multiple times.
func (p *Pipeline) Shutdown(ctx context.Context) (_err error) {
	ctx = p.ctx(ctx)
	logger.Debugf(ctx, "Shutdown")
	defer func() { logger.Debugf(ctx, "/Shutdown: %v", _err) }()

	p.shutdownOnce.Do(func() {
		p.state.CompareAndSwap(uint32(StateRunning), uint32(StateStopRequested))
		close(p.stopCh)
		<-p.workerDone
		if err := p.closer.Close(); err != nil {
			p.shutdownErr = fmt.Errorf("unable to release the resources: %w", err)
		}
		p.state.Store(uint32(StateStopped))
	})
	return p.shutdownErr
}

func (p *Pipeline) Stats() esdecoder.Stats {
	stats := p.stats.Convert()
	stats.QueuedBytes, stats.QueuedChunks = p.input.depth()
	stats.QueuedFrames = p.output.len()
	return stats
}
