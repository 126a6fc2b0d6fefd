package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/xaionaro-go/esdecoder"
	"github.com/xaionaro-go/xsync"
)

// frameQueue is the FIFO of converted frames pending retrieval by the consumer.
//
// It has its own lock, so the consumer never contends with the producer
// submitting bytes.
type frameQueue struct {
	locker   xsync.Mutex
	frames   []*esdecoder.Frame
	released bool

	// maxFrames is non-positive if the queue is unbounded.
	maxFrames int

	length atomic.Uint64
}

func newFrameQueue(maxFrames int) *frameQueue {
	return &frameQueue{
		maxFrames: maxFrames,
	}
}

// push appends the frame, dropping the oldest one if the queue is full.
// It returns the amount of dropped frames.
func (q *frameQueue) push(ctx context.Context, f *esdecoder.Frame) uint64 {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &q.locker, func() uint64 {
		if q.released {
			return 1
		}
		var dropped uint64
		for q.maxFrames > 0 && len(q.frames) >= q.maxFrames {
			q.popHead()
			dropped++
		}
		q.frames = append(q.frames, f)
		q.length.Store(uint64(len(q.frames)))
		return dropped
	})
}

// pop returns nil if the queue is empty.
func (q *frameQueue) pop(ctx context.Context) *esdecoder.Frame {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &q.locker, func() *esdecoder.Frame {
		if len(q.frames) == 0 {
			return nil
		}
		f := q.popHead()
		q.length.Store(uint64(len(q.frames)))
		return f
	})
}

func (q *frameQueue) popHead() *esdecoder.Frame {
	f := q.frames[0]
	q.frames[0] = nil
	q.frames = q.frames[1:]
	if len(q.frames) == 0 {
		q.frames = nil
	}
	return f
}

func (q *frameQueue) len() uint64 {
	return q.length.Load()
}

// release drops the queued frames; pop returns nil afterwards.
func (q *frameQueue) release(ctx context.Context) {
	q.locker.Do(xsync.WithNoLogging(ctx, true), func() {
		q.frames = nil
		q.released = true
		q.length.Store(0)
	})
}
