package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/xaionaro-go/xsync"
)

type chunk struct {
	data   []byte
	offset int

	// endOfStream marks the end of the stream submitted so far, see Pipeline.Flush.
	endOfStream bool
}

// bufferQueue is the FIFO of submitted chunks pending consumption by the worker.
type bufferQueue struct {
	locker   xsync.Mutex
	chunks   []*chunk
	released bool

	// maxBytes is zero if the queue is unbounded.
	maxBytes uint64

	// updated under the lock, read without it
	queuedBytes  atomic.Uint64
	queuedChunks atomic.Uint64
}

func newBufferQueue(maxBytes uint64) *bufferQueue {
	return &bufferQueue{
		maxBytes: maxBytes,
	}
}

// push takes the ownership of "b". It returns false if the chunk was dropped.
func (q *bufferQueue) push(ctx context.Context, b []byte) bool {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &q.locker, func() bool {
		if q.released {
			return false
		}
		if q.maxBytes > 0 && q.queuedBytes.Load()+uint64(len(b)) > q.maxBytes {
			return false
		}
		q.chunks = append(q.chunks, &chunk{data: b})
		q.queuedBytes.Add(uint64(len(b)))
		q.queuedChunks.Add(1)
		return true
	})
}

func (q *bufferQueue) pushEndOfStream(ctx context.Context) bool {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &q.locker, func() bool {
		if q.released {
			return false
		}
		q.chunks = append(q.chunks, &chunk{endOfStream: true})
		return true
	})
}

// next returns up to maxSize bytes from the head of the queue. A chunk that
// is consumed partially stays at the head. If the head is an end-of-stream
// marker, it is removed and endOfStream is true.
//
// The returned slice is never modified afterwards.
func (q *bufferQueue) next(ctx context.Context, maxSize int) (_ []byte, endOfStream bool) {
	return xsync.DoR2(xsync.WithNoLogging(ctx, true), &q.locker, func() ([]byte, bool) {
		if len(q.chunks) == 0 {
			return nil, false
		}
		head := q.chunks[0]
		if head.endOfStream {
			q.popHead()
			return nil, true
		}

		b := head.data[head.offset:]
		if maxSize > 0 && len(b) > maxSize {
			b = b[:maxSize]
		}
		head.offset += len(b)
		q.queuedBytes.Add(^uint64(len(b) - 1))
		if head.offset >= len(head.data) {
			q.popHead()
		}
		return b, false
	})
}

func (q *bufferQueue) popHead() {
	if !q.chunks[0].endOfStream {
		q.queuedChunks.Add(^uint64(0))
	}
	q.chunks[0] = nil
	q.chunks = q.chunks[1:]
	if len(q.chunks) == 0 {
		q.chunks = nil
	}
}

func (q *bufferQueue) depth() (bytes uint64, chunks uint64) {
	return q.queuedBytes.Load(), q.queuedChunks.Load()
}

// release drops everything queued; any further push is dropped as well.
func (q *bufferQueue) release(ctx context.Context) {
	q.locker.Do(xsync.WithNoLogging(ctx, true), func() {
		q.chunks = nil
		q.released = true
		q.queuedBytes.Store(0)
		q.queuedChunks.Store(0)
	})
}
