package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/esdecoder"
)

func TestBufferQueuePartialConsumption(t *testing.T) {
	ctx := context.Background()
	q := newBufferQueue(0)

	require.True(t, q.push(ctx, []byte("0123456789")))
	require.True(t, q.push(ctx, []byte("ab")))
	bytes, chunks := q.depth()
	require.Equal(t, uint64(12), bytes)
	require.Equal(t, uint64(2), chunks)

	b, eos := q.next(ctx, 4)
	require.False(t, eos)
	require.Equal(t, "0123", string(b))
	bytes, chunks = q.depth()
	require.Equal(t, uint64(8), bytes)
	require.Equal(t, uint64(2), chunks)

	b, _ = q.next(ctx, 4)
	require.Equal(t, "4567", string(b))
	b, _ = q.next(ctx, 4)
	require.Equal(t, "89", string(b))
	b, _ = q.next(ctx, 4)
	require.Equal(t, "ab", string(b))

	b, eos = q.next(ctx, 4)
	require.Nil(t, b)
	require.False(t, eos)
	bytes, chunks = q.depth()
	require.Zero(t, bytes)
	require.Zero(t, chunks)
}

func TestBufferQueueEndOfStream(t *testing.T) {
	ctx := context.Background()
	q := newBufferQueue(0)

	require.True(t, q.push(ctx, []byte("abc")))
	require.True(t, q.pushEndOfStream(ctx))
	require.True(t, q.push(ctx, []byte("d")))

	b, eos := q.next(ctx, 0)
	require.Equal(t, "abc", string(b))
	require.False(t, eos)

	b, eos = q.next(ctx, 0)
	require.Nil(t, b)
	require.True(t, eos)

	b, eos = q.next(ctx, 0)
	require.Equal(t, "d", string(b))
	require.False(t, eos)
}

func TestBufferQueueCap(t *testing.T) {
	ctx := context.Background()
	q := newBufferQueue(5)

	require.True(t, q.push(ctx, []byte("abc")))
	require.False(t, q.push(ctx, []byte("def")))
	require.True(t, q.push(ctx, []byte("de")))

	b, _ := q.next(ctx, 0)
	require.Equal(t, "abc", string(b))
	require.True(t, q.push(ctx, []byte("fgh")))
}

func TestBufferQueueRelease(t *testing.T) {
	ctx := context.Background()
	q := newBufferQueue(0)

	require.True(t, q.push(ctx, []byte("abc")))
	q.release(ctx)
	require.False(t, q.push(ctx, []byte("abc")))
	require.False(t, q.pushEndOfStream(ctx))

	b, eos := q.next(ctx, 0)
	require.Nil(t, b)
	require.False(t, eos)
	bytes, chunks := q.depth()
	require.Zero(t, bytes)
	require.Zero(t, chunks)
}

func TestFrameQueue(t *testing.T) {
	ctx := context.Background()
	q := newFrameQueue(2)

	require.Nil(t, q.pop(ctx))
	for seq := uint64(1); seq <= 3; seq++ {
		dropped := q.push(ctx, &esdecoder.Frame{Seq: seq})
		if seq <= 2 {
			require.Zero(t, dropped)
		} else {
			require.Equal(t, uint64(1), dropped)
		}
	}
	require.Equal(t, uint64(2), q.len())
	require.Equal(t, uint64(2), q.pop(ctx).Seq)
	require.Equal(t, uint64(3), q.pop(ctx).Seq)
	require.Nil(t, q.pop(ctx))
	require.Zero(t, q.len())

	q.push(ctx, &esdecoder.Frame{Seq: 4})
	q.release(ctx)
	require.Nil(t, q.pop(ctx))
	require.Equal(t, uint64(1), q.push(ctx, &esdecoder.Frame{Seq: 5}))
	require.Nil(t, q.pop(ctx))
}

func TestFrameQueueUnbounded(t *testing.T) {
	ctx := context.Background()
	q := newFrameQueue(-1)
	for seq := uint64(1); seq <= 1000; seq++ {
		require.Zero(t, q.push(ctx, &esdecoder.Frame{Seq: seq}))
	}
	require.Equal(t, uint64(1000), q.len())
	require.Equal(t, uint64(1), q.pop(ctx).Seq)
}
