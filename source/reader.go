// Package source feeds elementary stream bytes into decoders.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/facebookincubator/go-belt/tool/logger"
)

const DefaultChunkSize = 4096

type Submitter interface {
	Submit(ctx context.Context, b []byte)
}

// FeedReader submits the content of "r" in chunks of up to chunkSize bytes
// until EOF. It returns the amount of submitted bytes.
func FeedReader(
	ctx context.Context,
	r io.Reader,
	chunkSize int,
	dst Submitter,
) (_ret int64, _err error) {
	logger.Debugf(ctx, "FeedReader(ctx, %T, %d)", r, chunkSize)
	defer func() { logger.Debugf(ctx, "/FeedReader: %d %v", _ret, _err) }()

	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var total int64
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := r.Read(buf)
		if n > 0 {
			dst.Submit(ctx, buf[:n])
			total += int64(n)
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return total, nil
		default:
			return total, fmt.Errorf("unable to read: %w", err)
		}
	}
}
