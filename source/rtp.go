package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/xaionaro-go/observability"
)

const maxDatagramSize = 65536

// RTPDepacketizer converts RTP packets with H.264 payload (RFC 6184) into
// an Annex-B byte stream. Fragmented NAL units are emitted once complete.
type RTPDepacketizer struct {
	h264    codecs.H264Packet
	lastSeq uint16
	started bool

	PacketsReceived atomic.Uint64
	PacketsLost     atomic.Uint64
}

func NewRTPDepacketizer() *RTPDepacketizer {
	return &RTPDepacketizer{}
}

// Depacketize returns the Annex-B bytes carried by the packet; the result is
// empty while a fragmented NAL unit is incomplete.
func (d *RTPDepacketizer) Depacketize(ctx context.Context, b []byte) ([]byte, error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(b); err != nil {
		return nil, fmt.Errorf("unable to parse the RTP packet: %w", err)
	}
	d.PacketsReceived.Add(1)

	if d.started && pkt.SequenceNumber != d.lastSeq+1 {
		lost := pkt.SequenceNumber - d.lastSeq - 1
		logger.Debugf(ctx, "RTP sequence gap: %d -> %d", d.lastSeq, pkt.SequenceNumber)
		d.PacketsLost.Add(uint64(lost))
	}
	d.lastSeq = pkt.SequenceNumber
	d.started = true

	if len(pkt.Payload) == 0 {
		return nil, nil
	}
	out, err := d.h264.Unmarshal(pkt.Payload)
	if err != nil {
		return nil, fmt.Errorf("unable to depacketize H.264: %w", err)
	}
	return out, nil
}

// ServeRTP reads RTP datagrams from "conn" and submits the depacketized
// stream until the context is cancelled or the connection fails.
func ServeRTP(
	ctx context.Context,
	conn net.PacketConn,
	d *RTPDepacketizer,
	dst Submitter,
) (_err error) {
	logger.Debugf(ctx, "ServeRTP(ctx, %s)", conn.LocalAddr())
	defer func() { logger.Debugf(ctx, "/ServeRTP: %v", _err) }()

	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()
	observability.Go(ctx, func(ctx context.Context) {
		<-ctx.Done()
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Errorf(ctx, "unable to close %s: %v", conn.LocalAddr(), err)
		}
	})

	buf := make([]byte, maxDatagramSize)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("unable to read from %s: %w", conn.LocalAddr(), err)
		}

		out, err := d.Depacketize(ctx, buf[:n])
		if err != nil {
			logger.Warnf(ctx, "%v", err)
			continue
		}
		if len(out) > 0 {
			dst.Submit(ctx, out)
		}
	}
}

// ListenRTP is ServeRTP on a new UDP socket bound to "addr".
func ListenRTP(
	ctx context.Context,
	addr string,
	dst Submitter,
) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("unable to listen '%s': %w", addr, err)
	}
	return ServeRTP(ctx, conn, NewRTPDepacketizer(), dst)
}
