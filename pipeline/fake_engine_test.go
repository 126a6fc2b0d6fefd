package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/xaionaro-go/esdecoder"
	"github.com/xaionaro-go/esdecoder/annexb"
)

var fakeMagic = []byte("FAKE")

// fakeSlice returns an H.264 slice NAL unit (without the start code) that
// fakeEngine "decodes" into a picture of the given size.
func fakeSlice(idr bool, width, height uint16) []byte {
	hdr := byte(annexb.H264NALSlice | 0x40)
	if idr {
		hdr = annexb.H264NALSliceIDR | 0x60
	}
	b := []byte{hdr, 0x88}
	b = append(b, fakeMagic...)
	b = binary.BigEndian.AppendUint16(b, width)
	b = binary.BigEndian.AppendUint16(b, height)
	// rbsp_trailing_bits, so that the NAL unit never ends with a zero byte
	return append(b, 0x80)
}

var (
	fakeSPS = []byte{0x67, 0x42, 0xc0, 0x1e}
	fakePPS = []byte{0x68, 0xce, 0x3c, 0x80}
	fakeAUD = []byte{0x09, 0xf0}
)

func annexB(nals ...[]byte) []byte {
	var buf bytes.Buffer
	for _, nal := range nals {
		buf.Write([]byte{0, 0, 0, 1})
		buf.Write(nal)
	}
	return buf.Bytes()
}

type fakePicture struct {
	width, height int
	released      *atomic.Int64
}

func (p *fakePicture) Width() int  { return p.width }
func (p *fakePicture) Height() int { return p.height }
func (p *fakePicture) Release()    { p.released.Add(1) }

// fakeEngine parses with the real Annex-B assembler and "decodes" slices
// produced by fakeSlice.
type fakeEngine struct {
	assembler *annexb.Assembler
	pending   []*fakePicture

	// busyEvery makes every n-th send fail with ErrBusy once.
	busyEvery   int
	busyForever bool
	fatalOnSend bool

	sendCount int
	retrying  bool

	Released    atomic.Int64
	CloseCount  atomic.Int64
	EndOfStream atomic.Int64
}

func newFakeEngine() *fakeEngine {
	a, err := annexb.NewAssembler(esdecoder.VideoCodecH264)
	if err != nil {
		panic(err)
	}
	return &fakeEngine{assembler: a}
}

func (e *fakeEngine) factory() esdecoder.EngineFactory {
	return func(ctx context.Context, cfg esdecoder.DecoderConfig) (esdecoder.Engine, error) {
		return e, nil
	}
}

func (e *fakeEngine) Parse(in []byte) (int, *esdecoder.AccessUnit, error) {
	return e.assembler.Parse(in)
}

func (e *fakeEngine) ParseFlush() (*esdecoder.AccessUnit, error) {
	return e.assembler.Flush(), nil
}

func (e *fakeEngine) SendAccessUnit(au *esdecoder.AccessUnit) error {
	if e.fatalOnSend {
		return fmt.Errorf("%w: the handle is corrupted", esdecoder.ErrEngineFatal)
	}
	if e.busyForever {
		return esdecoder.ErrBusy
	}
	if !e.retrying {
		e.sendCount++
		if e.busyEvery > 0 && e.sendCount%e.busyEvery == 0 {
			e.retrying = true
			return esdecoder.ErrBusy
		}
	}
	e.retrying = false

	for _, nal := range annexb.SplitNALUnits(au.Data) {
		if !annexb.IsVCL(esdecoder.VideoCodecH264, nal) {
			continue
		}
		if len(nal) < 11 || !bytes.Equal(nal[2:6], fakeMagic) {
			return fmt.Errorf("%w: not a fake slice", esdecoder.ErrDecodeRejected)
		}
		e.pending = append(e.pending, &fakePicture{
			width:    int(binary.BigEndian.Uint16(nal[6:8])),
			height:   int(binary.BigEndian.Uint16(nal[8:10])),
			released: &e.Released,
		})
		return nil
	}
	return fmt.Errorf("%w: no slices", esdecoder.ErrDecodeRejected)
}

func (e *fakeEngine) SendEndOfStream() error {
	e.EndOfStream.Add(1)
	return nil
}

func (e *fakeEngine) ReceivePicture() (esdecoder.Picture, error) {
	if len(e.pending) == 0 {
		return nil, esdecoder.ErrNoPicture
	}
	pic := e.pending[0]
	e.pending = e.pending[1:]
	return pic, nil
}

func (e *fakeEngine) Reset() error {
	e.assembler.Reset()
	return nil
}

func (e *fakeEngine) Close() error {
	e.CloseCount.Add(1)
	return nil
}

// recordingEngine accepts any bytes and emits a 2x2 picture per Parse call.
type recordingEngine struct {
	locker   sync.Mutex
	recorded []byte
	pending  int

	EndOfStream atomic.Int64
}

func (e *recordingEngine) factory() esdecoder.EngineFactory {
	return func(ctx context.Context, cfg esdecoder.DecoderConfig) (esdecoder.Engine, error) {
		return e, nil
	}
}

func (e *recordingEngine) Parse(in []byte) (int, *esdecoder.AccessUnit, error) {
	e.locker.Lock()
	defer e.locker.Unlock()
	e.recorded = append(e.recorded, in...)
	return len(in), &esdecoder.AccessUnit{Data: in}, nil
}

func (e *recordingEngine) Recorded() []byte {
	e.locker.Lock()
	defer e.locker.Unlock()
	return bytes.Clone(e.recorded)
}

func (e *recordingEngine) ParseFlush() (*esdecoder.AccessUnit, error) { return nil, nil }

func (e *recordingEngine) SendAccessUnit(au *esdecoder.AccessUnit) error {
	e.pending++
	return nil
}

func (e *recordingEngine) SendEndOfStream() error {
	e.EndOfStream.Add(1)
	return nil
}

func (e *recordingEngine) ReceivePicture() (esdecoder.Picture, error) {
	if e.pending == 0 {
		return nil, esdecoder.ErrNoPicture
	}
	e.pending--
	return &fakePicture{width: 2, height: 2, released: &atomic.Int64{}}, nil
}

func (e *recordingEngine) Reset() error { return nil }
func (e *recordingEngine) Close() error { return nil }

// rejectingEngine refuses to parse anything without consuming a byte.
type rejectingEngine struct {
	recordingEngine
}

func (e *rejectingEngine) factory() esdecoder.EngineFactory {
	return func(ctx context.Context, cfg esdecoder.DecoderConfig) (esdecoder.Engine, error) {
		return e, nil
	}
}

func (e *rejectingEngine) Parse(in []byte) (int, *esdecoder.AccessUnit, error) {
	return 0, nil, fmt.Errorf("%w: unparsable", esdecoder.ErrDecodeRejected)
}

type fakeConverter struct {
	failures     atomic.Int64
	shortBuffers atomic.Int64
	CloseCount   atomic.Int64
}

func (c *fakeConverter) Convert(ctx context.Context, pic esdecoder.Picture, width, height int) ([]byte, error) {
	if c.failures.Load() > 0 {
		c.failures.Add(-1)
		return nil, fmt.Errorf("conversion failed")
	}
	if c.shortBuffers.Load() > 0 {
		c.shortBuffers.Add(-1)
		return make([]byte, width*height*4-1), nil
	}
	return bytes.Repeat([]byte{0x10, 0x20, 0x30, 0xff}, width*height), nil
}

func (c *fakeConverter) Close() error {
	c.CloseCount.Add(1)
	return nil
}
