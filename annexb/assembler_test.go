package annexb

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/esdecoder"
)

var (
	h264SPS   = []byte{0x67, 0x42, 0xc0, 0x1e}
	h264PPS   = []byte{0x68, 0xce, 0x3c, 0x80}
	h264IDR   = []byte{0x65, 0x88, 0x84, 0x21}
	h264P     = []byte{0x41, 0x9a, 0x22, 0x11}
	h264PCont = []byte{0x41, 0x1a, 0x22, 0x11}
	h264AUD   = []byte{0x09, 0xf0}

	hevcVPS  = []byte{0x40, 0x01, 0x0c, 0x01}
	hevcSPS  = []byte{0x42, 0x01, 0x01, 0x01}
	hevcPPS  = []byte{0x44, 0x01, 0xc1, 0x72}
	hevcIDR  = []byte{0x26, 0x01, 0xaf, 0x09}
	hevcTail = []byte{0x02, 0x01, 0xd0, 0x19}
)

func annexB(startCodeLen int, nals ...[]byte) []byte {
	var buf bytes.Buffer
	for _, nal := range nals {
		buf.Write(make([]byte, startCodeLen-1))
		buf.WriteByte(1)
		buf.Write(nal)
	}
	return buf.Bytes()
}

func parseAll(t *testing.T, a *Assembler, data []byte, chunkSize int) []*esdecoder.AccessUnit {
	var result []*esdecoder.AccessUnit
	for len(data) > 0 {
		piece := data[:min(chunkSize, len(data))]
		data = data[len(piece):]
		for len(piece) > 0 {
			n, au, err := a.Parse(piece)
			require.NoError(t, err)
			require.Greater(t, n, 0)
			piece = piece[n:]
			if au != nil {
				result = append(result, au)
			}
		}
	}
	if au := a.Flush(); au != nil {
		result = append(result, au)
	}
	return result
}

func TestAssemblerH264(t *testing.T) {
	stream := annexB(4, h264SPS, h264PPS, h264IDR, h264P, h264PCont)
	for _, chunkSize := range []int{1, 2, 3, 7, 4096} {
		a, err := NewAssembler(esdecoder.VideoCodecH264)
		require.NoError(t, err)

		aus := parseAll(t, a, stream, chunkSize)
		require.Len(t, aus, 2, "chunk size %d", chunkSize)
		require.Equal(t, annexB(4, h264SPS, h264PPS, h264IDR), aus[0].Data)
		require.True(t, aus[0].KeyFrame)
		require.Equal(t, annexB(4, h264P, h264PCont), aus[1].Data)
		require.False(t, aus[1].KeyFrame)
	}
}

func TestAssemblerAUDBoundary(t *testing.T) {
	a, err := NewAssembler(esdecoder.VideoCodecH264)
	require.NoError(t, err)

	stream := annexB(4, h264AUD, h264IDR, h264AUD, h264P, h264AUD)
	var aus []*esdecoder.AccessUnit
	for len(stream) > 0 {
		n, au, err := a.Parse(stream)
		require.NoError(t, err)
		stream = stream[n:]
		if au != nil {
			aus = append(aus, au)
		}
	}
	// the trailing AUD completes the second access unit without a flush
	require.Len(t, aus, 2)
	require.Equal(t, annexB(4, h264AUD, h264IDR), aus[0].Data)
	require.Equal(t, annexB(4, h264AUD, h264P), aus[1].Data)

	require.Equal(t, annexB(4, h264AUD), a.Flush().Data)
}

func TestAssemblerNormalizesStartCodes(t *testing.T) {
	a, err := NewAssembler(esdecoder.VideoCodecH264)
	require.NoError(t, err)

	stream := append([]byte{0xde, 0xad, 0x00, 0xbe, 0xef}, annexB(3, h264SPS, h264PPS, h264IDR)...)
	stream = append(stream, 0, 0, 0)
	aus := parseAll(t, a, stream, 5)
	require.Len(t, aus, 1)
	require.Equal(t, annexB(4, h264SPS, h264PPS, h264IDR), aus[0].Data)
}

func TestAssemblerHEVC(t *testing.T) {
	a, err := NewAssembler(esdecoder.VideoCodecHEVC)
	require.NoError(t, err)

	aus := parseAll(t, a, annexB(4, hevcVPS, hevcSPS, hevcPPS, hevcIDR, hevcTail, hevcTail), 3)
	require.Len(t, aus, 3)
	require.Equal(t, annexB(4, hevcVPS, hevcSPS, hevcPPS, hevcIDR), aus[0].Data)
	require.True(t, aus[0].KeyFrame)
	require.Equal(t, annexB(4, hevcTail), aus[1].Data)
	require.False(t, aus[1].KeyFrame)
	require.Equal(t, annexB(4, hevcTail), aus[2].Data)
}

func TestAssemblerMaxNALSize(t *testing.T) {
	a, err := NewAssembler(esdecoder.VideoCodecH264)
	require.NoError(t, err)
	a.MaxNALSize = 64

	huge := append([]byte{0x41, 0x9a}, bytes.Repeat([]byte{0xff}, 128)...)
	stream := annexB(4, huge, h264IDR)

	var rejected int
	var aus []*esdecoder.AccessUnit
	for len(stream) > 0 {
		n, au, err := a.Parse(stream)
		if err != nil {
			require.ErrorIs(t, err, esdecoder.ErrDecodeRejected)
			rejected++
		}
		stream = stream[n:]
		if au != nil {
			aus = append(aus, au)
		}
	}
	if au := a.Flush(); au != nil {
		aus = append(aus, au)
	}
	require.Equal(t, 1, rejected)
	require.Len(t, aus, 1)
	require.Equal(t, annexB(4, h264IDR), aus[0].Data)
}

func TestAssemblerReset(t *testing.T) {
	a, err := NewAssembler(esdecoder.VideoCodecH264)
	require.NoError(t, err)

	_, _, err = a.Parse(annexB(4, h264SPS, h264PPS)[:6])
	require.NoError(t, err)
	a.Reset()
	require.Nil(t, a.Flush())
}

func TestAssemblerGarbage(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	garbage := make([]byte, 1000)
	for i := range garbage {
		// no zero bytes, so no accidental start codes
		garbage[i] = byte(rng.Intn(255) + 1)
	}

	a, err := NewAssembler(esdecoder.VideoCodecH264)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		n, _, err := a.Parse(garbage)
		require.NoError(t, err)
		require.Equal(t, len(garbage), n)
	}
	require.Nil(t, a.Flush())
}

func TestNewAssemblerUnknownCodec(t *testing.T) {
	_, err := NewAssembler(esdecoder.VideoCodecUndefined)
	require.Error(t, err)
}

func TestSplitNALUnits(t *testing.T) {
	nals := SplitNALUnits(append([]byte{0xff}, annexB(3, h264SPS, h264PPS)...))
	require.Equal(t, []NALUnit{h264SPS, h264PPS}, nals)

	typ, ok := NALType(esdecoder.VideoCodecH264, nals[0])
	require.True(t, ok)
	require.Equal(t, uint8(H264NALSPS), typ)
	require.False(t, IsVCL(esdecoder.VideoCodecH264, nals[0]))
	require.True(t, IsVCL(esdecoder.VideoCodecHEVC, hevcIDR))

	require.Empty(t, SplitNALUnits([]byte{0xff, 0xfe}))
}
