package annexb

import (
	"fmt"

	"github.com/xaionaro-go/esdecoder"
)

// DefaultMaxNALSize limits the memory spent on a stream without start codes.
const DefaultMaxNALSize = 16 << 20

var startCode = []byte{0, 0, 0, 1}

// Assembler re-assembles access units from an Annex-B byte stream fed in
// arbitrary pieces. A NAL unit is only known to be complete when the next
// start code arrives, and an access unit is emitted as soon as the header
// of the first NAL unit of the next access unit is seen.
//
// Emitted access units use 4-byte start codes.
type Assembler struct {
	MaxNALSize int

	syntax *nalSyntax

	// cur is the NAL unit being scanned, including its start code.
	cur    []byte
	inNAL  bool
	zeros  int
	headOK bool

	au       []byte
	auHasVCL bool
	auIsKey  bool
}

func NewAssembler(codec esdecoder.VideoCodec) (*Assembler, error) {
	s, err := syntaxFor(codec)
	if err != nil {
		return nil, err
	}
	return &Assembler{
		MaxNALSize: DefaultMaxNALSize,
		syntax:     s,
	}, nil
}

// Parse consumes a prefix of "in". It returns an access unit if the consumed
// bytes completed one; the rest of "in" should be passed to the next call.
//
// An error wrapping esdecoder.ErrDecodeRejected is returned if a NAL unit
// exceeds MaxNALSize; the NAL unit is dropped and parsing may continue.
func (a *Assembler) Parse(in []byte) (int, *esdecoder.AccessUnit, error) {
	for i, b := range in {
		if b == 1 && a.zeros >= 2 {
			a.cur = append(a.cur, b)
			a.startNAL(len(a.cur) - (a.zeros + 1))
			continue
		}
		if b == 0 {
			a.zeros++
		} else {
			a.zeros = 0
		}
		if !a.inNAL {
			// garbage before the first start code
			if a.zeros > 3 {
				a.zeros = 3
			}
			continue
		}
		a.cur = append(a.cur, b)
		if !a.headOK {
			if au := a.checkHeader(); au != nil {
				return i + 1, au, nil
			}
		}
		if a.MaxNALSize > 0 && len(a.cur) > a.MaxNALSize {
			size := len(a.cur)
			a.dropNAL()
			return i + 1, nil, fmt.Errorf("%w: NAL unit is larger than %d bytes (%d)", esdecoder.ErrDecodeRejected, a.MaxNALSize, size)
		}
	}
	return len(in), nil, nil
}

// Flush completes the pending NAL unit and returns the pending access unit, if any.
func (a *Assembler) Flush() *esdecoder.AccessUnit {
	if a.inNAL {
		end := len(a.cur) - a.zeros
		if end < len(startCode) {
			end = len(startCode)
		}
		a.appendNAL(a.cur[:end])
	}
	au := a.takeAU()
	a.Reset()
	return au
}

// Reset drops all the buffered data.
func (a *Assembler) Reset() {
	a.cur = a.cur[:0]
	a.inNAL = false
	a.zeros = 0
	a.headOK = false
	a.au = nil
	a.auHasVCL = false
	a.auIsKey = false
}

// startNAL is called when a start code ends at the end of a.cur; prevEnd is
// where the previous NAL unit ends.
func (a *Assembler) startNAL(prevEnd int) {
	if a.inNAL {
		a.appendNAL(a.cur[:prevEnd])
	}
	a.cur = append(a.cur[:0], startCode...)
	a.inNAL = true
	a.zeros = 0
	a.headOK = false
}

func (a *Assembler) dropNAL() {
	a.cur = a.cur[:0]
	a.inNAL = false
	a.zeros = 0
	a.headOK = false
}

// checkHeader decides if the current NAL unit starts a new access unit, once
// enough bytes of it are available. It returns the completed access unit.
func (a *Assembler) checkHeader() *esdecoder.AccessUnit {
	payload := a.cur[len(startCode):]
	if len(payload) < a.syntax.headerSize {
		return nil
	}
	t := a.syntax.nalType(payload)
	firstSliceBit := false
	if a.syntax.isVCL(t) {
		if len(payload) < a.syntax.headerSize+1 {
			return nil
		}
		firstSliceBit = payload[a.syntax.headerSize]&0x80 != 0
	}
	a.headOK = true
	if !a.auHasVCL || !a.syntax.startsAU(t, firstSliceBit) {
		return nil
	}
	return a.takeAU()
}

func (a *Assembler) appendNAL(nal []byte) {
	if len(nal) <= len(startCode) {
		return
	}
	t := a.syntax.nalType(nal[len(startCode):])
	if a.syntax.isVCL(t) {
		a.auHasVCL = true
		if a.syntax.isKey(t) {
			a.auIsKey = true
		}
	}
	a.au = append(a.au, nal...)
}

func (a *Assembler) takeAU() *esdecoder.AccessUnit {
	if len(a.au) == 0 {
		return nil
	}
	au := &esdecoder.AccessUnit{
		Data:     a.au,
		KeyFrame: a.auIsKey,
	}
	a.au = nil
	a.auHasVCL = false
	a.auIsKey = false
	return au
}
