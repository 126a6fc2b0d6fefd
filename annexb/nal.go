// Package annexb splits Annex-B H.264/H.265 elementary streams into NAL units
// and access units without decoding them.
package annexb

import (
	"fmt"

	"github.com/xaionaro-go/esdecoder"
)

// H.264 NAL unit types (ITU-T H.264, table 7-1).
const (
	H264NALSlice          = 1
	H264NALSliceIDR       = 5
	H264NALSEI            = 6
	H264NALSPS            = 7
	H264NALPPS            = 8
	H264NALAUD            = 9
	H264NALEndOfSequence  = 10
	H264NALEndOfStream    = 11
	H264NALFiller         = 12
	H264NALPrefix         = 14
	H264NALSubsetSPS      = 15
	H264NALSliceAux       = 19
	H264NALSliceExtension = 20
	h264NALReservedLast   = 18
)

// H.265 NAL unit types (ITU-T H.265, table 7-1).
const (
	HEVCNALIRAPFirst    = 16
	HEVCNALIRAPLast     = 23
	HEVCNALVCLLast      = 31
	HEVCNALVPS          = 32
	HEVCNALSPS          = 33
	HEVCNALPPS          = 34
	HEVCNALAUD          = 35
	HEVCNALEndOfSeq     = 36
	HEVCNALEndOfStream  = 37
	HEVCNALFiller       = 38
	HEVCNALPrefixSEI    = 39
	HEVCNALSuffixSEI    = 40
	hevcNALReservedLast = 55
)

// NALUnit is a NAL unit without its start code.
type NALUnit []byte

type nalSyntax struct {
	headerSize int
	nalType    func(hdr []byte) uint8
	isVCL      func(t uint8) bool
	isKey      func(t uint8) bool
	// startsAU reports if a NAL unit of type t begins a new access unit when
	// the current one already has a picture. For VCL units it also depends on
	// the first bit after the header.
	startsAU func(t uint8, firstSliceBit bool) bool
}

var h264Syntax = nalSyntax{
	headerSize: 1,
	nalType: func(hdr []byte) uint8 {
		return hdr[0] & 0x1f
	},
	isVCL: func(t uint8) bool {
		return t >= H264NALSlice && t <= H264NALSliceIDR
	},
	isKey: func(t uint8) bool {
		return t == H264NALSliceIDR
	},
	startsAU: func(t uint8, firstSliceBit bool) bool {
		switch {
		case t == H264NALSlice, t == 2, t == H264NALSliceIDR:
			// first_mb_in_slice == 0 is coded as a single '1' bit
			return firstSliceBit
		case t == H264NALSEI, t == H264NALSPS, t == H264NALPPS, t == H264NALAUD:
			return true
		case t >= H264NALPrefix && t <= h264NALReservedLast:
			return true
		}
		return false
	},
}

var hevcSyntax = nalSyntax{
	headerSize: 2,
	nalType: func(hdr []byte) uint8 {
		return (hdr[0] >> 1) & 0x3f
	},
	isVCL: func(t uint8) bool {
		return t <= HEVCNALVCLLast
	},
	isKey: func(t uint8) bool {
		return t >= HEVCNALIRAPFirst && t <= HEVCNALIRAPLast
	},
	startsAU: func(t uint8, firstSliceBit bool) bool {
		switch {
		case t <= HEVCNALVCLLast:
			// first_slice_segment_in_pic_flag
			return firstSliceBit
		case t >= HEVCNALVPS && t <= HEVCNALAUD, t == HEVCNALPrefixSEI:
			return true
		case t >= 41 && t <= 44, t >= 48 && t <= hevcNALReservedLast:
			return true
		}
		return false
	},
}

func syntaxFor(codec esdecoder.VideoCodec) (*nalSyntax, error) {
	switch codec {
	case esdecoder.VideoCodecH264:
		return &h264Syntax, nil
	case esdecoder.VideoCodecHEVC:
		return &hevcSyntax, nil
	default:
		return nil, fmt.Errorf("codec '%s' is not supported", codec)
	}
}

// NALType returns the type of the NAL unit or false if it is too short.
func NALType(codec esdecoder.VideoCodec, nal NALUnit) (uint8, bool) {
	s, err := syntaxFor(codec)
	if err != nil || len(nal) < s.headerSize {
		return 0, false
	}
	return s.nalType(nal), true
}

// IsVCL reports if the NAL unit carries slice data.
func IsVCL(codec esdecoder.VideoCodec, nal NALUnit) bool {
	s, err := syntaxFor(codec)
	if err != nil || len(nal) < s.headerSize {
		return false
	}
	return s.isVCL(s.nalType(nal))
}

// SplitNALUnits returns the NAL units of an Annex-B byte sequence. Bytes
// before the first start code are ignored, trailing zero bytes are stripped.
func SplitNALUnits(data []byte) []NALUnit {
	var result []NALUnit
	start := -1
	zeros := 0
	for i, b := range data {
		switch {
		case b == 0:
			zeros++
			continue
		case b == 1 && zeros >= 2:
			if start >= 0 {
				if nal := data[start : i-zeros]; len(nal) > 0 {
					result = append(result, NALUnit(nal))
				}
			}
			start = i + 1
		}
		zeros = 0
	}
	if start >= 0 {
		if nal := data[start : len(data)-zeros]; len(nal) > 0 {
			result = append(result, NALUnit(nal))
		}
	}
	return result
}
