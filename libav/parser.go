//go:build with_libav
// +build with_libav

package libav

import (
	"fmt"

	"github.com/xaionaro-go/esdecoder"
	"github.com/xaionaro-go/esdecoder/annexb"
)

// parser splits the elementary stream into access units ahead of the decoder.
type parser struct {
	*annexb.Assembler
}

func newParser(cfg esdecoder.DecoderConfig) (*parser, error) {
	switch cfg.Parser {
	case esdecoder.ParserKindDefault, esdecoder.ParserKindAnnexB:
	default:
		return nil, fmt.Errorf("unknown parser '%s'", cfg.Parser)
	}
	a, err := annexb.NewAssembler(cfg.Codec)
	if err != nil {
		return nil, err
	}
	return &parser{Assembler: a}, nil
}

func (p *parser) Flush() (*esdecoder.AccessUnit, error) {
	return p.Assembler.Flush(), nil
}

func (p *parser) Reset() error {
	p.Assembler.Reset()
	return nil
}
