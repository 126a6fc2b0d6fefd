package pipeline

import (
	"github.com/xaionaro-go/esdecoder"
)

type Option interface {
	apply(*config)
}

type Options []Option

type config struct {
	EngineFactory  esdecoder.EngineFactory
	ColorConverter esdecoder.ColorConverter
}

func (opts Options) config() config {
	var cfg config
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	return cfg
}

// OptionEngineFactory overrides the engine used by the pipeline; by default
// the libav engine is used.
type OptionEngineFactory esdecoder.EngineFactory

func (opt OptionEngineFactory) apply(cfg *config) {
	cfg.EngineFactory = esdecoder.EngineFactory(opt)
}

// OptionColorConverter overrides the color converter. The pipeline takes the
// ownership of the converter and closes it on Shutdown.
type OptionColorConverter struct {
	esdecoder.ColorConverter
}

func (opt OptionColorConverter) apply(cfg *config) {
	cfg.ColorConverter = opt.ColorConverter
}
