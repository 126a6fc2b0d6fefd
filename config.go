package esdecoder

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultReadBufferSize  = 4096
	DefaultIdleWaitTimeout = 10 * time.Millisecond
	DefaultMaxQueuedFrames = 64
	DefaultMaxSendRetries  = 16
)

type Config struct {
	Decoder DecoderConfig `json:"decoder,omitempty" yaml:"decoder,omitempty"`

	// LogLevel overrides the level of the logger found in the context; empty means inherit.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	// ReadBufferSize is the maximal amount of bytes taken from the head of the
	// input queue per parsing round.
	ReadBufferSize  int           `json:"read_buffer_size,omitempty"  yaml:"read_buffer_size,omitempty"`
	IdleWaitTimeout time.Duration `json:"idle_wait_timeout,omitempty" yaml:"idle_wait_timeout,omitempty"`

	// MaxQueuedBytes caps the input queue, zero means unbounded. Chunks that
	// do not fit are dropped.
	MaxQueuedBytes uint64 `json:"max_queued_bytes,omitempty" yaml:"max_queued_bytes,omitempty"`

	// MaxQueuedFrames caps the output queue, the oldest frame is dropped when
	// it is full. Zero means DefaultMaxQueuedFrames, negative means unbounded.
	MaxQueuedFrames int `json:"max_queued_frames,omitempty" yaml:"max_queued_frames,omitempty"`

	MaxSendRetries int `json:"max_send_retries,omitempty" yaml:"max_send_retries,omitempty"`

	// OutputWidth and OutputHeight enable scaling if both are set.
	OutputWidth      int              `json:"output_width,omitempty"      yaml:"output_width,omitempty"`
	OutputHeight     int              `json:"output_height,omitempty"     yaml:"output_height,omitempty"`
	ScalingAlgorithm ScalingAlgorithm `json:"scaling_algorithm,omitempty" yaml:"scaling_algorithm,omitempty"`
}

type DecoderConfig struct {
	Codec    VideoCodec `json:"codec,omitempty"     yaml:"codec,omitempty"`
	Parser   ParserKind `json:"parser,omitempty"    yaml:"parser,omitempty"`
	LowDelay bool       `json:"low_delay,omitempty" yaml:"low_delay,omitempty"`
	Threads  int        `json:"threads,omitempty"   yaml:"threads,omitempty"`

	HardwareDeviceTypeName string `json:"hardware_device_type_name,omitempty" yaml:"hardware_device_type_name,omitempty"`
	HardwareDeviceName     string `json:"hardware_device_name,omitempty"      yaml:"hardware_device_name,omitempty"`

	CustomOptions CustomOptions `json:"-" yaml:"-"`
}

func (cfg DecoderConfig) GetCustomOptions() CustomOptions {
	return cfg.CustomOptions
}

func (cfg Config) WithDefaults() Config {
	if cfg.ReadBufferSize == 0 {
		cfg.ReadBufferSize = DefaultReadBufferSize
	}
	if cfg.IdleWaitTimeout == 0 {
		cfg.IdleWaitTimeout = DefaultIdleWaitTimeout
	}
	if cfg.MaxQueuedFrames == 0 {
		cfg.MaxQueuedFrames = DefaultMaxQueuedFrames
	}
	if cfg.MaxSendRetries == 0 {
		cfg.MaxSendRetries = DefaultMaxSendRetries
	}
	return cfg
}

func (cfg Config) Validate() error {
	var result *multierror.Error
	switch cfg.Decoder.Codec {
	case VideoCodecH264, VideoCodecHEVC:
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported codec '%s'", cfg.Decoder.Codec))
	}
	switch cfg.Decoder.Parser {
	case ParserKindDefault, ParserKindAnnexB:
	default:
		result = multierror.Append(result, fmt.Errorf("unknown parser '%s'", cfg.Decoder.Parser))
	}
	switch cfg.ScalingAlgorithm {
	case ScalingAlgorithmDefault, ScalingAlgorithmNearest, ScalingAlgorithmBilinear, ScalingAlgorithmCatmullRom:
	default:
		result = multierror.Append(result, fmt.Errorf("unknown scaling algorithm '%s'", cfg.ScalingAlgorithm))
	}
	if cfg.ReadBufferSize < 0 {
		result = multierror.Append(result, fmt.Errorf("negative read buffer size: %d", cfg.ReadBufferSize))
	}
	if cfg.IdleWaitTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("negative idle wait timeout: %v", cfg.IdleWaitTimeout))
	}
	if cfg.MaxSendRetries < 0 {
		result = multierror.Append(result, fmt.Errorf("negative amount of send retries: %d", cfg.MaxSendRetries))
	}
	if cfg.OutputWidth < 0 || cfg.OutputHeight < 0 {
		result = multierror.Append(result, fmt.Errorf("negative output resolution: %dx%d", cfg.OutputWidth, cfg.OutputHeight))
	}
	if (cfg.OutputWidth == 0) != (cfg.OutputHeight == 0) {
		result = multierror.Append(result, fmt.Errorf("output width and height should be set together, got %dx%d", cfg.OutputWidth, cfg.OutputHeight))
	}
	if _, err := cfg.LoggerLevel(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// LoggerLevel returns logger.LevelUndefined if the level is not overridden.
func (cfg Config) LoggerLevel() (logger.Level, error) {
	if cfg.LogLevel == "" {
		return logger.LevelUndefined, nil
	}
	var level logger.Level
	if err := level.Set(cfg.LogLevel); err != nil {
		return logger.LevelUndefined, fmt.Errorf("unable to parse logging level '%s': %w", cfg.LogLevel, err)
	}
	return level, nil
}

// OutputResolution returns the requested scaled resolution, if any.
func (cfg Config) OutputResolution() (int, int, bool) {
	if cfg.OutputWidth <= 0 || cfg.OutputHeight <= 0 {
		return 0, 0, false
	}
	return cfg.OutputWidth, cfg.OutputHeight, true
}

func LoadConfig(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "unable to read the config file '%s'", path)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "unable to parse the config file '%s'", path)
	}
	return cfg, nil
}

type VideoCodec uint

const (
	VideoCodecUndefined = VideoCodec(iota)
	VideoCodecH264
	VideoCodecHEVC
	EndOfVideoCodec
)

func (vc VideoCodec) String() string {
	switch vc {
	case VideoCodecUndefined:
		return "<undefined>"
	case VideoCodecH264:
		return "h264"
	case VideoCodecHEVC:
		return "hevc"
	}
	return fmt.Sprintf("unexpected_video_codec_id_%d", uint(vc))
}

func (vc VideoCodec) MarshalText() ([]byte, error) {
	return []byte(vc.String()), nil
}

func (vc *VideoCodec) UnmarshalText(b []byte) error {
	if vc == nil {
		return fmt.Errorf("VideoCodec is nil")
	}
	s := strings.ToLower(strings.TrimSpace(string(b)))
	if s == "h265" {
		s = VideoCodecHEVC.String()
	}
	for cmp := VideoCodecUndefined; cmp < EndOfVideoCodec; cmp++ {
		if cmp.String() == s {
			*vc = cmp
			return nil
		}
	}
	return fmt.Errorf("unknown value of the VideoCodec: '%s'", s)
}

// ParserKind selects how the bitstream is split into access units.
type ParserKind string

const (
	ParserKindDefault = ParserKind("")
	ParserKindAnnexB  = ParserKind("annexb")
)

type ScalingAlgorithm string

const (
	ScalingAlgorithmDefault    = ScalingAlgorithm("")
	ScalingAlgorithmNearest    = ScalingAlgorithm("nearest")
	ScalingAlgorithmBilinear   = ScalingAlgorithm("bilinear")
	ScalingAlgorithmCatmullRom = ScalingAlgorithm("catmullrom")
)
