package main

import (
	"context"
	"fmt"
	"image/png"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/esdecoder"
	"github.com/xaionaro-go/esdecoder/libav"
	"github.com/xaionaro-go/esdecoder/pipeline"
	"github.com/xaionaro-go/esdecoder/source"
	"github.com/xaionaro-go/observability"
)

const framePollInterval = 5 * time.Millisecond

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syntax: %s [flags] <file|->\n       %s [flags] --rtp-listen-addr <addr>\n", os.Args[0], os.Args[0])
		pflag.PrintDefaults()
	}

	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	configPath := pflag.String("config", "", "path to a YAML config file")
	codecName := pflag.String("codec", "", "h264 or hevc; overrides the config")
	chunkSize := pflag.Int("chunk-size", source.DefaultChunkSize, "the amount of bytes submitted at once")
	outputDir := pflag.String("output-dir", "", "a directory to write the decoded frames to as PNG files")
	maxFrames := pflag.Uint64("max-frames", 0, "stop after this amount of frames; zero means no limit")
	rtpAddr := pflag.String("rtp-listen-addr", "", "receive H.264 over RTP on this UDP address instead of reading a file")
	pflag.Parse()
	if (*rtpAddr == "") != (len(pflag.Args()) == 1) {
		pflag.Usage()
		os.Exit(1)
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	ctx, cancelFn := signal.NotifyContext(ctx, os.Interrupt)
	defer cancelFn()
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func(ctx context.Context) { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	libav.SetupLogging(ctx)
	defer libav.DisableLogging()

	cfg, err := loadConfig(*configPath, *codecName)
	if err != nil {
		l.Fatal(err)
	}

	if *outputDir != "" {
		if err := os.MkdirAll(*outputDir, 0o755); err != nil {
			l.Fatalf("unable to create '%s': %v", *outputDir, err)
		}
	}

	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		l.Fatal(err)
	}
	defer func() {
		if err := p.Shutdown(ctx); err != nil {
			l.Errorf("the decoder failed: %v", err)
		}
	}()

	feedDone := make(chan error, 1)
	observability.Go(ctx, func(ctx context.Context) {
		defer close(feedDone)
		if *rtpAddr != "" {
			feedDone <- source.ListenRTP(ctx, *rtpAddr, p)
			return
		}
		feedDone <- feedFile(ctx, pflag.Arg(0), *chunkSize, p)
	})

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	poll := time.NewTicker(framePollInterval)
	defer poll.Stop()

	var (
		written       uint64
		feeding       = true
		flushedBefore uint64
	)
	for {
		for frame := p.TryGetFrame(ctx); frame != nil; frame = p.TryGetFrame(ctx) {
			written++
			if *outputDir != "" {
				if err := writeFrame(*outputDir, frame); err != nil {
					l.Error(err)
				}
			}
			if *maxFrames > 0 && written >= *maxFrames {
				printStats(p.Stats())
				return
			}
		}

		stats := p.Stats()
		if stats.EngineFailed {
			printStats(stats)
			return
		}
		if !feeding && stats.StreamsFlushed > flushedBefore && stats.QueuedFrames == 0 {
			printStats(stats)
			return
		}

		select {
		case <-ctx.Done():
			printStats(p.Stats())
			return
		case err, ok := <-feedDone:
			if !ok {
				feedDone = nil
				continue
			}
			if err != nil && ctx.Err() == nil {
				l.Errorf("unable to feed the decoder: %v", err)
			}
			flushedBefore = stats.StreamsFlushed
			p.Flush(ctx)
			feeding = false
		case <-ticker.C:
			printStats(stats)
		case <-poll.C:
		}
	}
}

func loadConfig(path string, codecName string) (esdecoder.Config, error) {
	var cfg esdecoder.Config
	if path != "" {
		var err error
		cfg, err = esdecoder.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
	}
	if codecName != "" {
		if err := cfg.Decoder.Codec.UnmarshalText([]byte(codecName)); err != nil {
			return cfg, err
		}
	}
	if cfg.Decoder.Codec == esdecoder.VideoCodecUndefined {
		cfg.Decoder.Codec = esdecoder.VideoCodecH264
	}
	return cfg, nil
}

func feedFile(
	ctx context.Context,
	path string,
	chunkSize int,
	dst source.Submitter,
) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("unable to open '%s': %w", path, err)
		}
		defer f.Close()
		r = f
	}
	_, err := source.FeedReader(ctx, r, chunkSize, dst)
	return err
}

func writeFrame(dir string, frame *esdecoder.Frame) error {
	path := filepath.Join(dir, fmt.Sprintf("frame_%06d.png", frame.Seq))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create '%s': %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, frame.Image()); err != nil {
		return fmt.Errorf("unable to encode '%s': %w", path, err)
	}
	return nil
}

func printStats(stats esdecoder.Stats) {
	fmt.Printf(
		"submitted:%d queued:%d parsed:%d rejected:%d frames:%d dropped:%d\n",
		stats.BytesSubmitted, stats.QueuedBytes,
		stats.AccessUnitsParsed, stats.AccessUnitsRejected,
		stats.FramesDecoded, stats.FramesDropped,
	)
}
