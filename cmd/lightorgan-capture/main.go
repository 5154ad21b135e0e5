// Command lightorgan-capture reads the default microphone and writes one
// base64-encoded chunk of s16le mono PCM per line to stdout. It needs no
// privileges; the privileged renderer consumes its output through a pipe.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"libdb.so/lightorgan/internal/pcmio"
)

var (
	sampleRate = 44100
	updates    = 60
	delay      = time.Duration(0)
	verbose    = false
)

func init() {
	pflag.IntVar(&sampleRate, "sample-rate", sampleRate, "capture sample rate in Hz")
	pflag.IntVar(&updates, "updates", updates, "chunks per second")
	pflag.DurationVar(&delay, "delay", delay, "hold each chunk this long before emitting it")
	pflag.BoolVarP(&verbose, "verbose", "v", verbose, "verbose output")
}

func main() {
	pflag.Parse()

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// timedChunk is one captured chunk plus the earliest time it may be
// emitted. The delay queue compensates for the strip lagging behind the
// speakers, or the other way around.
type timedChunk struct {
	release time.Time
	samples []int16
}

func run() error {
	if updates < 1 {
		return errors.New("updates must be positive")
	}
	chunkSize := sampleRate / updates
	if chunkSize < 1 {
		return fmt.Errorf("%d updates at %d Hz yields no samples per chunk", updates, sampleRate)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := portaudio.Initialize(); err != nil {
		return errors.Wrap(err, "failed to initialize portaudio")
	}
	defer portaudio.Terminate()

	buf := make([]int16, chunkSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), len(buf), buf)
	if err != nil {
		return errors.Wrap(err, "failed to open input stream")
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return errors.Wrap(err, "failed to start input stream")
	}
	defer stream.Stop()

	slog.Debug("capturing",
		"sample_rate", sampleRate,
		"chunk_size", chunkSize,
		"delay", delay)

	out := pcmio.NewWriter(os.Stdout)
	pending := make(chan timedChunk, 4*updates)

	errg, ctx := errgroup.WithContext(ctx)

	errg.Go(func() error {
		defer close(pending)
		for ctx.Err() == nil {
			if err := stream.Read(); err != nil {
				return errors.Wrap(err, "failed to read microphone")
			}
			samples := make([]int16, len(buf))
			copy(samples, buf)

			select {
			case pending <- timedChunk{time.Now().Add(delay), samples}:
			case <-ctx.Done():
			}
		}
		return ctx.Err()
	})

	errg.Go(func() error {
		for chunk := range pending {
			if d := time.Until(chunk.release); d > 0 {
				select {
				case <-time.After(d):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if err := out.WriteChunk(chunk.samples); err != nil {
				return err
			}
		}
		return nil
	})

	return errg.Wait()
}
