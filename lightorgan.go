// Package lightorgan implements the streaming audio-to-LED pipeline behind a
// light organ: PCM chunks come in over a line-oriented stream, a sliding
// window feeds a spectral analyzer, bin energies fold into per-LED
// brightness, and colors go out to an addressable strip.
package lightorgan

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"libdb.so/lightorgan/internal/bandmap"
	"libdb.so/lightorgan/internal/errs"
	"libdb.so/lightorgan/internal/led"
	"libdb.so/lightorgan/internal/pcmio"
	"libdb.so/lightorgan/internal/spectral"
)

// State is the pipeline lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// queueCap sizes the hand-off channels. Deep enough that the producer never
// blocks at audio rates; depth is monitored and warned about rather than
// bounded, so sustained overload grows latency instead of dropping frames.
const queueCap = 512

// reportInterval is how much audio time passes between utilization reports.
const reportInterval = 5 * time.Second

// Pipeline is the two-stage audio-to-LED coordinator. It owns one spectral
// analyzer, one band mapper and one color renderer, composed from the
// configuration, and drives a Strip with the result.
type Pipeline struct {
	cfg      *Config
	logger   *slog.Logger
	strip    Strip
	window   *spectral.SlidingWindow
	analyzer spectral.Analyzer
	mapper   bandmap.Mapper
	renderer *Renderer
	metrics  *Metrics
	state    atomic.Int32
}

// NewPipeline composes a pipeline from the configuration. All window, mask
// and boundary validation happens here; a pipeline that constructs will not
// fail on setup conditions at runtime.
func NewPipeline(cfg *Config, strip Strip, logger *slog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	if strip.NumPixels() != cfg.LEDCount {
		return nil, errs.Configf(
			"strip has %d pixels but led_count is %d", strip.NumPixels(), cfg.LEDCount)
	}

	window, err := spectral.NewSlidingWindow(cfg.BufferSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create sliding window")
	}

	var calib spectral.Calibrator
	if cfg.Calibration == 0 {
		calib = spectral.NewAuto(cfg.UpdatesPerSecond())
	} else {
		calib = spectral.Fixed(cfg.Calibration)
	}

	var analyzer spectral.Analyzer
	switch cfg.Analyzer {
	case FilterbankAnalyzer:
		analyzer, err = spectral.NewFilterbank(
			cfg.BufferSize, float64(cfg.SampleRate),
			cfg.LEDCount, cfg.NumOctaves, cfg.MinFrequency, calib)
	default:
		analyzer, err = spectral.NewFFT(cfg.BufferSize, float64(cfg.SampleRate), calib)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create analyzer")
	}

	var mapper bandmap.Mapper
	switch cfg.Mapper {
	case BandsMapping:
		mapper, err = bandmap.NewBandMapper(analyzer.Freqs(), cfg.BandMasks())
	case IntegralMapping:
		mapper, err = bandmap.NewIntegralMapper(
			analyzer.Freqs(), cfg.LEDCount,
			cfg.MinFrequency, cfg.MaxFrequency, cfg.LogarithmicSpacing)
	default:
		mapper, err = bandmap.NewDownsampler(analyzer.Bins(), cfg.LEDCount)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create band mapper")
	}

	renderer, err := NewRenderer(cfg.BaseColors(), cfg.ColorMode, cfg.Easing.Func(), cfg.Flip)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create renderer")
	}

	return &Pipeline{
		cfg:      cfg,
		logger:   logger,
		strip:    strip,
		window:   window,
		analyzer: analyzer,
		mapper:   mapper,
		renderer: renderer,
		metrics:  NewMetrics(),
	}, nil
}

// State returns the pipeline's lifecycle state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Metrics returns the pipeline's counters.
func (p *Pipeline) Metrics() *Metrics {
	return p.metrics
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
	p.logger.Debug("pipeline state changed", "state", s)
}

// Run drives the pipeline from the given audio stream until the stream ends
// or the context is canceled. Whatever the exit path, the strip is left
// black: the blackout flush is deferred before any work starts and runs on
// errors, cancellation and panics alike.
func (p *Pipeline) Run(ctx context.Context, src io.Reader) error {
	p.metrics.resetClock()
	p.setState(StateRunning)

	defer func() {
		p.setState(StateStopped)
		p.blackout()
	}()
	defer func() {
		if c, ok := p.analyzer.(io.Closer); ok {
			c.Close()
		}
	}()

	chunks := make(chan []float64, queueCap)
	frames := make(chan []float64, queueCap)

	errg, ctx := errgroup.WithContext(ctx)

	// The input reader is the pipeline's external driver, not a worker. A
	// Read blocked on the audio source cannot be interrupted, so it runs
	// outside the group and is abandoned on cancellation; the process is
	// exiting at that point anyway.
	var readErr error
	go func() {
		readErr = p.readChunks(ctx, src, chunks)
		close(chunks)
	}()

	errg.Go(func() error {
		defer close(frames)
		return p.analysisWorker(ctx, chunks, frames)
	})
	errg.Go(func() error {
		return p.renderWorker(ctx, frames)
	})

	if err := errg.Wait(); err != nil {
		return err
	}
	return readErr
}

// readChunks feeds decoded audio chunks into the analysis queue and emits
// the periodic utilization report. Undecodable lines are skipped with a
// warning rather than killing the stream; a bad line costs one frame of
// light, an abort costs the whole show.
func (p *Pipeline) readChunks(ctx context.Context, src io.Reader, dst chan<- []float64) error {
	reader := pcmio.NewReader(src)

	reportEvery := int(math.Ceil(reportInterval.Seconds() * p.cfg.UpdatesPerSecond()))
	if reportEvery < 1 {
		reportEvery = 1
	}

	for n := 0; ; n++ {
		chunk, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.setState(StateDraining)
				return nil
			}
			if errors.Is(err, pcmio.ErrMalformedLine) {
				p.logger.Warn("skipping malformed audio line", "error", err)
				p.metrics.CountMalformed()
				continue
			}
			return errors.Wrap(err, "failed to read audio stream")
		}

		select {
		case dst <- chunk:
		case <-ctx.Done():
			return ctx.Err()
		}

		if n%reportEvery == reportEvery-1 && p.logger.Enabled(ctx, slog.LevelDebug) {
			p.metrics.LogReport(p.logger)
		}
	}
}

func (p *Pipeline) analysisWorker(ctx context.Context, src <-chan []float64, dst chan<- []float64) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case chunk, ok := <-src:
			if !ok {
				return nil
			}
			p.checkOverload("analysis", len(src))

			start := time.Now()
			if err := p.window.Push(chunk); err != nil {
				return errors.Wrap(err, "failed to push chunk")
			}
			amps, err := p.analyzer.Analyze(p.window.Samples())
			if err != nil {
				return errors.Wrap(err, "failed to analyze window")
			}
			p.metrics.AddAnalysisTime(time.Since(start))

			select {
			case dst <- amps:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (p *Pipeline) renderWorker(ctx context.Context, src <-chan []float64) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case amps, ok := <-src:
			if !ok {
				return nil
			}
			p.checkOverload("render", len(src))

			start := time.Now()
			brightness, err := p.mapper.Map(amps)
			if err != nil {
				return errors.Wrap(err, "failed to map bins to LEDs")
			}
			leds, err := p.renderer.Render(brightness)
			if err != nil {
				return errors.Wrap(err, "failed to render colors")
			}
			for i, c := range leds {
				p.strip.SetPixelColor(i, c)
			}
			if err := p.strip.Show(); err != nil {
				return errors.Wrap(err, "failed to flush strip")
			}
			p.metrics.AddRenderTime(time.Since(start))
			p.metrics.CountUpdate()
		}
	}
}

// checkOverload warns when a queue is backed up beyond the configured
// threshold. The item is still processed; back-pressure here means growing
// latency, never frame loss.
func (p *Pipeline) checkOverload(stage string, depth int) {
	if depth > p.cfg.OverloadThreshold {
		p.metrics.CountOverload()
		p.logger.Warn("stage is falling behind, latency is growing",
			"stage", stage,
			"queue_depth", depth,
			"threshold", p.cfg.OverloadThreshold)
	}
}

// blackout is the guaranteed LED-off action: every pixel black, then shown.
func (p *Pipeline) blackout() {
	for i := 0; i < p.strip.NumPixels(); i++ {
		p.strip.SetPixelColor(i, led.RGBColor{})
	}
	if err := p.strip.Show(); err != nil {
		p.logger.Error("failed to turn the strip off", "error", err)
	}
}
