package lightorgan

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"libdb.so/lightorgan/internal/led"
	"libdb.so/lightorgan/internal/pcmio"
)

// fakeStrip records every flushed frame. showDelay throttles Show to force
// queue buildup in the back-pressure test.
type fakeStrip struct {
	mu        sync.Mutex
	pixels    led.LEDs
	frames    []led.LEDs
	showDelay time.Duration
}

var _ Strip = (*fakeStrip)(nil)

func newFakeStrip(numLEDs int) *fakeStrip {
	return &fakeStrip{pixels: led.NewLEDs(numLEDs)}
}

func (s *fakeStrip) SetPixelColor(i int, c led.RGBColor) {
	s.mu.Lock()
	s.pixels[i] = c
	s.mu.Unlock()
}

func (s *fakeStrip) Show() error {
	if s.showDelay > 0 {
		time.Sleep(s.showDelay)
	}
	s.mu.Lock()
	s.frames = append(s.frames, append(led.LEDs(nil), s.pixels...))
	s.mu.Unlock()
	return nil
}

func (s *fakeStrip) NumPixels() int {
	return len(s.pixels)
}

func (s *fakeStrip) flushedFrames() []led.LEDs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]led.LEDs(nil), s.frames...)
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.LEDCount = 8
	cfg.SampleRate = 8000
	cfg.ChunkSize = 256
	cfg.BufferSize = 1024
	cfg.RGBColorsFactory = WhitePalette
	cfg.Calibration = 1000
	cfg.OverloadThreshold = 1
	return &cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// encodeChunks writes n identical sine chunks as the line protocol.
func encodeChunks(t *testing.T, n, chunkSize int) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w := pcmio.NewWriter(&buf)

	chunk := make([]int16, chunkSize)
	for i := range chunk {
		chunk[i] = int16(10000 * (i%8 - 4) / 4)
	}
	for i := 0; i < n; i++ {
		if err := w.WriteChunk(chunk); err != nil {
			t.Fatalf("WriteChunk: %v", err)
		}
	}
	return &buf
}

func TestPipelineEndToEnd(t *testing.T) {
	cfg := testConfig()
	strip := newFakeStrip(cfg.LEDCount)

	p, err := NewPipeline(cfg, strip, testLogger())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	const chunks = 12
	if err := p.Run(context.Background(), encodeChunks(t, chunks, cfg.ChunkSize)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if p.State() != StateStopped {
		t.Errorf("state = %v after Run, want stopped", p.State())
	}
	if got := p.Metrics().Updates(); got != chunks {
		t.Errorf("updates = %d, want %d; frames must never be dropped", got, chunks)
	}

	frames := strip.flushedFrames()
	// One frame per chunk, plus the final blackout.
	if len(frames) != chunks+1 {
		t.Fatalf("flushed %d frames, want %d", len(frames), chunks+1)
	}
	last := frames[len(frames)-1]
	for i, c := range last {
		if c != (led.RGBColor{}) {
			t.Errorf("LED %d = %v after shutdown, want black", i, c)
		}
	}
}

func TestPipelineBackpressure(t *testing.T) {
	cfg := testConfig()
	strip := newFakeStrip(cfg.LEDCount)
	strip.showDelay = 5 * time.Millisecond

	p, err := NewPipeline(cfg, strip, testLogger())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	// The input arrives all at once while the render stage crawls, so the
	// frame queue must pile up past the threshold of 1.
	const chunks = 20
	if err := p.Run(context.Background(), encodeChunks(t, chunks, cfg.ChunkSize)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if p.Metrics().Overloads() == 0 {
		t.Error("no overload warnings despite a saturated queue")
	}
	if got := p.Metrics().Updates(); got != chunks {
		t.Errorf("updates = %d, want %d; overload must not drop frames", got, chunks)
	}
}

func TestPipelineSkipsMalformedLines(t *testing.T) {
	cfg := testConfig()
	strip := newFakeStrip(cfg.LEDCount)

	p, err := NewPipeline(cfg, strip, testLogger())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	input := encodeChunks(t, 2, cfg.ChunkSize)
	var spliced bytes.Buffer
	lines := bytes.SplitAfter(input.Bytes(), []byte("\n"))
	spliced.Write(lines[0])
	spliced.WriteString("&&& static on the wire &&&\n")
	spliced.Write(lines[1])

	if err := p.Run(context.Background(), &spliced); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := p.Metrics().Malformed(); got != 1 {
		t.Errorf("malformed = %d, want 1", got)
	}
	if got := p.Metrics().Updates(); got != 2 {
		t.Errorf("updates = %d, want 2", got)
	}
}

func TestPipelineCancelBlacksOut(t *testing.T) {
	cfg := testConfig()
	strip := newFakeStrip(cfg.LEDCount)

	p, err := NewPipeline(cfg, strip, testLogger())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	// An idle source: the pipeline has nothing to do and must still come
	// down promptly on cancellation.
	src, srcW := io.Pipe()
	defer srcW.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, src) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	frames := strip.flushedFrames()
	if len(frames) == 0 {
		t.Fatal("no blackout flush after cancellation")
	}
	for i, c := range frames[len(frames)-1] {
		if c != (led.RGBColor{}) {
			t.Errorf("LED %d = %v after cancellation, want black", i, c)
		}
	}
}

func TestPipelineRejectsMismatchedStrip(t *testing.T) {
	cfg := testConfig()
	strip := newFakeStrip(cfg.LEDCount + 1)

	if _, err := NewPipeline(cfg, strip, testLogger()); err == nil {
		t.Error("NewPipeline accepted a strip with the wrong pixel count")
	}
}
