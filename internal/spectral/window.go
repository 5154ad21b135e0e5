package spectral

import "libdb.so/lightorgan/internal/errs"

// SlidingWindow holds the most recent analysis window of audio samples.
// Pushing a chunk discards the oldest samples and appends the chunk, keeping
// the total length constant. It is meant to be owned by a single stage and
// is not safe for concurrent use.
type SlidingWindow struct {
	samples []float64
}

// NewSlidingWindow creates a window of the given capacity, initially silent.
func NewSlidingWindow(capacity int) (*SlidingWindow, error) {
	if capacity < 1 {
		return nil, errs.Configf("window capacity must be positive, got %d", capacity)
	}
	return &SlidingWindow{samples: make([]float64, capacity)}, nil
}

// Push shifts the oldest len(chunk) samples out of the window and appends
// chunk at the end. A chunk larger than the window itself means the window
// was configured too small.
func (w *SlidingWindow) Push(chunk []float64) error {
	if len(chunk) > len(w.samples) {
		return errs.Configf(
			"audio chunk of %d samples does not fit the %d sample window; increase buffer_size",
			len(chunk), len(w.samples))
	}
	copy(w.samples, w.samples[len(chunk):])
	copy(w.samples[len(w.samples)-len(chunk):], chunk)
	return nil
}

// Samples returns the window contents, oldest sample first. The slice is the
// window's backing store; callers must not modify or retain it.
func (w *SlidingWindow) Samples() []float64 {
	return w.samples
}

// Len returns the window capacity.
func (w *SlidingWindow) Len() int {
	return len(w.samples)
}
