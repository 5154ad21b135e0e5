// Package spectral turns a sliding window of audio samples into per-bin
// amplitude frames, via a Fourier transform or a bank of band-pass filters.
package spectral

// Analyzer computes one amplitude per frequency bin from a window of
// samples. Bin center frequencies are fixed for the lifetime of an analyzer.
type Analyzer interface {
	// Analyze returns the normalized amplitude of every bin. The returned
	// slice is freshly allocated; ownership passes to the caller.
	Analyze(samples []float64) ([]float64, error)
	// Freqs returns the bin center frequencies in Hz, parallel to the
	// amplitudes returned by Analyze. Callers must not modify it.
	Freqs() []float64
	// Bins returns the number of bins Analyze produces.
	Bins() int
}
