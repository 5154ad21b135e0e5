package spectral

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"libdb.so/lightorgan/internal/errs"
)

// FFT analyzes the window with a Hann-windowed real Fourier transform,
// yielding one amplitude per bin at a resolution of sampleRate/windowSize.
type FFT struct {
	fft    *fourier.FFT
	calib  Calibrator
	coeffs []float64 // Hann coefficient table
	input  []float64
	output []complex128
	freqs  []float64
}

var _ Analyzer = (*FFT)(nil)

// NewFFT creates a transform-based analyzer for windows of windowSize
// samples captured at sampleRate.
func NewFFT(windowSize int, sampleRate float64, calib Calibrator) (*FFT, error) {
	if windowSize < 2 {
		return nil, errs.Configf("fft window must have at least 2 samples, got %d", windowSize)
	}
	if sampleRate <= 0 {
		return nil, errs.Configf("sample rate must be positive, got %g", sampleRate)
	}

	coeffs := make([]float64, windowSize)
	for i := range coeffs {
		coeffs[i] = 1
	}
	window.Hann(coeffs)

	bins := windowSize/2 + 1
	freqs := make([]float64, bins)
	for i := range freqs {
		freqs[i] = float64(i) * sampleRate / float64(windowSize)
	}

	return &FFT{
		fft:    fourier.NewFFT(windowSize),
		calib:  calib,
		coeffs: coeffs,
		input:  make([]float64, windowSize),
		output: make([]complex128, bins),
		freqs:  freqs,
	}, nil
}

// Analyze implements Analyzer.
func (a *FFT) Analyze(samples []float64) ([]float64, error) {
	if len(samples) != len(a.input) {
		return nil, errs.Configf(
			"analyzer expects %d samples per window, got %d", len(a.input), len(samples))
	}

	for i, s := range samples {
		a.input[i] = s * a.coeffs[i]
	}
	a.fft.Coefficients(a.output, a.input)

	amps := make([]float64, len(a.output))
	for i, c := range a.output {
		amps[i] = cmplx.Abs(c)
	}
	a.calib.Normalize(amps)
	return amps, nil
}

// Freqs implements Analyzer.
func (a *FFT) Freqs() []float64 { return a.freqs }

// Bins implements Analyzer.
func (a *FFT) Bins() int { return len(a.freqs) }
