package bandmap

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/interp"
	"libdb.so/lightorgan/internal/errs"
)

// IntegralMapper treats the frame as a piecewise-linear function of
// frequency and emits, for each LED, the mean amplitude over that LED's
// frequency interval: the definite integral between consecutive boundaries
// divided by the boundary width. Unlike downsampling this stays consistent
// when boundaries cover very few raw bins.
type IntegralMapper struct {
	freqs      []float64
	boundaries []float64
	pl         interp.PiecewiseLinear
	out        []float64
	xs, ys     []float64
}

var _ Mapper = (*IntegralMapper)(nil)

// NewIntegralMapper creates an integral mapper with ledCount+1 boundary
// frequencies between minFreq and maxFreq, spaced linearly or, with
// logSpacing, logarithmically. Boundaries outside the measured frequency
// range cannot be interpolated and are rejected.
func NewIntegralMapper(freqs []float64, ledCount int, minFreq, maxFreq float64, logSpacing bool) (*IntegralMapper, error) {
	switch {
	case ledCount < 1:
		return nil, errs.Configf("at least one LED is required, got %d", ledCount)
	case len(freqs) < 2:
		return nil, errs.Configf("interpolation requires at least 2 bins, got %d", len(freqs))
	case minFreq >= maxFreq:
		return nil, errs.Configf(
			"min_frequency %g must be below max_frequency %g", minFreq, maxFreq)
	case logSpacing && minFreq <= 0:
		return nil, errs.Configf(
			"logarithmic spacing requires a positive min_frequency, got %g", minFreq)
	}

	if minFreq < freqs[0] || maxFreq > freqs[len(freqs)-1] {
		return nil, errs.Rangef(
			"boundaries [%g, %g] exceed the measured frequency range [%g, %g]",
			minFreq, maxFreq, freqs[0], freqs[len(freqs)-1])
	}

	boundaries := make([]float64, ledCount+1)
	for i := range boundaries {
		t := float64(i) / float64(ledCount)
		if logSpacing {
			boundaries[i] = minFreq * math.Pow(maxFreq/minFreq, t)
		} else {
			boundaries[i] = minFreq + (maxFreq-minFreq)*t
		}
	}

	return &IntegralMapper{
		freqs:      freqs,
		boundaries: boundaries,
		out:        make([]float64, ledCount),
		xs:         make([]float64, 0, len(freqs)+2),
		ys:         make([]float64, 0, len(freqs)+2),
	}, nil
}

// Map implements Mapper.
func (m *IntegralMapper) Map(amps []float64) ([]float64, error) {
	if len(amps) != len(m.freqs) {
		return nil, errs.Configf("mapper expects %d bins, got %d", len(m.freqs), len(amps))
	}
	if err := m.pl.Fit(m.freqs, amps); err != nil {
		return nil, errors.Wrap(err, "failed to fit interpolant")
	}

	// Boundaries and bin frequencies both ascend, so a single cursor walks
	// the knots once across all intervals.
	knot := 0
	for i := range m.out {
		lo, hi := m.boundaries[i], m.boundaries[i+1]

		m.xs = append(m.xs[:0], lo)
		m.ys = append(m.ys[:0], m.pl.Predict(lo))
		for knot < len(m.freqs) && m.freqs[knot] <= lo {
			knot++
		}
		for j := knot; j < len(m.freqs) && m.freqs[j] < hi; j++ {
			m.xs = append(m.xs, m.freqs[j])
			m.ys = append(m.ys, amps[j])
		}
		m.xs = append(m.xs, hi)
		m.ys = append(m.ys, m.pl.Predict(hi))

		m.out[i] = integrate.Trapezoidal(m.xs, m.ys) / (hi - lo)
	}
	return m.out, nil
}

// Boundaries returns the LED boundary frequencies, ledCount+1 values.
func (m *IntegralMapper) Boundaries() []float64 {
	return m.boundaries
}
