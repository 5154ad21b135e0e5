package bandmap

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"libdb.so/lightorgan/internal/errs"
)

func TestIntegralMapperConstantRoundTrip(t *testing.T) {
	freqs := binFreqs(257, 44100.0/512)

	for _, logSpacing := range []bool{false, true} {
		name := "linear"
		if logSpacing {
			name = "logarithmic"
		}
		t.Run(name, func(t *testing.T) {
			m, err := NewIntegralMapper(freqs, 9, 250, 4000, logSpacing)
			if err != nil {
				t.Fatalf("NewIntegralMapper: %v", err)
			}

			const level = 0.625
			amps := make([]float64, len(freqs))
			for i := range amps {
				amps[i] = level
			}

			out, err := m.Map(amps)
			if err != nil {
				t.Fatalf("Map: %v", err)
			}
			// Integrating a constant over any interval and dividing by its
			// width gives the constant back, however few bins the interval
			// covers.
			for i, b := range out {
				if math.Abs(b-level) > 1e-9 {
					t.Errorf("out[%d] = %v, want %v", i, b, level)
				}
			}
		})
	}
}

func TestIntegralMapperBoundaryLayout(t *testing.T) {
	freqs := binFreqs(257, 44100.0/512)

	m, err := NewIntegralMapper(freqs, 9, 250, 4000, true)
	if err != nil {
		t.Fatalf("NewIntegralMapper: %v", err)
	}

	bounds := m.Boundaries()
	if len(bounds) != 10 {
		t.Fatalf("got %d boundaries, want 10", len(bounds))
	}
	if bounds[0] != 250 || math.Abs(bounds[9]-4000) > 1e-9 {
		t.Errorf("boundary range [%v, %v], want [250, 4000]", bounds[0], bounds[9])
	}
	for i := 1; i < len(bounds); i++ {
		if bounds[i] <= bounds[i-1] {
			t.Errorf("boundaries not ascending at %d: %v then %v",
				i, bounds[i-1], bounds[i])
		}
	}
}

func TestIntegralMapperOutOfRange(t *testing.T) {
	freqs := []float64{100, 200, 300}

	_, err := NewIntegralMapper(freqs, 4, 50, 250, false)
	if err == nil {
		t.Fatal("NewIntegralMapper accepted a boundary below the measured range")
	}
	var rangeErr *errs.RangeError
	if !errors.As(err, &rangeErr) {
		t.Errorf("error is %T, want *errs.RangeError", err)
	}

	if _, err := NewIntegralMapper(freqs, 4, 150, 5000, false); err == nil {
		t.Error("NewIntegralMapper accepted a boundary above the measured range")
	}
}

func TestIntegralMapperSetupErrors(t *testing.T) {
	freqs := binFreqs(257, 44100.0/512)

	if _, err := NewIntegralMapper(freqs, 0, 250, 4000, false); err == nil {
		t.Error("accepted zero LEDs")
	}
	if _, err := NewIntegralMapper(freqs, 9, 4000, 250, false); err == nil {
		t.Error("accepted inverted frequency range")
	}
	if _, err := NewIntegralMapper([]float64{42}, 9, 250, 4000, false); err == nil {
		t.Error("accepted a single-bin frame")
	}
}
