package bandmap

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"libdb.so/lightorgan/internal/errs"
)

// binFreqs mirrors an FFT bin layout: n bins spaced hz apart starting at 0.
func binFreqs(n int, hz float64) []float64 {
	freqs := make([]float64, n)
	for i := range freqs {
		freqs[i] = float64(i) * hz
	}
	return freqs
}

var testBands = []Band{
	{Name: "bass", Low: 250, High: 500, LEDs: 2},
	{Name: "mids", Low: 500, High: 2000, LEDs: 2},
	{Name: "highs", Low: 2000, High: 4000, LEDs: 2},
}

func TestBandMapperMasks(t *testing.T) {
	freqs := binFreqs(1025, 44100.0/2048)

	m, err := NewBandMapper(freqs, testBands)
	if err != nil {
		t.Fatalf("NewBandMapper: %v", err)
	}

	var total int
	for i, size := range m.MaskSizes() {
		if size == 0 {
			t.Errorf("band %d has an empty mask", i)
		}
		total += size
	}
	if total > len(freqs) {
		t.Errorf("mask sizes sum to %d, more than the %d bins", total, len(freqs))
	}
}

func TestBandMapperReplication(t *testing.T) {
	// One bin per band keeps the expected brightness obvious.
	freqs := []float64{300, 1000, 3000}

	m, err := NewBandMapper(freqs, testBands)
	if err != nil {
		t.Fatalf("NewBandMapper: %v", err)
	}

	out, err := m.Map([]float64{0.1, 0.5, 0.9})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}

	want := []float64{0.1, 0.1, 0.5, 0.5, 0.9, 0.9}
	if len(out) != len(want) {
		t.Fatalf("got %d brightness values, want %d", len(out), len(want))
	}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-12 {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestBandMapperScaleInvariance(t *testing.T) {
	freqs := binFreqs(1025, 44100.0/2048)

	m, err := NewBandMapper(freqs, testBands)
	if err != nil {
		t.Fatalf("NewBandMapper: %v", err)
	}

	amps := make([]float64, len(freqs))
	for i := range amps {
		amps[i] = float64(i%17) + 0.25
	}

	base, err := m.Map(amps)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	baseCopy := append([]float64(nil), base...)

	const k = 3.5
	scaled := make([]float64, len(amps))
	for i := range amps {
		scaled[i] = k * amps[i]
	}
	out, err := m.Map(scaled)
	if err != nil {
		t.Fatalf("Map scaled: %v", err)
	}

	for i := range out {
		if math.Abs(out[i]-k*baseCopy[i]) > 1e-9 {
			t.Errorf("out[%d] = %v, want %v", i, out[i], k*baseCopy[i])
		}
	}
}

func TestBandMapperSetupErrors(t *testing.T) {
	freqs := binFreqs(1025, 44100.0/2048)

	tests := []struct {
		name  string
		freqs []float64
		bands []Band
	}{
		{
			name:  "no bands",
			freqs: freqs,
			bands: nil,
		},
		{
			name:  "empty mask",
			freqs: []float64{100, 200},
			bands: []Band{{Name: "ultra", Low: 10000, High: 20000, LEDs: 1}},
		},
		{
			name:  "zero LEDs",
			freqs: freqs,
			bands: []Band{{Name: "bass", Low: 250, High: 500, LEDs: 0}},
		},
		{
			name:  "inverted range",
			freqs: freqs,
			bands: []Band{{Name: "bass", Low: 500, High: 250, LEDs: 1}},
		},
		{
			name:  "overlap",
			freqs: freqs,
			bands: []Band{
				{Name: "a", Low: 250, High: 1000, LEDs: 1},
				{Name: "b", Low: 900, High: 2000, LEDs: 1},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewBandMapper(test.freqs, test.bands)
			if err == nil {
				t.Fatal("NewBandMapper succeeded")
			}
			var cfgErr *errs.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("error is %T, want *errs.ConfigError", err)
			}
		})
	}
}
