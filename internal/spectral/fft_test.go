package spectral

import (
	"math"
	"testing"
)

// sine fills a window with a pure tone at the given frequency.
func sine(n int, sampleRate, freq, amplitude float64) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/sampleRate)
	}
	return samples
}

func argmax(vs []float64) int {
	best := 0
	for i, v := range vs {
		if v > vs[best] {
			best = i
		}
	}
	return best
}

func TestFFTBinFrequencies(t *testing.T) {
	const size = 1024
	const rate = 44100.0

	a, err := NewFFT(size, rate, Fixed(1))
	if err != nil {
		t.Fatalf("NewFFT: %v", err)
	}

	if a.Bins() != size/2+1 {
		t.Errorf("Bins() = %d, want %d", a.Bins(), size/2+1)
	}
	freqs := a.Freqs()
	for _, i := range []int{0, 1, 100, size / 2} {
		want := float64(i) * rate / size
		if math.Abs(freqs[i]-want) > 1e-9 {
			t.Errorf("freqs[%d] = %v, want %v", i, freqs[i], want)
		}
	}
}

func TestFFTLocatesPureTone(t *testing.T) {
	const size = 1024
	const rate = 1024.0 // 1 Hz per bin

	a, err := NewFFT(size, rate, Fixed(1))
	if err != nil {
		t.Fatalf("NewFFT: %v", err)
	}

	for _, bin := range []int{10, 100, 300} {
		amps, err := a.Analyze(sine(size, rate, float64(bin), 1000))
		if err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		if got := argmax(amps); got != bin {
			t.Errorf("tone at bin %d peaked at bin %d", bin, got)
		}
	}
}

func TestFFTCalibrationDivides(t *testing.T) {
	const size = 256
	const rate = 256.0

	input := sine(size, rate, 32, 1000)

	raw, err := NewFFT(size, rate, Fixed(1))
	if err != nil {
		t.Fatalf("NewFFT: %v", err)
	}
	halved, err := NewFFT(size, rate, Fixed(2))
	if err != nil {
		t.Fatalf("NewFFT: %v", err)
	}

	rawAmps, err := raw.Analyze(input)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	halfAmps, err := halved.Analyze(input)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	for i := range rawAmps {
		if math.Abs(halfAmps[i]*2-rawAmps[i]) > 1e-9*math.Max(1, rawAmps[i]) {
			t.Fatalf("bin %d: calibrated %v, raw %v", i, halfAmps[i], rawAmps[i])
		}
	}
}

func TestFFTRejectsWrongWindowSize(t *testing.T) {
	a, err := NewFFT(256, 256, Fixed(1))
	if err != nil {
		t.Fatalf("NewFFT: %v", err)
	}
	if _, err := a.Analyze(make([]float64, 128)); err == nil {
		t.Error("Analyze accepted a half-sized window")
	}
}

func BenchmarkFFTAnalyze(b *testing.B) {
	const size = 8192
	const rate = 44100.0

	a, err := NewFFT(size, rate, Fixed(3_000_000))
	if err != nil {
		b.Fatalf("NewFFT: %v", err)
	}
	input := sine(size, rate, 440, 10000)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := a.Analyze(input); err != nil {
			b.Fatal(err)
		}
	}
}
