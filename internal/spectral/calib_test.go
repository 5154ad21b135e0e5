package spectral

import (
	"math"
	"testing"
)

func TestFixedNormalize(t *testing.T) {
	amps := []float64{0, 1_500_000, 3_000_000, 6_000_000}
	Fixed(3_000_000).Normalize(amps)

	want := []float64{0, 0.5, 1, 2} // values above 1 stay; clamping is not our job
	for i := range want {
		if math.Abs(amps[i]-want[i]) > 1e-12 {
			t.Errorf("amps[%d] = %v, want %v", i, amps[i], want[i])
		}
	}
}

func TestAutoConvergesOnSteadySignal(t *testing.T) {
	c := NewAuto(60)

	var last []float64
	for i := 0; i < 300; i++ {
		last = []float64{200, 1000, 600}
		c.Normalize(last)
	}

	// With a steady 1000 peak the divisor settles at the peak itself, so the
	// loudest bin lands at full brightness.
	peak := last[argmax(last)]
	if peak < 0.6 || peak > 1.1 {
		t.Errorf("steady peak normalized to %v, want about 1", peak)
	}
}

func TestAutoSilenceStaysDark(t *testing.T) {
	c := NewAuto(60)

	amps := []float64{0, 0, 0}
	c.Normalize(amps)
	for i, a := range amps {
		if a != 0 {
			t.Errorf("amps[%d] = %v after silence, want 0", i, a)
		}
	}
}
