package spectral

import (
	"io"
	"math"
	"runtime"
	"sync"

	"libdb.so/lightorgan/internal/errs"
)

// Filter bank tuning limits, expressed as MIDI notes. Center frequencies
// outside the piano range produce filters too narrow or too aliased to be
// useful.
const (
	lowestNote  = 21  // A0, 27.5 Hz
	highestNote = 108 // C8, ~4186 Hz

	midTierNote = 93 // A6, 1760 Hz: below this the filters run at rate/10
	lowTierNote = 57 // A3, 220 Hz: below this the filters run at rate/50
)

func midiHz(note float64) float64 {
	return 440 * math.Exp2((note-69)/12)
}

// Filterbank analyzes the window with one band-pass filter per LED, tuned to
// log-spaced center frequencies. Low filters run on decimated copies of the
// window so their long impulse responses stay affordable. Filters are
// evaluated in parallel on a fixed worker pool; each Analyze is a synchronous
// scatter/gather across all filters.
//
// This strategy is markedly more expensive than the FFT analyzer and may not
// sustain high update rates on small boards.
type Filterbank struct {
	calib      Calibrator
	freqs      []float64
	filters    []fbFilter
	tiers      []fbTier
	scratch    []float64 // full-rate guard output, reused tier by tier
	windowSize int

	jobs      chan fbJob
	closeOnce sync.Once
}

var (
	_ Analyzer  = (*Filterbank)(nil)
	_ io.Closer = (*Filterbank)(nil)
)

type fbFilter struct {
	section biquad
	tier    int
}

type fbTier struct {
	factor int
	guard  biquad
	buf    []float64 // decimated window
}

type fbJob struct {
	idx  int
	amps []float64
	wg   *sync.WaitGroup
}

// NewFilterbank creates a filter bank of numFilters band-pass filters with
// center frequencies spread logarithmically over numOctaves octaves starting
// at minFrequency, the endpoint excluded.
func NewFilterbank(windowSize int, sampleRate float64, numFilters, numOctaves int, minFrequency float64, calib Calibrator) (*Filterbank, error) {
	switch {
	case windowSize < 1:
		return nil, errs.Configf("filter bank window must not be empty")
	case sampleRate <= 0:
		return nil, errs.Configf("sample rate must be positive, got %g", sampleRate)
	case numFilters < 1:
		return nil, errs.Configf("at least one filter is required, got %d", numFilters)
	case numOctaves < 1:
		return nil, errs.Configf("at least one octave is required, got %d", numOctaves)
	}

	freqs := make([]float64, numFilters)
	for i := range freqs {
		freqs[i] = minFrequency * math.Exp2(float64(numOctaves)*float64(i)/float64(numFilters))
	}
	if freqs[0] < midiHz(lowestNote) {
		return nil, errs.Configf(
			"minimum center frequency %.1f Hz is below the %.1f Hz filter bank limit",
			freqs[0], midiHz(lowestNote))
	}
	if top := freqs[numFilters-1]; top > midiHz(highestNote) {
		return nil, errs.Configf(
			"maximum center frequency %.1f Hz is above the %.1f Hz filter bank limit",
			top, midiHz(highestNote))
	}

	// A half semitone of passband either side of the center.
	q := 1 / (math.Exp2(1.0/24) - math.Exp2(-1.0/24))

	f := &Filterbank{
		calib:      calib,
		freqs:      freqs,
		filters:    make([]fbFilter, numFilters),
		scratch:    make([]float64, windowSize),
		windowSize: windowSize,
		jobs:       make(chan fbJob, numFilters),
	}

	tierIndex := make(map[int]int)
	for i, fc := range freqs {
		factor := 2
		switch {
		case fc < midiHz(lowTierNote):
			factor = 50
		case fc < midiHz(midTierNote):
			factor = 10
		}

		ti, ok := tierIndex[factor]
		if !ok {
			tierRate := sampleRate / float64(factor)
			ti = len(f.tiers)
			tierIndex[factor] = ti
			f.tiers = append(f.tiers, fbTier{
				factor: factor,
				guard:  lowpass(sampleRate, 0.45*tierRate),
				buf:    make([]float64, (windowSize+factor-1)/factor),
			})
		}

		f.filters[i] = fbFilter{
			section: bandpass(sampleRate/float64(factor), fc, q),
			tier:    ti,
		}
	}

	workers := runtime.NumCPU()
	if workers > numFilters {
		workers = numFilters
	}
	for w := 0; w < workers; w++ {
		go f.work()
	}

	return f, nil
}

func (f *Filterbank) work() {
	for job := range f.jobs {
		flt := f.filters[job.idx]
		job.amps[job.idx] = flt.section.meanSquare(f.tiers[flt.tier].buf)
		job.wg.Done()
	}
}

// Analyze implements Analyzer.
func (f *Filterbank) Analyze(samples []float64) ([]float64, error) {
	if len(samples) != f.windowSize {
		return nil, errs.Configf(
			"analyzer expects %d samples per window, got %d", f.windowSize, len(samples))
	}

	// Decimate the window once per tier; the filters then only read from
	// their tier's buffer, so the fan-out below shares it safely.
	for ti := range f.tiers {
		t := &f.tiers[ti]
		t.guard.apply(f.scratch, samples)
		n := 0
		for i := 0; i < len(f.scratch); i += t.factor {
			t.buf[n] = f.scratch[i]
			n++
		}
	}

	amps := make([]float64, len(f.filters))
	var wg sync.WaitGroup
	wg.Add(len(f.filters))
	for i := range f.filters {
		f.jobs <- fbJob{idx: i, amps: amps, wg: &wg}
	}
	wg.Wait()

	f.calib.Normalize(amps)
	return amps, nil
}

// Freqs implements Analyzer.
func (f *Filterbank) Freqs() []float64 { return f.freqs }

// Bins implements Analyzer.
func (f *Filterbank) Bins() int { return len(f.freqs) }

// Close stops the worker pool. Analyze must not be called after Close.
func (f *Filterbank) Close() error {
	f.closeOnce.Do(func() { close(f.jobs) })
	return nil
}

// biquad is a second-order IIR section in transposed direct form II. Each
// run starts from zero state; the window overlap between updates makes the
// startup transient negligible.
type biquad struct {
	b0, b1, b2, a1, a2 float64
}

// bandpass designs a constant peak gain band-pass section.
func bandpass(sampleRate, centerHz, q float64) biquad {
	w0 := 2 * math.Pi * centerHz / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	a0 := 1 + alpha
	return biquad{
		b0: alpha / a0,
		b2: -alpha / a0,
		a1: -2 * math.Cos(w0) / a0,
		a2: (1 - alpha) / a0,
	}
}

// lowpass designs a Butterworth-like low-pass section, used to guard the
// decimators against aliasing.
func lowpass(sampleRate, cutoffHz float64) biquad {
	const q = math.Sqrt2 / 2
	w0 := 2 * math.Pi * cutoffHz / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)
	a0 := 1 + alpha
	return biquad{
		b0: (1 - cosw0) / 2 / a0,
		b1: (1 - cosw0) / a0,
		b2: (1 - cosw0) / 2 / a0,
		a1: -2 * cosw0 / a0,
		a2: (1 - alpha) / a0,
	}
}

func (f biquad) apply(dst, src []float64) {
	var s1, s2 float64
	for i, x := range src {
		y := f.b0*x + s1
		s1 = f.b1*x - f.a1*y + s2
		s2 = f.b2*x - f.a2*y
		dst[i] = y
	}
}

func (f biquad) meanSquare(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var s1, s2, sum float64
	for _, x := range samples {
		y := f.b0*x + s1
		s1 = f.b1*x - f.a1*y + s2
		s2 = f.b2*x - f.a2*y
		sum += y * y
	}
	return sum / float64(len(samples))
}
