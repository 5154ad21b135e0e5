package bandmap

import "libdb.so/lightorgan/internal/errs"

// Band is a named frequency range aggregating the bins whose center falls in
// the half-open interval (Low, High], rendered on a run of adjacent LEDs.
type Band struct {
	Name string
	Low  float64
	High float64
	LEDs int
}

// BandMapper averages the amplitudes inside each configured band and
// replicates the result across the band's LEDs, band by band along the
// strip. Averaging rather than summing keeps the brightness independent of
// how many bins a band happens to cover.
type BandMapper struct {
	bins  int
	masks []bandMask
	out   []float64
}

type bandMask struct {
	band Band
	bins []int
}

var _ Mapper = (*BandMapper)(nil)

// NewBandMapper builds the bin masks for the given bands against the
// analyzer's bin frequencies. Masks are built once here and never mutated; a
// band that covers no bins is a configuration error.
func NewBandMapper(freqs []float64, bands []Band) (*BandMapper, error) {
	if len(bands) == 0 {
		return nil, errs.Configf("at least one frequency band is required")
	}

	var ledCount int
	for i, b := range bands {
		if b.LEDs < 1 {
			return nil, errs.Configf("band %q must own at least one LED", b.Name)
		}
		if b.Low >= b.High {
			return nil, errs.Configf(
				"band %q range (%g, %g] is empty", b.Name, b.Low, b.High)
		}
		for _, other := range bands[i+1:] {
			if b.Low < other.High && other.Low < b.High {
				return nil, errs.Configf(
					"band %q overlaps with band %q", b.Name, other.Name)
			}
		}
		ledCount += b.LEDs
	}

	m := &BandMapper{
		bins:  len(freqs),
		masks: make([]bandMask, len(bands)),
		out:   make([]float64, ledCount),
	}
	for i, b := range bands {
		var bins []int
		for j, f := range freqs {
			if b.Low < f && f <= b.High {
				bins = append(bins, j)
			}
		}
		if len(bins) == 0 {
			return nil, errs.Configf(
				"band %q (%g, %g] covers no frequency bins", b.Name, b.Low, b.High)
		}
		m.masks[i] = bandMask{band: b, bins: bins}
	}
	return m, nil
}

// Map implements Mapper.
func (m *BandMapper) Map(amps []float64) ([]float64, error) {
	if len(amps) != m.bins {
		return nil, errs.Configf("mapper expects %d bins, got %d", m.bins, len(amps))
	}
	led := 0
	for _, mask := range m.masks {
		var sum float64
		for _, j := range mask.bins {
			sum += amps[j]
		}
		brightness := sum / float64(len(mask.bins))
		for i := 0; i < mask.band.LEDs; i++ {
			m.out[led] = brightness
			led++
		}
	}
	return m.out, nil
}

// Bands returns the configured bands in strip order.
func (m *BandMapper) Bands() []Band {
	bands := make([]Band, len(m.masks))
	for i, mask := range m.masks {
		bands[i] = mask.band
	}
	return bands
}

// MaskSizes returns the number of bins in each band's mask, in band order.
func (m *BandMapper) MaskSizes() []int {
	sizes := make([]int, len(m.masks))
	for i, mask := range m.masks {
		sizes[i] = len(mask.bins)
	}
	return sizes
}
