package bandmap

import "libdb.so/lightorgan/internal/errs"

// Downsampler partitions the frame into ledCount contiguous groups and emits
// each group's mean. A remainder that does not divide evenly is trimmed off
// the high end of the frame.
type Downsampler struct {
	bins      int
	groupSize int
	out       []float64
}

var _ Mapper = (*Downsampler)(nil)

// NewDownsampler creates a downsampling mapper from bins amplitudes to
// ledCount brightness values.
func NewDownsampler(bins, ledCount int) (*Downsampler, error) {
	if ledCount < 1 {
		return nil, errs.Configf("at least one LED is required, got %d", ledCount)
	}
	groupSize := bins / ledCount
	if groupSize < 1 {
		return nil, errs.Configf(
			"cannot downsample %d bins onto %d LEDs; reduce led_count or enlarge the window",
			bins, ledCount)
	}
	return &Downsampler{
		bins:      bins,
		groupSize: groupSize,
		out:       make([]float64, ledCount),
	}, nil
}

// Map implements Mapper.
func (d *Downsampler) Map(amps []float64) ([]float64, error) {
	if len(amps) != d.bins {
		return nil, errs.Configf("mapper expects %d bins, got %d", d.bins, len(amps))
	}
	for i := range d.out {
		group := amps[i*d.groupSize : (i+1)*d.groupSize]
		var sum float64
		for _, a := range group {
			sum += a
		}
		d.out[i] = sum / float64(d.groupSize)
	}
	return d.out, nil
}
