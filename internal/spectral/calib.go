package spectral

import (
	"math"

	"github.com/noriah/catnip/util"
)

// Calibrator scales raw spectral amplitudes into a roughly [0, 1] range.
// Values may still exceed 1; clamping is the renderer's job.
type Calibrator interface {
	Normalize(amps []float64)
}

// Fixed divides every amplitude by a constant. The constant is the
// empirically tuned "max brightness amplitude" for a given microphone and
// gain, exposed through the calibration config key.
type Fixed float64

// Normalize implements Calibrator.
func (c Fixed) Normalize(amps []float64) {
	for i := range amps {
		amps[i] /= float64(c)
	}
}

const (
	scalingSlowSeconds    = 5.0
	scalingFastSeconds    = 1.0
	scalingDumpPercent    = 0.75
	scalingResetDeviation = 1.0

	// minScale stops silence from dividing by zero and keeps it dark.
	minScale = 1.0
)

// Auto adapts the divisor to the observed signal level instead of a fixed
// constant. It tracks the frame peak over a slow and a fast moving window;
// when the fast mean drifts more than a standard deviation away from the
// slow mean, the slow window drops most of its history and re-converges.
type Auto struct {
	slowWindow *util.MovingWindow
	fastWindow *util.MovingWindow
}

// NewAuto creates an adaptive calibrator for a stream producing
// updatesPerSecond frames per second.
func NewAuto(updatesPerSecond float64) *Auto {
	slow := int(math.Ceil(scalingSlowSeconds * updatesPerSecond))
	fast := int(math.Ceil(scalingFastSeconds * updatesPerSecond))
	if slow < 2 {
		slow = 2
	}
	if fast < 1 {
		fast = 1
	}
	return &Auto{
		slowWindow: util.NewMovingWindow(slow),
		fastWindow: util.NewMovingWindow(fast),
	}
}

// Normalize implements Calibrator.
func (c *Auto) Normalize(amps []float64) {
	var peak float64
	for _, a := range amps {
		if a > peak {
			peak = a
		}
	}

	c.fastWindow.Update(peak)
	mean, sd := c.slowWindow.Update(peak)

	if length := c.slowWindow.Len(); length >= c.fastWindow.Cap() {
		if math.Abs(c.fastWindow.Mean()-mean) > scalingResetDeviation*sd {
			mean, sd = c.slowWindow.Drop(int(float64(length) * scalingDumpPercent))
		}
	}

	scale := mean + 1.5*sd
	if scale < minScale {
		scale = minScale
	}
	for i := range amps {
		amps[i] /= scale
	}
}
