package lightorgan

import (
	"math"

	"libdb.so/lightorgan/internal/errs"
	"libdb.so/lightorgan/internal/led"
)

// Easing remaps a clamped brightness value before color mapping.
// Implementations must be monotonic and map 0 to 0 and 1 to 1.
type Easing func(float64) float64

// Renderer converts per-LED brightness into pixel colors against a base
// color table fixed at construction. The output buffer is allocated once and
// reused; it is owned by the rendering stage.
type Renderer struct {
	base led.LEDs
	mode ColorMode
	ease Easing
	flip bool
	out  led.LEDs
}

// NewRenderer creates a renderer over the given base color table.
func NewRenderer(base led.LEDs, mode ColorMode, ease Easing, flip bool) (*Renderer, error) {
	if len(base) == 0 {
		return nil, errs.Configf("base color table must not be empty")
	}
	switch mode {
	case ScaleColorMode, HSVValueColorMode:
	default:
		return nil, errs.Configf("unknown color_mode %q", mode)
	}
	if ease == nil {
		ease = func(v float64) float64 { return v }
	}
	return &Renderer{
		base: base,
		mode: mode,
		ease: ease,
		flip: flip,
		out:  led.NewLEDs(len(base)),
	}, nil
}

// Render fills the pixel buffer from the brightness vector. Brightness is
// clamped to [0, 1] and eased before mapping; channels are rounded, not
// truncated. The returned buffer is reused across calls.
func (r *Renderer) Render(brightness []float64) (led.LEDs, error) {
	if len(brightness) != len(r.base) {
		return nil, errs.Configf(
			"renderer expects %d brightness values, got %d", len(r.base), len(brightness))
	}

	for i, b := range brightness {
		b = r.ease(clamp01(b))

		var c led.RGBColor
		switch r.mode {
		case ScaleColorMode:
			base := r.base[i]
			c = led.RGB(
				roundChannel(b*float64(base[0])),
				roundChannel(b*float64(base[1])),
				roundChannel(b*float64(base[2])))
		case HSVValueColorMode:
			h, s, _ := r.base[i].HSV()
			c = led.HSV(h, s, b)
		}

		if r.flip {
			r.out[len(r.out)-1-i] = c
		} else {
			r.out[i] = c
		}
	}
	return r.out, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func roundChannel(v float64) uint8 {
	r := math.Round(v)
	if r > 255 {
		return 255
	}
	if r < 0 {
		return 0
	}
	return uint8(r)
}
