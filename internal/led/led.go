// Package led defines LED strip colors and the pixel buffer shared by the
// renderer and the strip drivers.
package led

import (
	"fmt"
	"unsafe"

	"github.com/lucasb-eyer/go-colorful"
)

// RGBColor is a single LED color. Channels are ordered red, green, blue.
type RGBColor [3]uint8

// RGB returns the color with the given channel values.
func RGB(r, g, b uint8) RGBColor {
	return RGBColor{r, g, b}
}

// HSV returns the color for the given hue (degrees, [0, 360)), saturation
// and value (both [0, 1]).
func HSV(h, s, v float64) RGBColor {
	r, g, b := colorful.Hsv(h, s, v).RGB255()
	return RGBColor{r, g, b}
}

// HSV returns the hue (degrees), saturation and value of the color.
func (c RGBColor) HSV() (h, s, v float64) {
	return colorful.Color{
		R: float64(c[0]) / 255,
		G: float64(c[1]) / 255,
		B: float64(c[2]) / 255,
	}.Hsv()
}

func (c RGBColor) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

// UnmarshalText parses a color from a #rrggbb hex string.
func (c *RGBColor) UnmarshalText(text []byte) error {
	var r, g, b uint8
	if _, err := fmt.Sscanf(string(text), "#%02x%02x%02x", &r, &g, &b); err != nil {
		return fmt.Errorf("invalid color %q: %w", text, err)
	}
	*c = RGBColor{r, g, b}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (c RGBColor) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// LEDs describes a strip of LEDs. It is a preallocated slice of RGBColor.
type LEDs []RGBColor

// NewLEDs creates a new strip of LEDs. Colors are initialized to black
// (off).
func NewLEDs(numLEDs int) LEDs {
	return make(LEDs, numLEDs)
}

// AsPixels returns the LED strip as a slice of uint8 values. Each LED is
// represented by three values, one for each color channel.
func (l LEDs) AsPixels() []uint8 {
	return unsafe.Slice((*uint8)(unsafe.Pointer(&l[0])), 3*len(l))
}

// Set sets the color of the LED at the given index.
func (l LEDs) Set(i int, c RGBColor) {
	l[i] = c
}

// SetRange sets the color of the LEDs in the given range.
func (l LEDs) SetRange(start, end int, c RGBColor) {
	for i := start; i < end; i++ {
		l[i] = c
	}
}

// Fill sets every LED to the given color.
func (l LEDs) Fill(c RGBColor) {
	l.SetRange(0, len(l), c)
}

// White returns a base color table with every LED set to full white.
func White(numLEDs int) LEDs {
	l := NewLEDs(numLEDs)
	l.Fill(RGBColor{255, 255, 255})
	return l
}

// Rainbow returns a base color table with hues evenly distributed around the
// color wheel, excluding the endpoint so the first and last LED differ.
func Rainbow(numLEDs int) LEDs {
	l := NewLEDs(numLEDs)
	for i := range l {
		hue := 360 * float64(i) / float64(numLEDs)
		l[i] = HSV(hue, 1, 1)
	}
	return l
}
