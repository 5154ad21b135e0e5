package lightorgan

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"libdb.so/lightorgan/internal/led"
)

// Strip is the capability the pipeline needs from the LED hardware. The
// electrical protocol, GPIO and timing are entirely the driver's concern.
type Strip interface {
	// SetPixelColor stages the color of the LED at the given index.
	SetPixelColor(i int, c led.RGBColor)
	// Show flushes the staged colors to the hardware.
	Show() error
	// NumPixels returns the number of LEDs on the strip.
	NumPixels() int
}

// TermStrip previews the strip as a row of true-color blocks on a terminal,
// redrawn in place. It lets the pipeline run without any hardware attached.
type TermStrip struct {
	w    io.Writer
	leds led.LEDs
	buf  bytes.Buffer
}

var _ Strip = (*TermStrip)(nil)

// NewTermStrip creates a terminal preview strip writing to w, usually
// stderr so stdout stays free for the readiness handshake.
func NewTermStrip(w io.Writer, numLEDs int) *TermStrip {
	return &TermStrip{
		w:    w,
		leds: led.NewLEDs(numLEDs),
	}
}

// SetPixelColor implements Strip.
func (s *TermStrip) SetPixelColor(i int, c led.RGBColor) {
	s.leds.Set(i, c)
}

// Show implements Strip.
func (s *TermStrip) Show() error {
	s.buf.Reset()
	s.buf.WriteByte('\r')
	for _, c := range s.leds {
		fmt.Fprintf(&s.buf, "\x1b[48;2;%d;%d;%dm  ", c[0], c[1], c[2])
	}
	s.buf.WriteString("\x1b[0m")

	_, err := s.w.Write(s.buf.Bytes())
	return errors.Wrap(err, "failed to draw strip")
}

// NumPixels implements Strip.
func (s *TermStrip) NumPixels() int {
	return len(s.leds)
}

// Close moves the cursor off the strip line.
func (s *TermStrip) Close() error {
	_, err := io.WriteString(s.w, "\x1b[0m\n")
	return err
}
