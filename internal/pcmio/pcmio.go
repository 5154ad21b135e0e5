// Package pcmio implements the line-oriented PCM stream shared by the
// capture process and the renderer: one base64-encoded frame of signed
// 16-bit little-endian mono samples per line.
package pcmio

import (
	"bufio"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// ErrMalformedLine marks a line that could not be decoded into samples.
// Callers decide whether to skip the line or abort the stream.
var ErrMalformedLine = errors.New("malformed pcm line")

// maxLine bounds a single encoded line. Large enough for several seconds of
// audio in one chunk, small enough to catch runaway input.
const maxLine = 1 << 22

// Writer encodes sample chunks onto a line-oriented stream.
type Writer struct {
	w   *bufio.Writer
	buf []byte
}

// NewWriter returns a Writer emitting one line per chunk to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteChunk writes one chunk of samples as a base64 line and flushes it, so
// each chunk is visible to the consumer as soon as it is captured.
func (w *Writer) WriteChunk(samples []int16) error {
	raw := w.raw(2 * len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(s))
	}

	enc := base64.StdEncoding
	line := make([]byte, enc.EncodedLen(len(raw))+1)
	enc.Encode(line, raw)
	line[len(line)-1] = '\n'

	if _, err := w.w.Write(line); err != nil {
		return errors.Wrap(err, "failed to write pcm line")
	}
	return errors.Wrap(w.w.Flush(), "failed to flush pcm line")
}

func (w *Writer) raw(n int) []byte {
	if cap(w.buf) < n {
		w.buf = make([]byte, n)
	}
	return w.buf[:n]
}

// Reader decodes sample chunks from a line-oriented stream.
type Reader struct {
	sc  *bufio.Scanner
	raw []byte
}

// NewReader returns a Reader consuming one chunk per line from r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Reader{sc: sc}
}

// Next returns the samples of the next line. It returns io.EOF once the
// stream ends, and an error wrapping ErrMalformedLine for lines that do not
// decode; the stream remains usable after a malformed line.
func (r *Reader) Next() ([]float64, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return nil, errors.Wrap(err, "failed to read pcm line")
		}
		return nil, io.EOF
	}

	line := r.sc.Bytes()
	enc := base64.StdEncoding

	if cap(r.raw) < enc.DecodedLen(len(line)) {
		r.raw = make([]byte, enc.DecodedLen(len(line)))
	}
	n, err := enc.Decode(r.raw[:cap(r.raw)], line)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedLine, err)
	}
	if n%2 != 0 {
		return nil, fmt.Errorf("%w: odd byte count %d", ErrMalformedLine, n)
	}

	// Raw int16 scale, not normalized: the calibration constants downstream
	// assume it.
	samples := make([]float64, n/2)
	for i := range samples {
		samples[i] = float64(int16(binary.LittleEndian.Uint16(r.raw[2*i:])))
	}
	return samples, nil
}
