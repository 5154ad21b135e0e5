package spectral

import (
	"testing"

	"github.com/pkg/errors"
	"libdb.so/lightorgan/internal/errs"
)

func newTestFilterbank(t testing.TB) *Filterbank {
	t.Helper()
	f, err := NewFilterbank(8192, 44100, 9, 4, 250, Fixed(1))
	if err != nil {
		t.Fatalf("NewFilterbank: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestFilterbankCenterFrequencies(t *testing.T) {
	f := newTestFilterbank(t)

	freqs := f.Freqs()
	if len(freqs) != 9 {
		t.Fatalf("got %d filters, want 9", len(freqs))
	}
	if freqs[0] != 250 {
		t.Errorf("freqs[0] = %v, want 250", freqs[0])
	}
	for i := 1; i < len(freqs); i++ {
		if freqs[i] <= freqs[i-1] {
			t.Errorf("freqs[%d] = %v not above freqs[%d] = %v",
				i, freqs[i], i-1, freqs[i-1])
		}
	}
	// 4 octaves over 9 filters, endpoint excluded: the top center stays
	// below 250 * 2^4.
	if top := freqs[len(freqs)-1]; top >= 4000 {
		t.Errorf("top center frequency %v, want below 4000", top)
	}
}

func TestFilterbankSelectsTone(t *testing.T) {
	f := newTestFilterbank(t)

	for _, filter := range []int{0, 4, 8} {
		tone := sine(8192, 44100, f.Freqs()[filter], 1000)
		amps, err := f.Analyze(tone)
		if err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		if got := argmax(amps); got != filter {
			t.Errorf("tone at %v Hz peaked on filter %d, want %d",
				f.Freqs()[filter], got, filter)
		}
	}
}

func TestFilterbankRejectsOutOfRangeTuning(t *testing.T) {
	tests := []struct {
		name    string
		minFreq float64
		octaves int
	}{
		{"below piano range", 20, 4},
		{"above piano range", 1000, 5},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewFilterbank(8192, 44100, 9, test.octaves, test.minFreq, Fixed(1))
			if err == nil {
				t.Fatal("NewFilterbank succeeded")
			}
			var cfgErr *errs.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("error is %T, want *errs.ConfigError", err)
			}
		})
	}
}

func TestFilterbankCloseIsIdempotent(t *testing.T) {
	f, err := NewFilterbank(1024, 44100, 4, 3, 250, Fixed(1))
	if err != nil {
		t.Fatalf("NewFilterbank: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
