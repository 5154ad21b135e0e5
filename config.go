package lightorgan

import (
	"io"
	"log/slog"
	"math"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"libdb.so/lightorgan/internal/bandmap"
	"libdb.so/lightorgan/internal/errs"
	"libdb.so/lightorgan/internal/led"
)

// Config is the configuration for the light organ pipeline.
type Config struct {
	// Device is the path to the serial device driving the strip, usually
	// /dev/ttyUSB0 or /dev/ttyACM0. The special value "term" renders the
	// strip as colored blocks on the terminal instead.
	Device string `toml:"device"`
	// Baud is the baud rate for the serial connection.
	Baud int `toml:"baud"`
	// LEDCount is the number of LEDs on the strip.
	LEDCount int `toml:"led_count"`
	// SampleRate is the audio capture sample rate in Hz.
	SampleRate int `toml:"sample_rate"`
	// UpdateRate is the target number of chunks per second. It determines
	// the chunk size unless ChunkSize overrides it.
	UpdateRate float64 `toml:"update_rate"`
	// ChunkSize is the explicit number of samples per chunk. Zero derives
	// it from UpdateRate.
	ChunkSize int `toml:"chunk_size"`
	// BufferSize is the sliding analysis window length in samples. It must
	// hold at least one chunk; powers of two keep the FFT fast.
	BufferSize int `toml:"buffer_size"`
	// MinFrequency and MaxFrequency bound the rendered frequency range for
	// the integral mapper and anchor the filter bank tuning.
	MinFrequency float64 `toml:"min_frequency"`
	MaxFrequency float64 `toml:"max_frequency"`
	// LogarithmicSpacing spaces the integral mapper's LED boundaries
	// logarithmically rather than linearly.
	LogarithmicSpacing bool `toml:"logarithmic_spacing"`
	// RGBColorsFactory selects the base color table.
	RGBColorsFactory PaletteKind `toml:"rgb_colors_factory"`
	// Analyzer selects the spectral analysis strategy.
	Analyzer AnalyzerKind `toml:"analyzer"`
	// Mapper selects how frequency bins fold into per-LED brightness.
	Mapper MapperKind `toml:"mapper"`
	// ColorMode selects how brightness combines with the base colors.
	ColorMode ColorMode `toml:"color_mode"`
	// Easing remaps brightness before color mapping.
	Easing EasingKind `toml:"easing"`
	// Flip reverses the strip order.
	Flip bool `toml:"flip"`
	// Calibration is the amplitude that maps to full brightness. It depends
	// on the microphone and its gain; 3_000_000 suits the fft analyzer and
	// 1_000_000 the filterbank on the reference hardware. Zero selects
	// adaptive calibration that tracks the observed signal level.
	Calibration float64 `toml:"calibration"`
	// NumOctaves is the frequency span of the filter bank, starting at
	// MinFrequency.
	NumOctaves int `toml:"num_octaves"`
	// OverloadThreshold is the queue depth above which a back-pressure
	// warning is logged. Items are never dropped.
	OverloadThreshold int `toml:"overload_threshold"`
	// LogLevel is the minimum severity that gets logged.
	LogLevel LogLevel `toml:"log_level"`
	// Bands configures the frequency bands for the bands mapper.
	Bands []BandConfig `toml:"band"`
}

// BandConfig is the configuration for one named frequency band. A band
// aggregates the bins whose center frequency falls in (Low, High] and
// replicates the result across its run of adjacent LEDs.
type BandConfig struct {
	Name string  `toml:"name"`
	Low  float64 `toml:"low"`
	High float64 `toml:"high"`
	LEDs int     `toml:"leds"`
	// Color overrides the palette for this band's LEDs.
	Color *led.RGBColor `toml:"color,omitempty"`
}

// AnalyzerKind is the spectral analysis strategy.
type AnalyzerKind string

const (
	// FFTAnalyzer computes a windowed Fourier transform over the full
	// buffer. This is the default and by far the cheaper strategy.
	FFTAnalyzer AnalyzerKind = "fft"
	// FilterbankAnalyzer runs one band-pass filter per LED. Markedly more
	// expensive; it may not sustain high update rates on small boards.
	FilterbankAnalyzer AnalyzerKind = "filterbank"
)

// MapperKind is the bin-to-LED aggregation policy.
type MapperKind string

const (
	// DownsampleMapping averages contiguous groups of bins, one group per
	// LED.
	DownsampleMapping MapperKind = "downsample"
	// BandsMapping averages named frequency bands and replicates each
	// band's value across its LEDs.
	BandsMapping MapperKind = "bands"
	// IntegralMapping integrates the interpolated spectrum between per-LED
	// frequency boundaries.
	IntegralMapping MapperKind = "integral"
)

// PaletteKind selects the base color table.
type PaletteKind string

const (
	// WhitePalette sets every LED's base color to full white.
	WhitePalette PaletteKind = "white"
	// RainbowPalette distributes hues evenly along the strip.
	RainbowPalette PaletteKind = "rainbow"
)

// ColorMode is the brightness-to-color policy.
type ColorMode string

const (
	// ScaleColorMode multiplies each base color channel by the brightness.
	ScaleColorMode ColorMode = "scale"
	// HSVValueColorMode keeps the base color's hue and saturation and uses
	// the brightness as the HSV value channel.
	HSVValueColorMode ColorMode = "hsv-value"
)

// EasingKind names a brightness easing curve. All curves are monotonic and
// anchored at 0->0 and 1->1.
type EasingKind string

const (
	LinearEasing EasingKind = "linear"
	SquareEasing EasingKind = "square"
	SqrtEasing   EasingKind = "sqrt"
)

// Func returns the easing function for the kind, or nil if the kind is
// unknown.
func (k EasingKind) Func() Easing {
	switch k {
	case LinearEasing, "":
		return func(v float64) float64 { return v }
	case SquareEasing:
		return func(v float64) float64 { return v * v }
	case SqrtEasing:
		return math.Sqrt
	default:
		return nil
	}
}

// LogLevel is the minimum logged severity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// Level converts the config value to a slog level. Unknown values fall back
// to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DefaultConfig returns the configuration that the original hardware was
// tuned for: 9 LEDs, 44.1 kHz capture at 60 updates per second, an 8192
// sample window.
func DefaultConfig() Config {
	return Config{
		Device:             "term",
		Baud:               115200,
		LEDCount:           9,
		SampleRate:         44100,
		UpdateRate:         60,
		BufferSize:         8192,
		MinFrequency:       250,
		MaxFrequency:       4000,
		LogarithmicSpacing: true,
		RGBColorsFactory:   RainbowPalette,
		Analyzer:           FFTAnalyzer,
		Mapper:             DownsampleMapping,
		ColorMode:          ScaleColorMode,
		Easing:             LinearEasing,
		Calibration:        3_000_000,
		NumOctaves:         4,
		OverloadThreshold:  3,
		LogLevel:           LogInfo,
	}
}

// ParseConfig parses a configuration from a reader. Missing keys keep their
// DefaultConfig values.
func ParseConfig(r io.Reader) (*Config, error) {
	config := DefaultConfig()
	if err := toml.NewDecoder(r).Decode(&config); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	return &config, nil
}

// ChunkSamples returns the number of samples per audio chunk: ChunkSize if
// set, otherwise SampleRate/UpdateRate.
func (c *Config) ChunkSamples() int {
	if c.ChunkSize > 0 {
		return c.ChunkSize
	}
	if c.UpdateRate <= 0 {
		return 0
	}
	return int(float64(c.SampleRate) / c.UpdateRate)
}

// UpdatesPerSecond returns the effective number of chunks per second.
func (c *Config) UpdatesPerSecond() float64 {
	return float64(c.SampleRate) / float64(c.ChunkSamples())
}

// Validate validates the configuration. All returned errors are
// configuration errors: fatal at startup, never retried.
func (c *Config) Validate() error {
	switch {
	case c.Device == "":
		return errs.Configf("no device configured")
	case c.LEDCount < 1:
		return errs.Configf("led_count must be positive, got %d", c.LEDCount)
	case c.SampleRate < 1:
		return errs.Configf("sample_rate must be positive, got %d", c.SampleRate)
	case c.BufferSize < 2:
		return errs.Configf("buffer_size must be at least 2, got %d", c.BufferSize)
	case c.ChunkSamples() < 1:
		return errs.Configf(
			"update_rate %g at %d Hz yields no samples per chunk",
			c.UpdateRate, c.SampleRate)
	case c.ChunkSamples() > c.BufferSize:
		return errs.Configf(
			"chunk of %d samples does not fit the %d sample window; increase buffer_size",
			c.ChunkSamples(), c.BufferSize)
	case c.MinFrequency < 0:
		return errs.Configf("min_frequency must not be negative, got %g", c.MinFrequency)
	case c.MinFrequency >= c.MaxFrequency:
		return errs.Configf(
			"min_frequency %g must be below max_frequency %g",
			c.MinFrequency, c.MaxFrequency)
	case c.Calibration < 0:
		return errs.Configf("calibration must not be negative, got %g", c.Calibration)
	case c.OverloadThreshold < 1:
		return errs.Configf("overload_threshold must be positive, got %d", c.OverloadThreshold)
	}

	switch c.Analyzer {
	case FFTAnalyzer:
	case FilterbankAnalyzer:
		if c.NumOctaves < 1 {
			return errs.Configf("num_octaves must be positive, got %d", c.NumOctaves)
		}
	default:
		return errs.Configf("unknown analyzer %q", c.Analyzer)
	}

	switch c.RGBColorsFactory {
	case WhitePalette, RainbowPalette:
	default:
		return errs.Configf("unknown rgb_colors_factory %q", c.RGBColorsFactory)
	}

	switch c.ColorMode {
	case ScaleColorMode, HSVValueColorMode:
	default:
		return errs.Configf("unknown color_mode %q", c.ColorMode)
	}

	if c.Easing.Func() == nil {
		return errs.Configf("unknown easing %q", c.Easing)
	}

	switch c.Mapper {
	case DownsampleMapping, IntegralMapping:
	case BandsMapping:
		if err := c.validateBands(); err != nil {
			return err
		}
	default:
		return errs.Configf("unknown mapper %q", c.Mapper)
	}

	return nil
}

func (c *Config) validateBands() error {
	if len(c.Bands) == 0 {
		return errs.Configf("the bands mapper requires at least one [[band]]")
	}

	var ledSum int
	for i, b := range c.Bands {
		if b.LEDs < 1 {
			return errs.Configf("band %q must own at least one LED", b.Name)
		}
		if b.Low >= b.High {
			return errs.Configf("band %q range (%g, %g] is empty", b.Name, b.Low, b.High)
		}
		for _, other := range c.Bands[i+1:] {
			if b.Low < other.High && other.Low < b.High {
				return errs.Configf("band %q overlaps with band %q", b.Name, other.Name)
			}
		}
		ledSum += b.LEDs
	}
	if ledSum != c.LEDCount {
		return errs.Configf(
			"band LED counts sum to %d but led_count is %d", ledSum, c.LEDCount)
	}
	return nil
}

// BandMasks returns the configured bands in strip order for the band mapper.
func (c *Config) BandMasks() []bandmap.Band {
	bands := make([]bandmap.Band, len(c.Bands))
	for i, b := range c.Bands {
		bands[i] = bandmap.Band{
			Name: b.Name,
			Low:  b.Low,
			High: b.High,
			LEDs: b.LEDs,
		}
	}
	return bands
}

// BaseColors builds the base color table: the configured palette, with any
// per-band color overrides applied on top when the bands mapper is active.
func (c *Config) BaseColors() led.LEDs {
	var base led.LEDs
	switch c.RGBColorsFactory {
	case WhitePalette:
		base = led.White(c.LEDCount)
	default:
		base = led.Rainbow(c.LEDCount)
	}

	if c.Mapper == BandsMapping {
		i := 0
		for _, b := range c.Bands {
			if b.Color != nil {
				base.SetRange(i, i+b.LEDs, *b.Color)
			}
			i += b.LEDs
		}
	}
	return base
}
