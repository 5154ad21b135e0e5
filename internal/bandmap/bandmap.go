// Package bandmap folds amplitude frames into a fixed number of per-LED
// brightness values, by contiguous downsampling, named frequency bands, or
// piecewise-integral interpolation.
package bandmap

// Mapper produces one brightness value per LED from an amplitude frame.
// Mappers are bound to an analyzer's bin frequencies at construction and
// validate their masks and boundaries eagerly there.
type Mapper interface {
	// Map returns one brightness per LED, parallel to the strip. The
	// returned slice is reused across calls.
	Map(amps []float64) ([]float64, error)
}
