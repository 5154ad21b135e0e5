// Package errs defines the error kinds shared across the pipeline.
//
// A ConfigError means the setup can never succeed and must be surfaced at
// startup. A RangeError means a runtime value fell outside its expected
// domain; the pipeline aborts rather than rendering garbage.
package errs

import "fmt"

// ConfigError reports an invalid configuration or component setup.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

// Configf returns a new ConfigError with a formatted message.
func Configf(format string, args ...any) error {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// RangeError reports a value outside the domain a component can handle.
type RangeError struct {
	msg string
}

func (e *RangeError) Error() string { return e.msg }

// Rangef returns a new RangeError with a formatted message.
func Rangef(format string, args ...any) error {
	return &RangeError{msg: fmt.Sprintf(format, args...)}
}
