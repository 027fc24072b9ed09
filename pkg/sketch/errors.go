package sketch

import "errors"

var (
	// ConfigurationError is returned when a sketch cannot be built from the given dimensions or error rates.
	ConfigurationError = errors.New("invalid sketch configuration")

	// InvalidArgumentError is returned for a non-positive count passed to AddCount.
	InvalidArgumentError = errors.New("invalid argument")

	// IncompatibleSketchError is returned by Merge when sketches differ in width, depth, seed or key codec.
	IncompatibleSketchError = errors.New("incompatible sketch")

	// FormatError is returned when a serialized snapshot cannot be decoded.
	FormatError = errors.New("invalid sketch format")
)
