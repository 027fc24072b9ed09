package sketch

import (
	"fmt"
	"math"
)

// Dimensions derives width and depth for a target relative error epsilon and failure
// probability delta: width = ceil(e/epsilon), depth = ceil(ln(1/delta)).
// With probability at least 1-delta, Estimate(k) <= true(k) + epsilon*TotalWeight.
func Dimensions(epsilon, delta float64) (width, depth int, err error) {
	if !(epsilon > 0 && epsilon < 1) {
		return 0, 0, fmt.Errorf("%w: epsilon must be in (0, 1), got %v", ConfigurationError, epsilon)
	}
	if !(delta > 0 && delta < 1) {
		return 0, 0, fmt.Errorf("%w: delta must be in (0, 1), got %v", ConfigurationError, delta)
	}
	w := math.Ceil(math.E / epsilon)
	d := math.Ceil(math.Log(1 / delta))
	if w > math.MaxUint32 {
		return 0, 0, fmt.Errorf("%w: epsilon %v needs a width over 2^32", ConfigurationError, epsilon)
	}
	return int(w), int(math.Max(d, 1)), nil
}

// FromErrorRate creates a sketch sized by Dimensions.
func FromErrorRate[K any](codec Codec[K], epsilon, delta float64, seed uint64) (*Sketch[K], error) {
	width, depth, err := Dimensions(epsilon, delta)
	if err != nil {
		return nil, err
	}
	return New(codec, width, depth, seed)
}

// NewStringFromErrorRate creates a string-keyed sketch sized by Dimensions.
func NewStringFromErrorRate(epsilon, delta float64, seed uint64) (*Sketch[string], error) {
	return FromErrorRate[string](TextCodec[string]{}, epsilon, delta, seed)
}

// NewIntFromErrorRate creates an int64-keyed sketch sized by Dimensions.
func NewIntFromErrorRate(epsilon, delta float64, seed uint64) (*Sketch[int64], error) {
	return FromErrorRate[int64](IntegerCodec[int64]{}, epsilon, delta, seed)
}

// Epsilon is the relative error guaranteed by the current width (e/width).
func (s *Sketch[K]) Epsilon() float64 {
	return math.E / float64(s.matrix.width)
}

// Confidence is the probability 1-e^-depth that an estimate stays within ErrorBound.
func (s *Sketch[K]) Confidence() float64 {
	return 1 - math.Exp(-float64(s.matrix.depth))
}

// ErrorBound is the additive overestimate ceil(Epsilon*TotalWeight) which holds with probability Confidence.
func (s *Sketch[K]) ErrorBound() uint64 {
	return uint64(math.Ceil(s.Epsilon() * float64(s.total)))
}
