// Package sketch implements a Count-Min Sketch: a fixed-size frequency estimator whose
// estimates are never below the true count and exceed it by at most ε·N with probability 1-δ,
// where N is the total weight added.
//
// A Sketch is generic over its key type. The key codec (text or integer) is chosen once at
// construction and fixed for the lifetime of the instance. A Sketch is not safe for concurrent
// mutation, wrap it with Synced when it is shared between goroutines.
package sketch

import (
	"fmt"
	"math"
)

// keyScratch is the stack buffer size used for encoding keys; longer keys spill to the heap.
const keyScratch = 64

// Sketch is a depth x width Count-Min Sketch over keys of type K.
type Sketch[K any] struct {
	codec  Codec[K]
	hashes hashFamily
	matrix counterMatrix
	seed   uint64
	total  uint64 // sum of all weights ever added, saturating
}

// New creates an empty sketch with explicit dimensions.
// Two sketches built with the same codec, width, depth and seed hash identically and can be merged.
func New[K any](codec Codec[K], width, depth int, seed uint64) (*Sketch[K], error) {
	if codec == nil {
		return nil, fmt.Errorf("%w: nil key codec", ConfigurationError)
	}
	if width <= 0 {
		return nil, fmt.Errorf("%w: width must be positive, got %d", ConfigurationError, width)
	}
	if depth <= 0 {
		return nil, fmt.Errorf("%w: depth must be positive, got %d", ConfigurationError, depth)
	}
	if uint64(width) > math.MaxUint32 || uint64(depth) > math.MaxUint32 || uint64(width)*uint64(depth) > maxCells {
		return nil, fmt.Errorf("%w: dimensions %dx%d are too large", ConfigurationError, depth, width)
	}
	return &Sketch[K]{
		codec:  codec,
		hashes: newHashFamily(seed, width, depth),
		matrix: newCounterMatrix(width, depth),
		seed:   seed,
	}, nil
}

// NewString creates a sketch over string keys.
func NewString(width, depth int, seed uint64) (*Sketch[string], error) {
	return New[string](TextCodec[string]{}, width, depth, seed)
}

// NewInt creates a sketch over int64 keys.
func NewInt(width, depth int, seed uint64) (*Sketch[int64], error) {
	return New[int64](IntegerCodec[int64]{}, width, depth, seed)
}

// Width is the number of counters per row.
func (s *Sketch[K]) Width() int { return s.matrix.width }

// Depth is the number of rows, one per hash function.
func (s *Sketch[K]) Depth() int { return s.matrix.depth }

// Seed is the value every row hash is derived from.
func (s *Sketch[K]) Seed() uint64 { return s.seed }

// Kind is the key codec kind.
func (s *Sketch[K]) Kind() Kind { return s.codec.Kind() }

// TotalWeight is the saturating sum of every count added or merged in.
func (s *Sketch[K]) TotalWeight() uint64 { return s.total }

// SizeInBytes returns the memory taken by the counters.
func (s *Sketch[K]) SizeInBytes() int {
	return len(s.matrix.cells) * counterSize
}

// Add counts one occurrence of key.
func (s *Sketch[K]) Add(key K) {
	s.add(key, 1)
}

// AddCount counts count occurrences of key. A non-positive count is rejected
// with InvalidArgumentError before any counter is touched.
func (s *Sketch[K]) AddCount(key K, count int64) error {
	if count <= 0 {
		return fmt.Errorf("%w: count must be positive, got %d", InvalidArgumentError, count)
	}
	s.add(key, uint64(count))
	return nil
}

func (s *Sketch[K]) add(key K, n uint64) {
	var scratch [keyScratch]byte
	data := s.codec.Encode(scratch[:0], key)
	for row := 0; row < s.matrix.depth; row++ {
		s.matrix.increment(row, s.hashes.column(row, data), n)
	}
	s.total = addSaturating(s.total, n)
}

// Estimate returns the minimum counter over all rows for key.
// The result is never less than the number of times key was added.
func (s *Sketch[K]) Estimate(key K) uint32 {
	var scratch [keyScratch]byte
	data := s.codec.Encode(scratch[:0], key)
	est := uint32(MaxCount)
	for row := 0; row < s.matrix.depth; row++ {
		if v := s.matrix.get(row, s.hashes.column(row, data)); v < est {
			est = v
		}
	}
	return est
}

// Positions returns the counter column of key in every row.
func (s *Sketch[K]) Positions(key K) []int {
	var scratch [keyScratch]byte
	return s.hashes.positions(make([]int, 0, s.matrix.depth), s.codec.Encode(scratch[:0], key))
}

// Merge adds the counters and total weight of other into s, as if s had also seen other's stream.
// Sketches must be hash-compatible; otherwise IncompatibleSketchError is returned and neither is changed.
func (s *Sketch[K]) Merge(other *Sketch[K]) error {
	if err := s.compatible(other); err != nil {
		return err
	}
	if err := s.matrix.mergeInto(&other.matrix); err != nil {
		return err
	}
	s.total = addSaturating(s.total, other.total)
	return nil
}

// Merged returns a new sketch holding the union of a and b. Neither input is modified.
func Merged[K any](a, b *Sketch[K]) (*Sketch[K], error) {
	if err := a.compatible(b); err != nil {
		return nil, err
	}
	out := a.Clone()
	if err := out.Merge(b); err != nil {
		return nil, err
	}
	return out, nil
}

// Compatible reports whether other can be merged into s.
func (s *Sketch[K]) Compatible(other *Sketch[K]) bool {
	return s.compatible(other) == nil
}

func (s *Sketch[K]) compatible(other *Sketch[K]) error {
	switch {
	case other == nil:
		return fmt.Errorf("%w: nil sketch", IncompatibleSketchError)
	case s.matrix.width != other.matrix.width:
		return fmt.Errorf("%w: width %d vs %d", IncompatibleSketchError, s.matrix.width, other.matrix.width)
	case s.matrix.depth != other.matrix.depth:
		return fmt.Errorf("%w: depth %d vs %d", IncompatibleSketchError, s.matrix.depth, other.matrix.depth)
	case s.seed != other.seed:
		return fmt.Errorf("%w: seed %d vs %d", IncompatibleSketchError, s.seed, other.seed)
	case s.codec.Kind() != other.codec.Kind():
		return fmt.Errorf("%w: key codec %s vs %s", IncompatibleSketchError, s.codec.Kind(), other.codec.Kind())
	}
	return nil
}

// Clone returns a deep copy of s.
func (s *Sketch[K]) Clone() *Sketch[K] {
	c := *s
	c.matrix = s.matrix.clone()
	return &c
}

// Reset zeroes all counters and the total weight. Dimensions and seed are kept.
func (s *Sketch[K]) Reset() {
	s.matrix.reset()
	s.total = 0
}

func addSaturating(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// Stats summarizes a sketch for reporting.
type Stats struct {
	Kind        string  `json:"kind"`
	Width       int     `json:"width"`
	Depth       int     `json:"depth"`
	Seed        uint64  `json:"seed"`
	TotalWeight uint64  `json:"totalWeight"`
	Epsilon     float64 `json:"epsilon"`
	Confidence  float64 `json:"confidence"`
	ErrorBound  uint64  `json:"errorBound"`
	SizeBytes   int     `json:"sizeBytes"`
}

func (s *Sketch[K]) Stats() Stats {
	return Stats{
		Kind:        s.Kind().String(),
		Width:       s.Width(),
		Depth:       s.Depth(),
		Seed:        s.seed,
		TotalWeight: s.total,
		Epsilon:     s.Epsilon(),
		Confidence:  s.Confidence(),
		ErrorBound:  s.ErrorBound(),
		SizeBytes:   s.SizeInBytes(),
	}
}
