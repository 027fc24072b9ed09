package sketch

import "sync"

// Synced guards a Sketch with a read-write lock so that it can be shared between goroutines.
// Each Add is applied atomically across all rows; Estimate and serialization share the read lock.
type Synced[K any] struct {
	mu sync.RWMutex
	sk *Sketch[K]
}

// NewSynced wraps sk. The caller must not use sk directly afterwards.
func NewSynced[K any](sk *Sketch[K]) *Synced[K] {
	return &Synced[K]{sk: sk}
}

// Add counts one occurrence of key.
func (s *Synced[K]) Add(key K) {
	s.mu.Lock()
	s.sk.Add(key)
	s.mu.Unlock()
}

// AddCount counts count occurrences of key; see Sketch.AddCount.
func (s *Synced[K]) AddCount(key K, count int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sk.AddCount(key, count)
}

// Estimate returns the current estimate of key.
func (s *Synced[K]) Estimate(key K) uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sk.Estimate(key)
}

// Merge folds other into s. other is copied under its own read lock first,
// so the two locks are never held at the same time.
func (s *Synced[K]) Merge(other *Synced[K]) error {
	if s == other {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.sk.Merge(s.sk.Clone())
	}
	return s.MergeSketch(other.Snapshot())
}

// MergeSketch folds a plain sketch into s.
func (s *Synced[K]) MergeSketch(other *Sketch[K]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sk.Merge(other)
}

// Snapshot returns a private copy of the current sketch.
func (s *Synced[K]) Snapshot() *Sketch[K] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sk.Clone()
}

// Replace swaps the guarded sketch for sk, returning the previous one.
func (s *Synced[K]) Replace(sk *Sketch[K]) *Sketch[K] {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.sk
	s.sk = sk
	return prev
}

// Reset zeroes the guarded sketch.
func (s *Synced[K]) Reset() {
	s.mu.Lock()
	s.sk.Reset()
	s.mu.Unlock()
}

// ToBytes serializes the guarded sketch under the read lock.
func (s *Synced[K]) ToBytes() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sk.ToBytes()
}

// TotalWeight returns the total weight of the guarded sketch.
func (s *Synced[K]) TotalWeight() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sk.TotalWeight()
}

// Stats returns the immutable shape of the sketch plus its current weight.
func (s *Synced[K]) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sk.Stats()
}
