package buffer

import "sync/atomic"

// Ring is a lock-free circular buffer for recording access keys.
// Any number of goroutines may Push; a single goroutine drains.
// When producers outrun the drainer the oldest keys are overwritten.
type Ring struct {
	buffer []atomic.Uint64
	mask   uint64
	pos    atomic.Uint64
	read   uint64 // owned by the drainer
}

func NewRingBuffer(size int) *Ring {
	if size <= 0 || size&(size-1) != 0 {
		panic("ring buffer size must be power of 2")
	}
	return &Ring{
		buffer: make([]atomic.Uint64, size),
		mask:   uint64(size - 1),
	}
}

func (r *Ring) Push(key uint64) {
	pos := r.pos.Add(1) - 1
	r.buffer[pos&r.mask].Store(key)
}

// Len returns the number of keys pushed and not drained yet, capped by the buffer size.
// Like Drain, it belongs to the draining goroutine.
func (r *Ring) Len() int {
	n := r.pos.Load() - r.read
	if n > uint64(len(r.buffer)) {
		n = uint64(len(r.buffer))
	}
	return int(n)
}

// Drain calls fn for every key pushed since the previous Drain and returns how many were visited.
func (r *Ring) Drain(fn func(key uint64)) int {
	end := r.pos.Load()
	start := r.read
	if end-start > uint64(len(r.buffer)) {
		start = end - uint64(len(r.buffer))
	}
	for i := start; i < end; i++ {
		fn(r.buffer[i&r.mask].Load())
	}
	r.read = end
	return int(end - start)
}
