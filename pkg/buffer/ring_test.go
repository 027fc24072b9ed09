package buffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingDrainsInOrder(t *testing.T) {
	r := NewRingBuffer(8)
	for i := uint64(1); i <= 5; i++ {
		r.Push(i)
	}
	assert.Equal(t, 5, r.Len())

	var got []uint64
	assert.Equal(t, 5, r.Drain(func(k uint64) { got = append(got, k) }))
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, got)
	assert.Zero(t, r.Len())
	assert.Zero(t, r.Drain(func(uint64) { t.Fatal("nothing left to drain") }))
}

func TestRingKeepsNewestOnOverflow(t *testing.T) {
	r := NewRingBuffer(4)
	for i := uint64(0); i < 10; i++ {
		r.Push(i)
	}
	var got []uint64
	r.Drain(func(k uint64) { got = append(got, k) })
	assert.Equal(t, []uint64{6, 7, 8, 9}, got)
}

func TestRingConcurrentPush(t *testing.T) {
	r := NewRingBuffer(1 << 12)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				r.Push(7)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 2000, r.Drain(func(k uint64) { assert.Equal(t, uint64(7), k) }))
}

func TestRingPanicsOnBadSize(t *testing.T) {
	assert.Panics(t, func() { NewRingBuffer(3) })
	assert.Panics(t, func() { NewRingBuffer(0) })
}
