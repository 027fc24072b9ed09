// Package admission decides whether a new cache entry deserves to replace an eviction victim,
// using a windowed TinyLFU built on a Count-Min Sketch.
package admission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Borislavv/cmsketch/pkg/buffer"
	"github.com/Borislavv/cmsketch/pkg/config"
	"github.com/Borislavv/cmsketch/pkg/sketch"
	"github.com/Borislavv/cmsketch/pkg/utils"
	"github.com/rs/zerolog/log"
)

const (
	bufferSize    = 1 << 16
	sketchWidth   = 1 << 15
	sketchDepth   = 5
	flushInterval = 500 * time.Millisecond
)

// TinyLFU estimates key popularity over a sliding window.
//
// Counts live in two sketch generations. When the current generation has absorbed Window
// additions it becomes the previous one and a fresh sketch takes its place, so old traffic
// fades out without ever decrementing a counter. Frequency is current + previous/2,
// plus one when the doorkeeper has already seen the key.
type TinyLFU struct {
	ctx        context.Context
	mu         sync.Mutex
	buf        *buffer.Ring
	current    *sketch.Sketch[uint64]
	previous   *sketch.Sketch[uint64]
	doorkeeper *doorkeeper
	window     uint64
	seed       uint64
}

func NewTinyLFU(ctx context.Context, cfg config.Admission, seed uint64) (*TinyLFU, error) {
	if cfg.Window == 0 {
		return nil, fmt.Errorf("%w: admission window must be positive", sketch.ConfigurationError)
	}
	current, err := newGeneration(seed)
	if err != nil {
		return nil, err
	}
	previous, _ := newGeneration(seed)

	t := &TinyLFU{
		ctx:        ctx,
		buf:        buffer.NewRingBuffer(bufferSize),
		current:    current,
		previous:   previous,
		doorkeeper: newDoorkeeper(cfg.DoorkeeperBits, seed),
		window:     cfg.Window,
		seed:       seed,
	}
	go t.runTinyLFURunner()
	return t, nil
}

func newGeneration(seed uint64) (*sketch.Sketch[uint64], error) {
	return sketch.New[uint64](sketch.IntegerCodec[uint64]{}, sketchWidth, sketchDepth, seed)
}

func (t *TinyLFU) runTinyLFURunner() {
	tick := utils.NewTicker(t.ctx, flushInterval)
	for {
		select {
		case <-t.ctx.Done():
			log.Debug().Msg("[admission] runner has been closed")
			return
		case <-tick:
			t.Flush()
		}
	}
}

// Record notes an access without taking the lock; it is counted on the next Flush.
func (t *TinyLFU) Record(key uint64) {
	t.buf.Push(key)
}

// Flush counts every recorded access. It is also called periodically by the runner.
func (t *TinyLFU) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Drain(t.increment)
}

// Increment counts an access immediately.
func (t *TinyLFU) Increment(key uint64) {
	t.mu.Lock()
	t.increment(key)
	t.mu.Unlock()
}

func (t *TinyLFU) increment(key uint64) {
	// the first sighting only goes into the doorkeeper
	if !t.doorkeeper.Allow(key) {
		return
	}
	t.current.Add(key)
	if t.current.TotalWeight() >= t.window {
		t.age()
	}
}

func (t *TinyLFU) age() {
	t.previous, t.current = t.current, t.previous
	t.current.Reset()
	t.doorkeeper.Reset()
	log.Debug().Uint64("window", t.window).Msg("[admission] frequency window rotated")
}

// Frequency returns the windowed popularity estimate of key.
func (t *TinyLFU) Frequency(key uint64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frequency(key)
}

func (t *TinyLFU) frequency(key uint64) uint64 {
	freq := uint64(t.current.Estimate(key)) + uint64(t.previous.Estimate(key))/2
	if t.doorkeeper.Contains(key) {
		freq++
	}
	return freq
}

// Admit reports whether candidate is at least as popular as victim.
func (t *TinyLFU) Admit(candidate, victim uint64) bool {
	c, v := t.Compare(candidate, victim)
	return c >= v
}

// Compare records an access of candidate and returns both frequencies from one consistent view.
func (t *TinyLFU) Compare(candidate, victim uint64) (candidateFreq, victimFreq uint64) {
	t.Record(candidate)

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frequency(candidate), t.frequency(victim)
}
