package admission

import (
	"context"
	"errors"
	"testing"

	"github.com/Borislavv/cmsketch/pkg/config"
	"github.com/Borislavv/cmsketch/pkg/sketch"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
}

func newTestTinyLFU(t *testing.T, window uint64) *TinyLFU {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	lfu, err := NewTinyLFU(ctx, config.Admission{Window: window, DoorkeeperBits: 1 << 12}, 42)
	require.NoError(t, err)
	return lfu
}

func TestFrequencyCountsDoorkeeperThenSketch(t *testing.T) {
	lfu := newTestTinyLFU(t, 1<<20)
	assert.Zero(t, lfu.Frequency(1))

	lfu.Increment(1)
	assert.Equal(t, uint64(1), lfu.Frequency(1), "first sighting stays in the doorkeeper")

	lfu.Increment(1)
	lfu.Increment(1)
	assert.Equal(t, uint64(3), lfu.Frequency(1))
}

func TestAdmitPrefersPopularKeys(t *testing.T) {
	lfu := newTestTinyLFU(t, 1<<20)
	for i := 0; i < 10; i++ {
		lfu.Increment(100)
	}
	lfu.Increment(200)

	assert.False(t, lfu.Admit(200, 100))
	assert.True(t, lfu.Admit(100, 200))
	assert.True(t, lfu.Admit(300, 400), "equally unknown keys are admitted")
}

func TestRecordIsCountedOnFlush(t *testing.T) {
	lfu := newTestTinyLFU(t, 1<<20)
	for i := 0; i < 5; i++ {
		lfu.Record(9)
	}
	lfu.Flush()
	assert.Equal(t, uint64(5), lfu.Frequency(9))
}

func TestWindowAgesOldTraffic(t *testing.T) {
	lfu := newTestTinyLFU(t, 10)

	// one doorkeeper hit plus ten sketch hits fill the window exactly once
	for i := 0; i < 11; i++ {
		lfu.Increment(5)
	}
	assert.Equal(t, uint64(5), lfu.Frequency(5), "previous generation counts half")

	for i := 0; i < 11; i++ {
		lfu.Increment(6)
	}
	assert.Zero(t, lfu.Frequency(5), "two windows later the key is forgotten")
	assert.Equal(t, uint64(5), lfu.Frequency(6))
}

func TestNewTinyLFURejectsZeroWindow(t *testing.T) {
	_, err := NewTinyLFU(context.Background(), config.Admission{}, 1)
	assert.True(t, errors.Is(err, sketch.ConfigurationError))
}

func TestDoorkeeperIsSeedDeterministic(t *testing.T) {
	a, b := newDoorkeeper(1024, 7), newDoorkeeper(1024, 7)
	assert.Equal(t, a.seeds, b.seeds)
	assert.False(t, a.Allow(33))
	assert.True(t, a.Allow(33))
	assert.True(t, a.Contains(33))
	assert.False(t, b.Contains(33))
	a.Reset()
	assert.False(t, a.Contains(33))
}
