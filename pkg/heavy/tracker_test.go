package heavy

import (
	"errors"
	"strconv"
	"testing"

	"github.com/Borislavv/cmsketch/pkg/sketch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracker(t *testing.T, k int) *Tracker[string] {
	t.Helper()
	sk, err := sketch.NewStringFromErrorRate(0.001, 0.01, 42)
	require.NoError(t, err)
	tr, err := NewTracker(sk, k)
	require.NoError(t, err)
	return tr
}

func TestTopKeepsMostFrequent(t *testing.T) {
	tr := newTracker(t, 3)
	for i := 0; i < 2000; i++ {
		require.NoError(t, tr.Observe("noise-"+strconv.Itoa(i), 1))
		if i%4 == 0 {
			require.NoError(t, tr.Observe("hot", 1))
		}
		if i%10 == 0 {
			require.NoError(t, tr.Observe("warm", 1))
		}
		if i%20 == 0 {
			require.NoError(t, tr.Observe("mild", 1))
		}
	}

	top := tr.Top()
	require.Len(t, top, 3)
	assert.Equal(t, []string{"hot", "warm", "mild"}, []string{top[0].Key, top[1].Key, top[2].Key})
	assert.GreaterOrEqual(t, top[0].Estimate, uint32(500))
	assert.GreaterOrEqual(t, top[1].Estimate, uint32(200))
	assert.GreaterOrEqual(t, top[2].Estimate, uint32(100))
}

func TestHeavyHitters(t *testing.T) {
	tr := newTracker(t, 10)
	require.NoError(t, tr.Observe("a", 600))
	require.NoError(t, tr.Observe("b", 300))
	for i := 0; i < 100; i++ {
		require.NoError(t, tr.Observe("tail-"+strconv.Itoa(i), 1))
	}

	hitters, err := tr.HeavyHitters(0.25)
	require.NoError(t, err)
	require.Len(t, hitters, 2)
	assert.Equal(t, "a", hitters[0].Key)
	assert.Equal(t, "b", hitters[1].Key)

	hitters, err = tr.HeavyHitters(0.5)
	require.NoError(t, err)
	require.Len(t, hitters, 1)

	for _, phi := range []float64{0, -1, 1.5} {
		_, err = tr.HeavyHitters(phi)
		assert.True(t, errors.Is(err, sketch.InvalidArgumentError))
	}
}

func TestObserveRejectsNonPositiveCount(t *testing.T) {
	tr := newTracker(t, 2)
	assert.True(t, errors.Is(tr.Observe("x", 0), sketch.InvalidArgumentError))
	assert.Empty(t, tr.Top())
	assert.Zero(t, tr.Sketch().TotalWeight())
}

func TestMergeReranksUnion(t *testing.T) {
	left, right := newTracker(t, 2), newTracker(t, 2)
	require.NoError(t, left.Observe("x", 50))
	require.NoError(t, left.Observe("y", 40))
	require.NoError(t, right.Observe("z", 45))
	require.NoError(t, right.Observe("y", 40))

	require.NoError(t, left.Merge(right))
	top := left.Top()
	require.Len(t, top, 2)
	assert.Equal(t, "y", top[0].Key)
	assert.GreaterOrEqual(t, top[0].Estimate, uint32(80))
	assert.Equal(t, "x", top[1].Key)
	assert.Equal(t, uint64(175), left.Sketch().TotalWeight())
}

func TestMergeRejectsIncompatible(t *testing.T) {
	left := newTracker(t, 2)
	sk, err := sketch.NewString(10, 2, 42)
	require.NoError(t, err)
	right, err := NewTracker(sk, 2)
	require.NoError(t, err)
	assert.True(t, errors.Is(left.Merge(right), sketch.IncompatibleSketchError))
}

func TestNewTrackerRejectsBadK(t *testing.T) {
	sk, err := sketch.NewString(10, 2, 42)
	require.NoError(t, err)
	_, err = NewTracker(sk, 0)
	assert.True(t, errors.Is(err, sketch.ConfigurationError))
}
