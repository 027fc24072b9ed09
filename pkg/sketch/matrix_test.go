package sketch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrixRowMajor(t *testing.T) {
	m := newCounterMatrix(3, 2)
	m.increment(1, 2, 5)
	assert.Equal(t, uint32(5), m.get(1, 2))
	assert.Equal(t, uint32(5), m.cells[1*3+2])
}

func TestMatrixSaturates(t *testing.T) {
	m := newCounterMatrix(1, 1)
	assert.False(t, m.increment(0, 0, MaxCount-1))
	assert.True(t, m.increment(0, 0, 1))
	assert.Equal(t, uint32(MaxCount), m.get(0, 0))
	assert.True(t, m.increment(0, 0, 1))
	assert.Equal(t, uint32(MaxCount), m.get(0, 0))
	assert.True(t, m.increment(0, 0, 1<<40))
	assert.Equal(t, uint32(MaxCount), m.get(0, 0))
}

func TestMatrixMergeInto(t *testing.T) {
	a, b := newCounterMatrix(2, 2), newCounterMatrix(2, 2)
	a.increment(0, 0, 3)
	b.increment(0, 0, 4)
	b.increment(1, 1, MaxCount)
	a.increment(1, 1, 10)

	require.NoError(t, a.mergeInto(&b))
	assert.Equal(t, uint32(7), a.get(0, 0))
	assert.Equal(t, uint32(MaxCount), a.get(1, 1))
	assert.Equal(t, uint32(4), b.get(0, 0), "source must not change")
}

func TestMatrixMergeShapeMismatch(t *testing.T) {
	a, b := newCounterMatrix(2, 3), newCounterMatrix(3, 2)
	a.increment(0, 0, 1)
	err := a.mergeInto(&b)
	assert.True(t, errors.Is(err, IncompatibleSketchError))
	assert.Equal(t, uint32(1), a.get(0, 0))
}
