package sketch

import (
	"fmt"
	"math"
)

// MaxCount is the value at which a counter saturates.
// A saturated counter never wraps, so extremely hot keys are overestimated instead of undercounted.
const MaxCount = math.MaxUint32

// counterMatrix is a depth x width grid of saturating counters stored row-major,
// so that the cells touched by a row scan are contiguous.
type counterMatrix struct {
	cells []uint32
	width int
	depth int
}

func newCounterMatrix(width, depth int) counterMatrix {
	return counterMatrix{
		cells: make([]uint32, width*depth),
		width: width,
		depth: depth,
	}
}

// increment adds delta to the counter at (row, col), clamping at MaxCount.
// Reports whether the counter is saturated afterwards.
func (m *counterMatrix) increment(row, col int, delta uint64) (saturated bool) {
	i := row*m.width + col
	cur := uint64(m.cells[i])
	if delta >= MaxCount-cur {
		m.cells[i] = MaxCount
		return true
	}
	m.cells[i] = uint32(cur + delta)
	return false
}

func (m *counterMatrix) get(row, col int) uint32 {
	return m.cells[row*m.width+col]
}

// mergeInto adds every counter of other into m; each sum saturates on its own.
func (m *counterMatrix) mergeInto(other *counterMatrix) error {
	if m.width != other.width || m.depth != other.depth {
		return fmt.Errorf("%w: matrix %dx%d vs %dx%d", IncompatibleSketchError,
			m.depth, m.width, other.depth, other.width)
	}
	for i, v := range other.cells {
		sum := uint64(m.cells[i]) + uint64(v)
		if sum > MaxCount {
			sum = MaxCount
		}
		m.cells[i] = uint32(sum)
	}
	return nil
}

func (m *counterMatrix) reset() {
	clear(m.cells)
}

func (m *counterMatrix) clone() counterMatrix {
	c := *m
	c.cells = append([]uint32(nil), m.cells...)
	return c
}
