package sketch

import (
	"math/bits"

	"github.com/zeebo/xxh3"
)

// golden is the splitmix64 increment (2^64 / phi).
const golden uint64 = 0x9e3779b97f4a7c15

// hashFamily maps a byte sequence to one column per row.
// Each row hashes with xxh3 under its own sub-seed; sub-seeds are derived from a single seed only.
type hashFamily struct {
	seeds []uint64
	width uint64
	mask  uint64 // width-1 when width is a power of two, zero otherwise
}

func newHashFamily(seed uint64, width, depth int) hashFamily {
	h := hashFamily{
		seeds: make([]uint64, depth),
		width: uint64(width),
	}
	for i := range h.seeds {
		h.seeds[i] = mix64(seed + uint64(i+1)*golden)
	}
	if h.width&(h.width-1) == 0 {
		h.mask = h.width - 1
	}
	return h
}

// column returns the counter column of data in the given row.
func (h hashFamily) column(row int, data []byte) int {
	return h.reduce(xxh3.HashSeed(data, h.seeds[row]))
}

// positions fills dst with one column per row and returns it.
func (h hashFamily) positions(dst []int, data []byte) []int {
	dst = dst[:0]
	for row := range h.seeds {
		dst = append(dst, h.column(row, data))
	}
	return dst
}

// reduce maps a 64-bit hash into [0, width).
// Power-of-two widths keep the low bits; other widths take the high word of hash*width,
// which is near-uniform without a division.
func (h hashFamily) reduce(x uint64) int {
	if h.mask != 0 || h.width == 1 {
		return int(x & h.mask)
	}
	hi, _ := bits.Mul64(x, h.width)
	return int(hi)
}

// mix64 is the splitmix64 finalizer.
func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
