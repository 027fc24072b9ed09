package admission

// doorkeeper is a simple Bloom filter that keeps one-hit keys out of the frequency sketch.
// Its two probe seeds come from the admission seed, never from a global random source.
type doorkeeper struct {
	bits  []uint64
	seeds [2]uint64
}

func newDoorkeeper(capacity int, seed uint64) *doorkeeper {
	words := capacity / 64
	if words < 1 {
		words = 1
	}
	return &doorkeeper{
		bits:  make([]uint64, words),
		seeds: [2]uint64{hash64(seed, 1), hash64(seed, 2)},
	}
}

func (d *doorkeeper) probes(key uint64) (p1, p2 uint64) {
	n := uint64(len(d.bits) * 64)
	return hash64(d.seeds[0], key) % n, hash64(d.seeds[1], key) % n
}

// Allow reports whether key was seen before and marks it as seen.
func (d *doorkeeper) Allow(key uint64) bool {
	if d.Contains(key) {
		return true
	}
	p1, p2 := d.probes(key)
	d.bits[p1/64] |= 1 << (p1 % 64)
	d.bits[p2/64] |= 1 << (p2 % 64)
	return false
}

func (d *doorkeeper) Contains(key uint64) bool {
	p1, p2 := d.probes(key)
	b1 := (d.bits[p1/64] & (1 << (p1 % 64))) != 0
	b2 := (d.bits[p2/64] & (1 << (p2 % 64))) != 0
	return b1 && b2
}

func (d *doorkeeper) Reset() {
	clear(d.bits)
}

// hash64 is a murmur3-finalizer mixer keyed by seed.
func hash64(seed, key uint64) uint64 {
	x := key ^ seed
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}
