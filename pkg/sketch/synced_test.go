package sketch

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncedConcurrentAdds(t *testing.T) {
	sk, err := NewString(256, 4, 1)
	require.NoError(t, err)
	s := NewSynced(sk)

	const workers, perWorker = 8, 2000
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				s.Add("hot")
				assert.NoError(t, s.AddCount("w"+strconv.Itoa(w), 2))
				_ = s.Estimate("hot")
			}
		}(w)
	}
	wg.Wait()

	assert.GreaterOrEqual(t, s.Estimate("hot"), uint32(workers*perWorker))
	assert.Equal(t, uint64(workers*perWorker*3), s.TotalWeight())
	for w := 0; w < workers; w++ {
		assert.GreaterOrEqual(t, s.Estimate("w"+strconv.Itoa(w)), uint32(perWorker*2))
	}
}

func TestSyncedMerge(t *testing.T) {
	a, err := NewInt(64, 3, 2)
	require.NoError(t, err)
	b, err := NewInt(64, 3, 2)
	require.NoError(t, err)
	sa, sb := NewSynced(a), NewSynced(b)
	sa.Add(1)
	sb.Add(1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); assert.NoError(t, sa.Merge(sb)) }()
	go func() { defer wg.Done(); assert.NoError(t, sb.Merge(sa)) }()
	wg.Wait()

	assert.GreaterOrEqual(t, sa.Estimate(1), uint32(2))
	assert.GreaterOrEqual(t, sb.Estimate(1), uint32(2))

	before := sa.TotalWeight()
	require.NoError(t, sa.Merge(sa))
	assert.Equal(t, 2*before, sa.TotalWeight())
}

func TestSyncedSnapshotIsPrivate(t *testing.T) {
	sk, err := NewString(16, 2, 1)
	require.NoError(t, err)
	s := NewSynced(sk)
	s.Add("a")
	snap := s.Snapshot()
	s.Add("a")
	assert.Equal(t, uint32(1), snap.Estimate("a"))

	fresh, err := NewString(16, 2, 1)
	require.NoError(t, err)
	prev := s.Replace(fresh)
	assert.Equal(t, uint32(2), prev.Estimate("a"))
	assert.Zero(t, s.Estimate("a"))

	s.Add("b")
	s.Reset()
	assert.Zero(t, s.Stats().TotalWeight)
	assert.Len(t, s.ToBytes(), headerSize+16*2*counterSize)
}
