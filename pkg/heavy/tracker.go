// Package heavy tracks the most frequent keys of a stream on top of a Count-Min Sketch.
// The sketch supplies the counts; a bounded min-heap remembers which keys are worth reporting.
package heavy

import (
	"cmp"
	"container/heap"
	"fmt"
	"slices"

	"github.com/Borislavv/cmsketch/pkg/sketch"
)

// Candidate is a tracked key with its estimate at the time it was last observed.
type Candidate[K cmp.Ordered] struct {
	Key      K      `json:"key"`
	Estimate uint32 `json:"estimate"`
}

// Tracker keeps the k keys with the highest estimates. It is not safe for concurrent use.
type Tracker[K cmp.Ordered] struct {
	sketch *sketch.Sketch[K]
	k      int
	top    candidates[K]
}

func NewTracker[K cmp.Ordered](sk *sketch.Sketch[K], k int) (*Tracker[K], error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", sketch.ConfigurationError, k)
	}
	return &Tracker[K]{
		sketch: sk,
		k:      k,
		top:    candidates[K]{index: make(map[K]int, k)},
	}, nil
}

func (t *Tracker[K]) Sketch() *sketch.Sketch[K] {
	return t.sketch
}

// Observe adds count occurrences of key and refreshes its place among the candidates.
func (t *Tracker[K]) Observe(key K, count int64) error {
	if err := t.sketch.AddCount(key, count); err != nil {
		return err
	}
	t.offer(key, t.sketch.Estimate(key))
	return nil
}

func (t *Tracker[K]) offer(key K, est uint32) {
	if i, ok := t.top.index[key]; ok {
		t.top.items[i].Estimate = est
		heap.Fix(&t.top, i)
		return
	}
	if t.top.Len() < t.k {
		heap.Push(&t.top, Candidate[K]{Key: key, Estimate: est})
		return
	}
	if victim := t.top.items[0]; est > victim.Estimate {
		delete(t.top.index, victim.Key)
		t.top.items[0] = Candidate[K]{Key: key, Estimate: est}
		t.top.index[key] = 0
		heap.Fix(&t.top, 0)
	}
}

// Top returns the tracked candidates ordered by estimate, highest first; ties are ordered by key.
func (t *Tracker[K]) Top() []Candidate[K] {
	out := slices.Clone(t.top.items)
	slices.SortFunc(out, func(a, b Candidate[K]) int {
		if c := cmp.Compare(b.Estimate, a.Estimate); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return out
}

// HeavyHitters returns the candidates whose estimate is at least phi times the total weight.
func (t *Tracker[K]) HeavyHitters(phi float64) ([]Candidate[K], error) {
	if !(phi > 0 && phi <= 1) {
		return nil, fmt.Errorf("%w: phi must be in (0, 1], got %v", sketch.InvalidArgumentError, phi)
	}
	threshold := phi * float64(t.sketch.TotalWeight())
	var out []Candidate[K]
	for _, c := range t.Top() {
		if float64(c.Estimate) >= threshold {
			out = append(out, c)
		}
	}
	return out, nil
}

// Merge folds other's sketch into t and re-ranks the union of both candidate sets on the merged counts.
func (t *Tracker[K]) Merge(other *Tracker[K]) error {
	if err := t.sketch.Merge(other.sketch); err != nil {
		return err
	}
	keys := make([]K, 0, t.top.Len()+other.top.Len())
	for _, c := range t.top.items {
		keys = append(keys, c.Key)
	}
	for _, c := range other.top.items {
		keys = append(keys, c.Key)
	}
	t.top = candidates[K]{index: make(map[K]int, t.k)}
	for _, key := range keys {
		t.offer(key, t.sketch.Estimate(key))
	}
	return nil
}

// candidates is a min-heap by estimate with a key -> position index.
type candidates[K cmp.Ordered] struct {
	items []Candidate[K]
	index map[K]int
}

func (c *candidates[K]) Len() int { return len(c.items) }

func (c *candidates[K]) Less(i, j int) bool {
	return c.items[i].Estimate < c.items[j].Estimate
}

func (c *candidates[K]) Swap(i, j int) {
	c.items[i], c.items[j] = c.items[j], c.items[i]
	c.index[c.items[i].Key] = i
	c.index[c.items[j].Key] = j
}

func (c *candidates[K]) Push(x any) {
	item := x.(Candidate[K])
	c.index[item.Key] = len(c.items)
	c.items = append(c.items, item)
}

func (c *candidates[K]) Pop() any {
	last := c.items[len(c.items)-1]
	c.items = c.items[:len(c.items)-1]
	delete(c.index, last.Key)
	return last
}
