package trace

import (
	"sort"

	"github.com/latticeflow/arrange/lattice"
)

// Accumulated is one (val, diff) pair as observed by accumulating a
// cursor's updates up to some query time.
type Accumulated struct {
	Val  any
	Diff Diff
}

// AccumulateKey walks a cursor positioned (or seekable) to key and sums
// every (val, diff) whose time is <= at, returning the consolidated,
// zero-diff-dropped contents for that key (spec §3: "a collection at
// time t contains data with multiplicity = sum of diff over all updates
// whose time <= t").
func AccumulateKey[T lattice.Time[T]](c Cursor[T], key []byte, at T) []Accumulated {
	c.SeekKey(key)
	var out []Accumulated
	if !c.KeyValid() || compareBytes(c.Key(), key) != 0 {
		return out
	}
	for ; c.ValValid(); c.StepVal() {
		val := c.Val()
		var sum Diff
		c.MapTimes(func(t T, d Diff) {
			if t.LessEqual(at) {
				sum = sum.Add(d)
			}
		})
		if !sum.IsZero() {
			out = append(out, Accumulated{Val: val, Diff: sum})
		}
	}
	return out
}

// ConsolidateUpdates sums diffs of updates sharing (key, val, time) and
// drops any whose resulting diff is zero, the same normalization Batch
// construction performs — exposed standalone for operators (join,
// reduce) that produce raw update lists before wrapping them in a batch,
// and for the element-wise `consolidate` operator named in spec §6.
func ConsolidateUpdates[T lattice.Time[T]](updates []Update[T], valLess ValueOrder) []Update[T] {
	type group struct {
		key []byte
		val any
	}
	sorted := make([]Update[T], len(updates))
	copy(sorted, updates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := compareBytes(sorted[i].Key, sorted[j].Key); c != 0 {
			return c < 0
		}
		return valLess(sorted[i].Val, sorted[j].Val) < 0
	})

	var out []Update[T]
	i := 0
	for i < len(sorted) {
		j := i
		g := group{key: sorted[i].Key, val: sorted[i].Val}
		acc := make(map[T]Diff)
		var order []T
		for j < len(sorted) && compareBytes(sorted[j].Key, g.key) == 0 && valLess(sorted[j].Val, g.val) == 0 {
			if _, ok := acc[sorted[j].Time]; !ok {
				order = append(order, sorted[j].Time)
			}
			acc[sorted[j].Time] = acc[sorted[j].Time].Add(sorted[j].Diff)
			j++
		}
		for _, t := range order {
			if d := acc[t]; !d.IsZero() {
				out = append(out, Update[T]{Key: g.key, Val: g.val, Time: t, Diff: d})
			}
		}
		i = j
	}
	return out
}
