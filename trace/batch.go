package trace

import (
	"bytes"
	"sort"

	"github.com/RoaringBitmap/roaring"
	"github.com/cespare/xxhash/v2"

	"github.com/latticeflow/arrange/lattice"
)

// timeDiff is one consolidated (time, diff) pair attached to a value.
type timeDiff[T lattice.Time[T]] struct {
	time T
	diff Diff
}

// valueEntry is one value within a key, carrying its consolidated times.
type valueEntry[T lattice.Time[T]] struct {
	val   any
	times []timeDiff[T]
}

// keyEntry indexes the range of values belonging to one key within the
// batch's flat values slice — the "trie-shaped" layout of spec §4.2:
// keys appear once, each followed by an offset into a values array.
type keyEntry struct {
	key        string
	start, end int // [start, end) into Batch.values
}

// Batch is an immutable, indexed chunk of updates covering the half-open
// time interval [Lower, Upper) (spec §3, §4.2). Batches are never mutated
// after construction; Trace splices them together and the compactor
// produces replacements rather than editing in place.
type Batch[T lattice.Time[T]] struct {
	lower, upper, since lattice.Antichain[T]

	keys    []keyEntry
	values  []valueEntry[T]
	valLess ValueOrder
	updates int // total (key,val,time,diff) entries, for metrics/sizing

	// membership is a compact summary of every key hash present in the
	// batch, letting JoinCore's seek calls reject a non-matching key
	// without a binary search through keys — the same role as
	// tsdb/tsm1's indirectIndex.MaybeContainsKey, implemented with a
	// roaring bitmap of key hashes instead of a min/max key range, since
	// an LSM batch's keys are not contiguous the way a TSM block's are.
	membership *roaring.Bitmap
}

// keyHash is the 32-bit hash used to populate and query a batch's
// membership summary.
func keyHash(key []byte) uint32 { return uint32(xxhash.Sum64(key)) }

// MaybeContainsKey reports whether key might be present in the batch. A
// false result is conclusive; a true result still requires the caller to
// seek and compare, since the hash may collide with an absent key.
func (b *Batch[T]) MaybeContainsKey(key []byte) bool {
	if b.membership == nil {
		return true
	}
	return b.membership.Contains(keyHash(key))
}

// NewBatch consolidates a (possibly unsorted) slice of updates into a
// fresh, immutable Batch. Equal (key, val, time) triples have their diffs
// summed; entries whose summed diff is zero are dropped, and values or
// keys left with no surviving times are dropped entirely (spec §4.2:
// "drop entries with diff = 0; drop (key, val) entirely if empty").
//
// Freshly minted batches carry since == lower (spec §3: "Freshly minted
// batches have since = lower").
func NewBatch[T lattice.Time[T]](updates []Update[T], lower, upper lattice.Antichain[T], valLess ValueOrder) *Batch[T] {
	sorted := make([]Update[T], len(updates))
	copy(sorted, updates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := bytes.Compare(sorted[i].Key, sorted[j].Key); c != 0 {
			return c < 0
		}
		return valLess(sorted[i].Val, sorted[j].Val) < 0
	})

	b := &Batch[T]{
		lower:   lower.Clone(),
		upper:   upper.Clone(),
		since:   lower.Clone(),
		valLess: valLess,
	}

	i := 0
	for i < len(sorted) {
		key := sorted[i].Key
		valStart := len(b.values)
		j := i
		for j < len(sorted) && bytes.Equal(sorted[j].Key, key) {
			k := j
			val := sorted[k].Val
			byTime := make(map[T]Diff)
			var order []T
			for k < len(sorted) && bytes.Equal(sorted[k].Key, key) && valLess(sorted[k].Val, val) == 0 {
				if _, seen := byTime[sorted[k].Time]; !seen {
					order = append(order, sorted[k].Time)
				}
				byTime[sorted[k].Time] = byTime[sorted[k].Time].Add(sorted[k].Diff)
				k++
			}
			var times []timeDiff[T]
			for _, t := range order {
				if d := byTime[t]; !d.IsZero() {
					times = append(times, timeDiff[T]{time: t, diff: d})
				}
			}
			if len(times) > 0 {
				b.values = append(b.values, valueEntry[T]{val: val, times: times})
				b.updates += len(times)
			}
			j = k
		}
		if len(b.values) > valStart {
			ke := keyEntry{key: string(key), start: valStart, end: len(b.values)}
			b.keys = append(b.keys, ke)
		}
		i = j
	}

	b.membership = roaring.New()
	for _, ke := range b.keys {
		b.membership.Add(keyHash([]byte(ke.key)))
	}

	return b
}

func (b *Batch[T]) Lower() lattice.Antichain[T] { return b.lower }
func (b *Batch[T]) Upper() lattice.Antichain[T] { return b.upper }
func (b *Batch[T]) Since() lattice.Antichain[T] { return b.since }

// Len returns the number of (key, val, time, diff) entries in the batch.
func (b *Batch[T]) Len() int { return b.updates }

// KeyCount returns the number of distinct keys in the batch.
func (b *Batch[T]) KeyCount() int { return len(b.keys) }

// Cursor returns a fresh cursor positioned on the first key (if any).
func (b *Batch[T]) Cursor() *BatchCursor[T] {
	return &BatchCursor[T]{batch: b, keyPos: 0, valPos: 0}
}

// Compact returns a new Batch whose times have been coarsened to
// frontier, summing diffs that become indistinguishable and dropping
// zeroed or emptied entries (spec §4.2 "Compaction of a batch to a
// frontier F"). The receiver is left untouched — batches are immutable.
func (b *Batch[T]) Compact(frontier *lattice.Antichain[T]) *Batch[T] {
	var updates []Update[T]
	c := b.Cursor()
	for ; c.KeyValid(); c.StepKey() {
		key := append([]byte(nil), c.Key()...)
		for ; c.ValValid(); c.StepVal() {
			val := c.Val()
			c.MapTimes(func(t T, d Diff) {
				updates = append(updates, Update[T]{
					Key: key, Val: val, Time: frontier.Coarsen(t), Diff: d,
				})
			})
		}
	}
	out := NewBatch(updates, b.lower, b.upper, b.valLess)
	out.since = frontier.Clone()
	return out
}
