package trace

import (
	"bytes"
	"sort"

	"github.com/latticeflow/arrange/lattice"
)

// Cursor is the uniform navigation interface over a batch or a composite
// of batches (spec §4.2, §9 "Cursor merging across heterogeneous
// batches"). Implementations may specialize for cheaper layouts (e.g. a
// key-only cursor that skips decoding values, spec §9/SPEC_FULL
// "Cursor capability specialization"), but must all satisfy this
// capability set.
type Cursor[T lattice.Time[T]] interface {
	// KeyValid reports whether the cursor is positioned on a valid key.
	KeyValid() bool
	// Key returns the current key. Only valid when KeyValid is true.
	Key() []byte
	// ValValid reports whether the cursor is positioned on a valid value
	// within the current key.
	ValValid() bool
	// Val returns the current value. Only valid when ValValid is true.
	Val() any
	// MapTimes invokes fn for every (time, diff) pair at the current
	// (key, val).
	MapTimes(fn func(t T, d Diff))
	// StepKey advances to the next key in order.
	StepKey()
	// SeekKey advances to the first key >= target.
	SeekKey(target []byte)
	// StepVal advances to the next value within the current key.
	StepVal()
	// SeekVal advances to the first value >= target within the current
	// key, per order.
	SeekVal(target any, order ValueOrder)
	// RewindKeys resets the cursor onto the first key (if any).
	RewindKeys()
	// RewindVals resets the cursor onto the first value of the current
	// key (if any).
	RewindVals()
}

// BatchCursor is the Cursor implementation over a single Batch.
type BatchCursor[T lattice.Time[T]] struct {
	batch  *Batch[T]
	keyPos int
	valPos int // absolute index into batch.values
}

func (c *BatchCursor[T]) KeyValid() bool { return c.keyPos < len(c.batch.keys) }

func (c *BatchCursor[T]) Key() []byte {
	return []byte(c.batch.keys[c.keyPos].key)
}

func (c *BatchCursor[T]) ValValid() bool {
	if !c.KeyValid() {
		return false
	}
	ke := c.batch.keys[c.keyPos]
	return c.valPos >= ke.start && c.valPos < ke.end
}

func (c *BatchCursor[T]) Val() any {
	return c.batch.values[c.valPos].val
}

func (c *BatchCursor[T]) MapTimes(fn func(t T, d Diff)) {
	if !c.ValValid() {
		return
	}
	for _, td := range c.batch.values[c.valPos].times {
		fn(td.time, td.diff)
	}
}

func (c *BatchCursor[T]) StepKey() {
	c.keyPos++
	c.RewindVals()
}

func (c *BatchCursor[T]) SeekKey(target []byte) {
	ts := string(target)
	n := len(c.batch.keys)
	idx := sort.Search(n, func(i int) bool { return c.batch.keys[i].key >= ts })
	c.keyPos = idx
	c.RewindVals()
}

func (c *BatchCursor[T]) StepVal() {
	if c.ValValid() {
		c.valPos++
	}
}

func (c *BatchCursor[T]) SeekVal(target any, order ValueOrder) {
	if !c.KeyValid() {
		return
	}
	ke := c.batch.keys[c.keyPos]
	vals := c.batch.values
	idx := sort.Search(ke.end-ke.start, func(i int) bool {
		return order(vals[ke.start+i].val, target) >= 0
	})
	c.valPos = ke.start + idx
}

func (c *BatchCursor[T]) RewindKeys() {
	c.keyPos = 0
	c.RewindVals()
}

// MaybeContainsKey reports whether key might appear in this cursor's
// underlying batch, consulting its roaring-bitmap membership summary
// before any seek — the probabilistic fast path JoinCore uses to skip
// SeekKey calls against non-matching keys.
func (c *BatchCursor[T]) MaybeContainsKey(key []byte) bool { return c.batch.MaybeContainsKey(key) }

func (c *BatchCursor[T]) RewindVals() {
	if c.KeyValid() {
		c.valPos = c.batch.keys[c.keyPos].start
	} else {
		c.valPos = 0
	}
}

// KeyCursor is a specialized, cheaper cursor for callers that only need
// key presence, not values — the "cursor capability specialization" of
// SPEC_FULL's supplemented features, grounded on original_source's
// distinct cursor and on tsdb/tsm1's TSMIndexIterator which likewise
// skips value decoding.
type KeyCursor[T lattice.Time[T]] struct {
	inner   Cursor[T]
	valDone bool // the current key's single synthetic value was stepped past
}

func NewKeyCursor[T lattice.Time[T]](inner Cursor[T]) *KeyCursor[T] {
	return &KeyCursor[T]{inner: inner}
}

func (k *KeyCursor[T]) KeyValid() bool   { return k.inner.KeyValid() }
func (k *KeyCursor[T]) Key() []byte      { return k.inner.Key() }
func (k *KeyCursor[T]) StepKey()         { k.inner.StepKey(); k.valDone = false }
func (k *KeyCursor[T]) SeekKey(t []byte) { k.inner.SeekKey(t); k.valDone = false }
func (k *KeyCursor[T]) RewindKeys()      { k.inner.RewindKeys(); k.valDone = false }

// ValValid reports the presence of a single synthetic value per key:
// callers that only care about key membership never need to distinguish
// individual values.
func (k *KeyCursor[T]) ValValid() bool { return k.inner.KeyValid() && !k.valDone }

// Val returns nil: KeyCursor collapses every value under a key into one
// synthetic entry, matching arrange_by_self semantics (spec §3).
func (k *KeyCursor[T]) Val() any { return nil }

// StepVal steps past the key's one synthetic value: a KeyCursor exposes
// exactly one synthetic value per key.
func (k *KeyCursor[T]) StepVal() { k.valDone = true }

// SeekVal is a no-op: KeyCursor has no per-value ordering to seek within.
func (k *KeyCursor[T]) SeekVal(any, ValueOrder) {}

// RewindVals returns to the key's one synthetic value.
func (k *KeyCursor[T]) RewindVals() { k.valDone = false }

// MapTimes accumulates diffs across every value of the current key,
// summing them by time, since the caller only cares whether the key is
// present, not the per-value breakdown.
func (k *KeyCursor[T]) MapTimes(fn func(t T, d Diff)) {
	acc := make(map[T]Diff)
	var order []T
	for k.inner.RewindVals(); k.inner.ValValid(); k.inner.StepVal() {
		k.inner.MapTimes(func(t T, d Diff) {
			if _, ok := acc[t]; !ok {
				order = append(order, t)
			}
			acc[t] = acc[t].Add(d)
		})
	}
	for _, t := range order {
		if d := acc[t]; !d.IsZero() {
			fn(t, d)
		}
	}
}

// Materialize drains every (key, val, time, diff) entry out of a cursor
// into a flat update slice, the common first step for an operator that
// needs to re-batch a cursor's contents under a new key (map, the
// degree-distribution driver's successive group-bys).
func Materialize[T lattice.Time[T]](c Cursor[T]) []Update[T] {
	var out []Update[T]
	for c.RewindKeys(); c.KeyValid(); c.StepKey() {
		key := append([]byte(nil), c.Key()...)
		for c.RewindVals(); c.ValValid(); c.StepVal() {
			val := c.Val()
			c.MapTimes(func(t T, d Diff) {
				out = append(out, Update[T]{Key: key, Val: val, Time: t, Diff: d})
			})
		}
	}
	return out
}

// compareBytes is the canonical []byte order used for keys throughout
// the package, matching bytes.Compare semantics used by string < below.
func compareBytes(a, b []byte) int { return bytes.Compare(a, b) }
