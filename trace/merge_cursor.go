package trace

import (
	"container/heap"

	"github.com/latticeflow/arrange/lattice"
)

// MergeCursor presents several cursors (over several batches, or a
// trace's batches plus an imported cursor) as a single cursor iterating
// keys in merged order; for each key it iterates values in merged order
// across the batches that contain it, and per value yields the union of
// all (time, diff) pairs (spec §4.2, §4.8).
type MergeCursor[T lattice.Time[T]] struct {
	cursors []Cursor[T]
	valLess ValueOrder

	keyHeap  cursorHeap[T]
	active   []int // indices into cursors sharing the current key
	valGroup []int // subset of active sharing the current value
}

// NewMergeCursor builds a cursor-of-cursors over the given sub-cursors.
func NewMergeCursor[T lattice.Time[T]](valLess ValueOrder, cursors ...Cursor[T]) *MergeCursor[T] {
	m := &MergeCursor[T]{cursors: cursors, valLess: valLess}
	m.RewindKeys()
	return m
}

type cursorHeapItem[T lattice.Time[T]] struct {
	idx int
	key []byte
}

type cursorHeap[T lattice.Time[T]] []cursorHeapItem[T]

func (h cursorHeap[T]) Len() int            { return len(h) }
func (h cursorHeap[T]) Less(i, j int) bool  { return compareBytes(h[i].key, h[j].key) < 0 }
func (h cursorHeap[T]) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap[T]) Push(x interface{}) { *h = append(*h, x.(cursorHeapItem[T])) }
func (h *cursorHeap[T]) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (m *MergeCursor[T]) rebuildKeyHeap() {
	m.keyHeap = m.keyHeap[:0]
	for i, c := range m.cursors {
		if c.KeyValid() {
			heap.Push(&m.keyHeap, cursorHeapItem[T]{idx: i, key: c.Key()})
		}
	}
	m.settleOnKey()
}

// settleOnKey pops every cursor currently sitting on the minimal key into
// m.active, leaving the heap positioned on the next-smallest remaining
// key (if any).
func (m *MergeCursor[T]) settleOnKey() {
	m.active = m.active[:0]
	if m.keyHeap.Len() == 0 {
		return
	}
	minKey := append([]byte(nil), m.keyHeap[0].key...)
	for m.keyHeap.Len() > 0 && compareBytes(m.keyHeap[0].key, minKey) == 0 {
		item := heap.Pop(&m.keyHeap).(cursorHeapItem[T])
		m.active = append(m.active, item.idx)
	}
	for _, idx := range m.active {
		m.cursors[idx].RewindVals()
	}
	m.settleOnVal()
}

func (m *MergeCursor[T]) settleOnVal() {
	m.valGroup = m.valGroup[:0]
	var minVal any
	found := false
	for _, idx := range m.active {
		if !m.cursors[idx].ValValid() {
			continue
		}
		v := m.cursors[idx].Val()
		if !found || m.valLess(v, minVal) < 0 {
			minVal = v
			found = true
		}
	}
	if !found {
		return
	}
	for _, idx := range m.active {
		if m.cursors[idx].ValValid() && m.valLess(m.cursors[idx].Val(), minVal) == 0 {
			m.valGroup = append(m.valGroup, idx)
		}
	}
}

func (m *MergeCursor[T]) KeyValid() bool { return len(m.active) > 0 }

func (m *MergeCursor[T]) Key() []byte {
	return m.cursors[m.active[0]].Key()
}

func (m *MergeCursor[T]) ValValid() bool { return len(m.valGroup) > 0 }

func (m *MergeCursor[T]) Val() any {
	return m.cursors[m.valGroup[0]].Val()
}

// MapTimes yields the union of (time, diff) pairs across every batch
// contributing to the current (key, val), consolidating equal times.
func (m *MergeCursor[T]) MapTimes(fn func(t T, d Diff)) {
	acc := make(map[T]Diff)
	var order []T
	for _, idx := range m.valGroup {
		m.cursors[idx].MapTimes(func(t T, d Diff) {
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

func (m *MergeCursor[T]) StepVal() {
	for _, idx := range m.valGroup {
		m.cursors[idx].StepVal()
	}
	m.settleOnVal()
}

func (m *MergeCursor[T]) SeekVal(target any, order ValueOrder) {
	for _, idx := range m.active {
		m.cursors[idx].SeekVal(target, order)
	}
	m.settleOnVal()
}

func (m *MergeCursor[T]) StepKey() {
	for _, idx := range m.active {
		m.cursors[idx].StepKey()
		if m.cursors[idx].KeyValid() {
			heap.Push(&m.keyHeap, cursorHeapItem[T]{idx: idx, key: m.cursors[idx].Key()})
		}
	}
	m.settleOnKey()
}

func (m *MergeCursor[T]) SeekKey(target []byte) {
	for _, c := range m.cursors {
		c.SeekKey(target)
	}
	m.rebuildKeyHeap()
}

func (m *MergeCursor[T]) RewindKeys() {
	for _, c := range m.cursors {
		c.RewindKeys()
	}
	m.rebuildKeyHeap()
}

func (m *MergeCursor[T]) RewindVals() {
	for _, idx := range m.active {
		m.cursors[idx].RewindVals()
	}
	m.settleOnVal()
}

// MaybeContainsKey reports whether key might appear under any of the
// merged sub-cursors, consulting each one's own membership summary when
// it exposes one and falling back to "maybe" for any that don't.
func (m *MergeCursor[T]) MaybeContainsKey(key []byte) bool {
	for _, c := range m.cursors {
		type membershipChecker interface{ MaybeContainsKey([]byte) bool }
		mc, ok := c.(membershipChecker)
		if !ok || mc.MaybeContainsKey(key) {
			return true
		}
	}
	return false
}

var _ Cursor[lattice.Nat] = (*MergeCursor[lattice.Nat])(nil)
var _ Cursor[lattice.Nat] = (*KeyCursor[lattice.Nat])(nil)
var _ Cursor[lattice.Nat] = (*BatchCursor[lattice.Nat])(nil)
