// Package arrange implements the shared, reference-counted Arrangement /
// TraceHandle sharing primitive (spec §3 "Arrangement", §4.4, §6 "Trace
// handle public surface") and the arrange operator that produces traces
// from update streams.
package arrange

import (
	"errors"
	"sync"

	"go.uber.org/multierr"

	"github.com/latticeflow/arrange/lattice"
	"github.com/latticeflow/arrange/trace"
)

// ErrRegressiveThrough is returned by Handle.SetThrough when asked to
// move a handle's compaction frontier backwards (spec §7 "Regressive
// frontier").
var ErrRegressiveThrough = errors.New("arrange: through frontier may not move backwards")

// ErrHandleAlreadyClosed is returned by Handle.Close on a second call —
// closing twice would double-release the arrangement's reference count.
var ErrHandleAlreadyClosed = errors.New("arrange: handle already closed")

// Handle is a per-consumer wrapper over a shared Trace: it holds a
// through antichain (the earliest times this reader still needs
// distinguishable) and participates in the arrangement's reference count
// (spec §3 "TraceHandle"). Handles are not safe for concurrent use by
// multiple goroutines; each consumer owns exactly one.
type Handle[T lattice.Time[T]] struct {
	arr     *Arrangement[T]
	through lattice.Antichain[T]
	closed  bool
}

// Through returns the handle's current compaction frontier.
func (h *Handle[T]) Through() lattice.Antichain[T] { return h.through.Clone() }

// SetThrough advances this handle's compaction frontier, which must only
// move forward (spec §6: "set_through(antichain): advances this handle's
// compaction frontier; must only move forward"). The arrangement
// recomputes trace.since as the meet of all live handles' throughs
// immediately afterward.
func (h *Handle[T]) SetThrough(f lattice.Antichain[T]) error {
	if !f.Dominates(&h.through) {
		return ErrRegressiveThrough
	}
	h.through = f
	return h.arr.recomputeSince()
}

// Clone returns an independent handle sharing the same underlying trace,
// starting with through equal to the empty antichain. While a live
// handle's through is still empty it holds back compaction entirely: the
// trace's since does not advance until every live handle has set a
// through (spec §4.4 "Sharing").
func (h *Handle[T]) Clone() *Handle[T] {
	return h.arr.newHandle()
}

// Cursor returns a random-access cursor for ad-hoc reads at times >= the
// handle's through (spec §6 "cursor() -> Cursor").
func (h *Handle[T]) Cursor() trace.Cursor[T] {
	return h.arr.trace.Cursor()
}

// Import re-presents the underlying trace as a fresh arrangement inside
// a (possibly nested) scope, lifting every timestamp with Enter and
// delivering, conceptually, the accumulated collection as of since
// followed by live batches (spec §6 "import(into_scope) -> Arrangement",
// §4.7 "enter"). The returned cursor already carries lifted times;
// callers typically wrap it directly rather than re-batching, since no
// data is copied.
func Import[O lattice.Time[O], I lattice.Time[I]](h *Handle[O], zero I) trace.Cursor[lattice.Product[O, I]] {
	return &liftedCursor[O, I]{inner: h.Cursor(), zero: zero}
}

// Close releases this handle's contribution to the arrangement's
// reference count. The trace's since immediately recomputes upward,
// allowing further compaction (spec §5 "Cancellation").
func (h *Handle[T]) Close() error {
	if h.closed {
		return ErrHandleAlreadyClosed
	}
	h.closed = true
	h.arr.dropHandle(h)
	return nil
}

// CloseAll closes every handle, continuing past individual failures and
// aggregating them — the way a scope exit must release every handle it
// entered even if releasing one of them turns out to be a double-close
// (spec §5 "An iteration scope terminates when its internal frontier
// drains; pending operator state is released deterministically").
func CloseAll[T lattice.Time[T]](handles ...*Handle[T]) error {
	var err error
	for _, h := range handles {
		err = multierr.Append(err, h.Close())
	}
	return err
}

// Arrangement is the shared, reference-counted unit described by spec §3
// "Arrangement / TraceHandle": a trace plus the live set of consumer
// handles whose through frontiers determine how far the trace may be
// physically compacted.
type Arrangement[T lattice.Time[T]] struct {
	mu      sync.Mutex
	trace   *trace.Trace[T]
	handles map[*Handle[T]]struct{}
}

// New wraps an existing trace as a fresh arrangement with no handles.
func New[T lattice.Time[T]](tr *trace.Trace[T]) *Arrangement[T] {
	return &Arrangement[T]{trace: tr, handles: make(map[*Handle[T]]struct{})}
}

// Trace returns the underlying trace. Only the arrange operator that
// owns this arrangement should mutate it (spec §5 "Shared resource
// policy": mutation happens only from the arrange operator).
func (a *Arrangement[T]) Trace() *trace.Trace[T] { return a.trace }

func (a *Arrangement[T]) newHandle() *Handle[T] {
	a.mu.Lock()
	h := &Handle[T]{arr: a}
	a.handles[h] = struct{}{}
	n := len(a.handles)
	a.mu.Unlock()
	liveHandlesGauge.WithLabelValues("default").Set(float64(n))
	return h
}

// Clone is the entry point a brand-new consumer uses to obtain its first
// handle on this arrangement.
func (a *Arrangement[T]) Clone() *Handle[T] { return a.newHandle() }

func (a *Arrangement[T]) dropHandle(h *Handle[T]) {
	a.mu.Lock()
	delete(a.handles, h)
	n := len(a.handles)
	err := a.recomputeSinceLocked()
	a.mu.Unlock()
	liveHandlesGauge.WithLabelValues("default").Set(float64(n))
	_ = err // recomputeSinceLocked only fails on a regressive meet, which cannot happen here
}

// recomputeSince derives trace.since as the meet (greatest lower bound)
// of every live handle's through frontier (spec §3 "TraceHandle": "the
// trace's since is the antichain-meet of all handles' through
// frontiers") and applies it as the trace's physical compaction
// frontier.
func (a *Arrangement[T]) recomputeSince() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recomputeSinceLocked()
}

func (a *Arrangement[T]) recomputeSinceLocked() error {
	var meet lattice.Antichain[T]
	first := true
	for h := range a.handles {
		if h.through.Empty() {
			// This consumer has not set a through yet and may still need
			// every time distinguishable.
			return nil
		}
		if first {
			meet = h.through.Clone()
			first = false
			continue
		}
		meet = meet.Meet(&h.through)
	}
	if first {
		// No live handles: since is left unchanged; the caller may drop
		// the trace entirely once no data could still arrive (spec §3
		// Lifecycle).
		return nil
	}
	current := a.trace.Since()
	if meet.Dominates(&current) {
		return a.trace.SetPhysicalCompaction(meet)
	}
	return nil
}

// liftedCursor wraps a Cursor[O] to present it as a Cursor[Product[O,I]]
// with every time extended to (t, zero), without copying any data (spec
// §4.7 "enter").
type liftedCursor[O lattice.Time[O], I lattice.Time[I]] struct {
	inner trace.Cursor[O]
	zero  I
}

func (c *liftedCursor[O, I]) KeyValid() bool { return c.inner.KeyValid() }
func (c *liftedCursor[O, I]) Key() []byte    { return c.inner.Key() }
func (c *liftedCursor[O, I]) ValValid() bool { return c.inner.ValValid() }
func (c *liftedCursor[O, I]) Val() any       { return c.inner.Val() }
func (c *liftedCursor[O, I]) MapTimes(fn func(t lattice.Product[O, I], d trace.Diff)) {
	c.inner.MapTimes(func(t O, d trace.Diff) {
		fn(lattice.Enter[O, I](t, c.zero), d)
	})
}
func (c *liftedCursor[O, I]) StepKey()         { c.inner.StepKey() }
func (c *liftedCursor[O, I]) SeekKey(k []byte) { c.inner.SeekKey(k) }
func (c *liftedCursor[O, I]) StepVal()         { c.inner.StepVal() }
func (c *liftedCursor[O, I]) SeekVal(v any, order trace.ValueOrder) {
	c.inner.SeekVal(v, order)
}
func (c *liftedCursor[O, I]) RewindKeys() { c.inner.RewindKeys() }
func (c *liftedCursor[O, I]) RewindVals() { c.inner.RewindVals() }

var _ trace.Cursor[lattice.Product[lattice.Nat, lattice.Nat]] = (*liftedCursor[lattice.Nat, lattice.Nat])(nil)
