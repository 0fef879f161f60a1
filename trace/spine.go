package trace

import (
	"math/bits"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/latticeflow/arrange/lattice"
)

// mergeFanout bounds how many adjacent same-tier batches are merged in
// one step; spec §4.3 describes pairwise merges (two batches of a tier
// become one of the next), so this is fixed at 2.
const mergeFanout = 2

// effortConstant is the "k" of spec §4.3's merge-effort rule: each insert
// contributes roughly k * len(inserted) units of merge work. The exact
// constant is an explicitly open tunable (spec §9 "Open questions (ii)");
// this value keeps merges comfortably ahead of a tier doubling again
// under steady insert sizes.
const effortConstant = 4

// inProgressMerge is a merge that has been started but not yet completed;
// it is "stored as an in-progress state co-existing with the originals"
// (spec §4.3) and consumes bounded work on each driveMerges call.
type inProgressMerge[T lattice.Time[T]] struct {
	a, b    *Batch[T]
	tier    int
	cursor  *MergeCursor[T]
	collect []Update[T]
	done    bool
}

// Trace is the ordered, LSM-structured sequence of batches backing one
// collection shard (spec §3, §4.3). A single Trace is owned by exactly
// one arrange operator; TraceHandle wraps it for sharing with readers.
type Trace[T lattice.Time[T]] struct {
	valLess ValueOrder
	logger  *zap.Logger
	metrics *traceMetrics
	clock   clock.Clock
	effort  *rate.Limiter

	batches []*Batch[T]
	tiers   []int
	merging []*inProgressMerge[T]
	busy    map[*Batch[T]]bool

	upper lattice.Antichain[T]
	since lattice.Antichain[T] // physical compaction frontier
	logic lattice.Antichain[T] // logical compaction frontier, <= since
}

// Option configures a Trace at construction.
type Option[T lattice.Time[T]] func(*Trace[T])

func WithLogger[T lattice.Time[T]](l *zap.Logger) Option[T] {
	return func(t *Trace[T]) { t.logger = l }
}

func WithClock[T lattice.Time[T]](c clock.Clock) Option[T] {
	return func(t *Trace[T]) { t.clock = c }
}

func WithMetricLabels[T lattice.Time[T]](labels prometheus.Labels) Option[T] {
	return func(t *Trace[T]) { t.metrics = newTraceMetrics(labels) }
}

// WithEffortLimiter overrides the token bucket gating merge work across
// Insert calls, letting tests exercise the "deferred work" path of spec
// §4.4/§5 deterministically by starving the trace of effort.
func WithEffortLimiter[T lattice.Time[T]](l *rate.Limiter) Option[T] {
	return func(t *Trace[T]) { t.effort = l }
}

// New creates an empty trace with the given initial upper frontier (the
// lower bound of the first batch that may be inserted) and value order.
func New[T lattice.Time[T]](initialUpper lattice.Antichain[T], valLess ValueOrder, opts ...Option[T]) *Trace[T] {
	t := &Trace[T]{
		valLess: valLess,
		logger:  zap.NewNop(),
		clock:   clock.New(),
		upper:   initialUpper.Clone(),
		busy:    make(map[*Batch[T]]bool),
	}
	for _, o := range opts {
		o(t)
	}
	if t.metrics == nil {
		t.metrics = newTraceMetrics(nil)
	}
	if t.effort == nil {
		t.effort = rate.NewLimiter(rate.Inf, 1<<20) // unthrottled unless WithEffortLimiter overrides
	}
	return t
}

func (t *Trace[T]) Upper() lattice.Antichain[T] { return t.upper.Clone() }
func (t *Trace[T]) Since() lattice.Antichain[T] { return t.since.Clone() }

// tierFor returns the size tier (spec §4.3: "tier i holds batches of
// size roughly 2^i") for a batch with n updates.
func tierFor(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// Insert appends a freshly minted batch to the trace. Requires
// batch.Lower() == trace.Upper(); advances trace.Upper() to
// batch.Upper() (spec §4.3 "Contract of insert(batch)").
func (t *Trace[T]) Insert(b *Batch[T]) error {
	lower := b.Lower()
	if !sameFrontier(t.upper, lower) {
		return ErrMalformedBatchBoundary
	}
	t.batches = append(t.batches, b)
	t.tiers = append(t.tiers, tierFor(b.Len()))
	t.upper = b.Upper()
	t.metrics.Batches.Set(float64(len(t.batches)))
	t.metrics.InsertedUpdates.Add(float64(b.Len()))

	work := effortConstant * (b.Len() + 1)
	if v := bits.Len(uint(len(t.batches) + 1)); v > 1 {
		work *= v
	}
	t.driveMerges(work)
	return nil
}

func sameFrontier[T lattice.Time[T]](a, b lattice.Antichain[T]) bool {
	return a.Equal(&b)
}

// driveMerges starts new merges for adjacent same-tier batch pairs and
// spends up to `budget` key-steps of work advancing in-progress merges,
// finalizing any that complete. This is the amortized, fueled merge of
// spec §4.3: "each insert does work proportional to log times the insert
// size, spread across subsequent inserts so no single step is
// catastrophic."
func (t *Trace[T]) driveMerges(budget int) {
	if !t.effort.AllowN(t.clock.Now(), 1) {
		return // this tick's token bucket is exhausted; resume on the next Insert
	}
	t.startEligibleMerges()

	spent := 0
	for spent < budget && len(t.merging) > 0 {
		m := t.merging[0]
		if !m.cursor.KeyValid() {
			t.finalizeMerge(m)
			t.merging = t.merging[1:]
			t.startEligibleMerges()
			continue
		}
		t.consumeOneKey(m)
		spent++
		t.metrics.MergeStepsSpent.Inc()
		if !m.cursor.KeyValid() {
			t.finalizeMerge(m)
			t.merging = t.merging[1:]
			t.startEligibleMerges()
		}
	}
}

func (t *Trace[T]) consumeOneKey(m *inProgressMerge[T]) {
	c := m.cursor
	key := append([]byte(nil), c.Key()...)
	for ; c.ValValid(); c.StepVal() {
		val := c.Val()
		c.MapTimes(func(tm T, d Diff) {
			m.collect = append(m.collect, Update[T]{
				Key: key, Val: val, Time: t.since.Coarsen(tm), Diff: d,
			})
		})
	}
	c.StepKey()
}

// startEligibleMerges scans for adjacent, same-tier, not-already-busy
// batch pairs and begins a new in-progress merge for every such pair it
// finds, left to right (spec §4.3 step 2).
func (t *Trace[T]) startEligibleMerges() {
	for i := 0; i+mergeFanout-1 < len(t.batches); i++ {
		a, b := t.batches[i], t.batches[i+1]
		if t.busy[a] || t.busy[b] {
			continue
		}
		if t.tiers[i] != t.tiers[i+1] {
			continue
		}
		t.busy[a], t.busy[b] = true, true
		t.merging = append(t.merging, &inProgressMerge[T]{
			a: a, b: b, tier: t.tiers[i] + 1,
			cursor: NewMergeCursor(t.valLess, a.Cursor(), b.Cursor()),
		})
		t.metrics.MergesStarted.Inc()
	}
}

func (t *Trace[T]) finalizeMerge(m *inProgressMerge[T]) {
	merged := NewBatch(m.collect, m.a.Lower(), m.b.Upper(), t.valLess)
	merged.since = t.since.Clone()

	pos := -1
	for i, bt := range t.batches {
		if bt == m.a {
			pos = i
			break
		}
	}
	if pos >= 0 && pos+1 < len(t.batches) && t.batches[pos+1] == m.b {
		t.batches = append(t.batches[:pos], append([]*Batch[T]{merged}, t.batches[pos+2:]...)...)
		t.tiers = append(t.tiers[:pos], append([]int{m.tier}, t.tiers[pos+2:]...)...)
	}
	delete(t.busy, m.a)
	delete(t.busy, m.b)
	t.metrics.MergesCompleted.Inc()
	t.metrics.Batches.Set(float64(len(t.batches)))
	t.logger.Debug("merge completed",
		zap.Int("tier", m.tier), zap.Int("resulting_len", merged.Len()))
}

// SetPhysicalCompaction advances the trace's since frontier, the latest
// time to which batches may be compacted (spec §4.3 "Contract of
// set_physical_compaction(F): requires F ≥ current since"). Compaction
// of existing data is amortized into future merges rather than performed
// eagerly, matching spec §4.3's "typically only those being merged".
func (t *Trace[T]) SetPhysicalCompaction(f lattice.Antichain[T]) error {
	if !f.Dominates(&t.since) {
		return ErrRegressiveFrontier
	}
	t.since = f
	return nil
}

// SetLogicalCompaction advances the earliest time a reader may query,
// which must never exceed the physical since (spec §4.3 "Contract of
// set_logical_compaction(F)").
func (t *Trace[T]) SetLogicalCompaction(f lattice.Antichain[T]) error {
	if !t.since.Dominates(&f) {
		return ErrLogicalAboveSince
	}
	if !f.Dominates(&t.logic) {
		return ErrRegressiveFrontier
	}
	t.logic = f
	return nil
}

// Cursor returns a merged cursor over every batch currently in the
// trace, including batches still participating in an in-progress merge
// (spec §4.2: "Cursors over multiple batches are merged"; §9: "cursor
// traversal handles either form").
func (t *Trace[T]) Cursor() Cursor[T] {
	cursors := make([]Cursor[T], 0, len(t.batches))
	for _, b := range t.batches {
		cursors = append(cursors, b.Cursor())
	}
	return NewMergeCursor(t.valLess, cursors...)
}

// Batches returns the trace's current batch list, oldest first. The
// returned slice must not be mutated.
func (t *Trace[T]) Batches() []*Batch[T] { return t.batches }

// PrometheusCollectors exposes this trace's metrics for registration.
func (t *Trace[T]) PrometheusCollectors() []prometheus.Collector {
	return t.metrics.PrometheusCollectors()
}
