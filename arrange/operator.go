package arrange

import (
	"go.uber.org/zap"

	"github.com/latticeflow/arrange/lattice"
	"github.com/latticeflow/arrange/trace"
)

// Operator is the arrange operator of spec §4.4: it buffers an incoming
// update stream until the scheduler reports that the input frontier has
// advanced, then consolidates the buffered updates into a fresh
// immutable batch, appends it to the shared trace, and emits it
// downstream.
type Operator[T lattice.Time[T]] struct {
	arr     *Arrangement[T]
	valLess trace.ValueOrder
	logger  *zap.Logger

	pending []trace.Update[T]
}

// OperatorOption configures an Operator at construction.
type OperatorOption[T lattice.Time[T]] func(*Operator[T])

func WithLogger[T lattice.Time[T]](l *zap.Logger) OperatorOption[T] {
	return func(o *Operator[T]) { o.logger = l }
}

// NewOperator creates an arrange operator over a fresh arrangement whose
// trace begins at initialUpper (spec §4.4 "Arrangement Operator").
func NewOperator[T lattice.Time[T]](initialUpper lattice.Antichain[T], valLess trace.ValueOrder, opts ...OperatorOption[T]) *Operator[T] {
	o := &Operator[T]{
		arr:     New(trace.New(initialUpper, valLess)),
		valLess: valLess,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Arrangement returns the shared arrangement this operator maintains.
// Consumers obtain their own handle via Arrangement().Clone().
func (o *Operator[T]) Arrangement() *Arrangement[T] { return o.arr }

// Notify buffers one incoming update (spec §4.4 "Input"). The update's
// time must not already be sealed by a prior AdvanceInput call; a
// well-behaved scheduler never delivers such an update (spec §4.4
// "Failure semantics": undefined behavior otherwise, not checked here).
func (o *Operator[T]) Notify(u trace.Update[T]) {
	o.pending = append(o.pending, u)
}

// AdvanceInput is invoked by the scheduler when the operator's input
// frontier advances to newFrontier. Every buffered update whose time is
// sealed by newFrontier (i.e. no element of newFrontier is <= that time)
// is sorted, consolidated, formed into a batch covering
// [previousUpper, newFrontier), appended to the trace, and returned for
// downstream emission (spec §4.4 "Behavior"). Updates not yet sealed
// remain buffered for a future call. Returns a nil batch if nothing was
// sealed this round.
func (o *Operator[T]) AdvanceInput(newFrontier lattice.Antichain[T]) (*trace.Batch[T], error) {
	lower := o.arr.trace.Upper()

	var sealed, remaining []trace.Update[T]
	for _, u := range o.pending {
		if newFrontier.LessEqualTime(u.Time) {
			remaining = append(remaining, u) // still mutable, keep buffering
		} else {
			sealed = append(sealed, u)
		}
	}
	o.pending = remaining

	if len(sealed) == 0 {
		return nil, nil
	}

	batch := trace.NewBatch(sealed, lower, newFrontier, o.valLess)
	if err := o.arr.trace.Insert(batch); err != nil {
		return nil, err
	}
	o.logger.Debug("arrange: sealed batch", zap.Int("updates", batch.Len()))
	return batch, nil
}

// ArrangeByKey is NewOperator under spec §6's operator-vocabulary name:
// the common case of a collection keyed by Key with a distinct Val.
func ArrangeByKey[T lattice.Time[T]](initialUpper lattice.Antichain[T], valLess trace.ValueOrder, opts ...OperatorOption[T]) *Operator[T] {
	return NewOperator(initialUpper, valLess, opts...)
}

// ArrangeBySelf is spec §6's "arrange_by_self": the collection is keyed
// by its whole record (Val is always nil, so no value ordering is ever
// consulted).
func ArrangeBySelf[T lattice.Time[T]](initialUpper lattice.Antichain[T], opts ...OperatorOption[T]) *Operator[T] {
	return NewOperator(initialUpper, func(any, any) int { return 0 }, opts...)
}

// AdvanceThrough advances the meet of every live handle's through by
// asking the arrangement to recompute since — callers normally just call
// Handle.SetThrough on each handle they own, which does this
// automatically (spec §4.4 "Advancing through").
func (o *Operator[T]) AdvanceThrough() error { return o.arr.recomputeSince() }
