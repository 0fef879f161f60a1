package dataflow

import (
	"github.com/latticeflow/arrange/arrange"
	"github.com/latticeflow/arrange/lattice"
)

// Scope tracks every handle entered into a nested iteration context (spec
// §4.7 "enter", §5: "An iteration scope terminates when its internal
// frontier drains; pending operator state is released deterministically")
// so they can be released together when the scope exits.
type Scope[O lattice.Time[O]] struct {
	entered []*arrange.Handle[O]
}

// NewScope returns an empty scope.
func NewScope[O lattice.Time[O]]() *Scope[O] { return &Scope[O]{} }

// Enter registers h as entered into this scope and returns it unchanged,
// so callers can write scope.Enter(arrangement.Clone()) inline.
func (s *Scope[O]) Enter(h *arrange.Handle[O]) *arrange.Handle[O] {
	s.entered = append(s.entered, h)
	return h
}

// Close releases every handle entered into this scope, aggregating any
// failures (spec §5 "Cancellation" applied at scope granularity rather
// than a single handle).
func (s *Scope[O]) Close() error {
	err := arrange.CloseAll(s.entered...)
	s.entered = nil
	return err
}
