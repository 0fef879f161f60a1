// Package trace implements the immutable, indexed Batch, the LSM-structured
// Trace that chains batches together, and the Cursor machinery used to
// read them (spec §3, §4.2, §4.3).
package trace

import (
	"fmt"

	"golang.org/x/exp/constraints"

	"github.com/latticeflow/arrange/lattice"
)

// Diff is the signed multiplicity change recorded by an update (spec §3).
// The engine specializes the general "commutative group element" of the
// distilled spec to a 64-bit signed integer, the concrete case spec.md
// calls out explicitly; Group documents the broader contract for anyone
// wiring in a different diff representation.
type Diff int64

// Group is the abstract contract a diff type must satisfy: an abelian
// group under Add, with Negate as its inverse and IsZero testing for the
// identity element. Diff implements it, matching spec §3's footnote that
// diffs may be "a signed integer, or more general commutative group
// element".
type Group[D any] interface {
	Add(other D) D
	Negate() D
	IsZero() bool
}

func (d Diff) Add(other Diff) Diff { return d + other }
func (d Diff) Negate() Diff        { return -d }
func (d Diff) IsZero() bool        { return d == 0 }

var _ Group[Diff] = Diff(0)

// GenericDiff adapts any signed integer width to the Group contract — the
// escape hatch spec §3's footnote leaves open ("a signed integer, or more
// general commutative group element") for an embedder who doesn't want
// Diff's fixed 64-bit width, e.g. a int8-backed diff for a
// memory-constrained worker. Update[T] itself always carries the
// concrete Diff; GenericDiff exists for callers building their own
// parallel update representation around a narrower or wider integer.
type GenericDiff[D constraints.Integer] D

func (d GenericDiff[D]) Add(other GenericDiff[D]) GenericDiff[D] { return d + other }
func (d GenericDiff[D]) Negate() GenericDiff[D]                  { return -d }
func (d GenericDiff[D]) IsZero() bool                            { return d == 0 }

var _ Group[GenericDiff[int32]] = GenericDiff[int32](0)

// ValueOrder totally orders arrangement values, the way bytes.Compare
// orders keys: negative if a < b, zero if equal, positive if a > b.
// Arrangements are constructed with a ValueOrder for their value type.
type ValueOrder func(a, b any) int

// Update is a single (key, val, time, diff) tuple (spec §3). Keyed
// collections always carry Key; Val is nil for arrangements keyed by the
// whole record (arrange_by_self).
type Update[T lattice.Time[T]] struct {
	Key  []byte
	Val  any
	Time T
	Diff Diff
}

func (u Update[T]) String() string {
	return fmt.Sprintf("(%q, %v, %s, %d)", u.Key, u.Val, u.Time.String(), u.Diff)
}
