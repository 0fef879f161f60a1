// Package lattice implements the partially ordered logical timestamps and
// frontiers (antichains) that drive progress tracking throughout the
// engine (spec §3, §4.1).
package lattice

import "fmt"

// Time is a logical timestamp drawn from a bounded join-semilattice: it
// supports a partial order (LessEqual), a least upper bound (Join) and a
// greatest lower bound (Meet). T is self-referential in the usual Go
// generics idiom: a concrete timestamp type implements Time[ConcreteType].
type Time[T any] interface {
	comparable

	// LessEqual reports whether the receiver is at or before other in the
	// partial order.
	LessEqual(other T) bool

	// Join returns the least upper bound of the receiver and other.
	Join(other T) T

	// Meet returns the greatest lower bound of the receiver and other.
	Meet(other T) T

	// String renders the timestamp for logs and debugging.
	String() string
}

// Nat is the simplest Time: a totally ordered natural number, the
// "streaming" timestamp of spec §3.
type Nat uint64

func (n Nat) LessEqual(other Nat) bool { return n <= other }
func (n Nat) Join(other Nat) Nat {
	if n > other {
		return n
	}
	return other
}
func (n Nat) Meet(other Nat) Nat {
	if n < other {
		return n
	}
	return other
}
func (n Nat) String() string { return fmt.Sprintf("%d", uint64(n)) }

// Product is the nested "(outer, inner)" timestamp used by iterative
// scopes (spec §4.7): a product order over an outer coordinate and a
// well-founded inner iteration counter. Product is itself a Time, so
// scopes may be nested arbitrarily deep.
type Product[O Time[O], I Time[I]] struct {
	Outer O
	Inner I
}

func Pair[O Time[O], I Time[I]](outer O, inner I) Product[O, I] {
	return Product[O, I]{Outer: outer, Inner: inner}
}

func (p Product[O, I]) LessEqual(other Product[O, I]) bool {
	return p.Outer.LessEqual(other.Outer) && p.Inner.LessEqual(other.Inner)
}

func (p Product[O, I]) Join(other Product[O, I]) Product[O, I] {
	return Product[O, I]{Outer: p.Outer.Join(other.Outer), Inner: p.Inner.Join(other.Inner)}
}

func (p Product[O, I]) Meet(other Product[O, I]) Product[O, I] {
	return Product[O, I]{Outer: p.Outer.Meet(other.Outer), Inner: p.Inner.Meet(other.Inner)}
}

func (p Product[O, I]) String() string {
	return fmt.Sprintf("(%s, %s)", p.Outer.String(), p.Inner.String())
}

// Enter lifts an outer timestamp into a scope nested one level deeper, by
// pairing it with the minimum inner coordinate (spec §4.7: "enter wraps a
// cursor to extend each timestamp t with (t, 0)").
func Enter[O Time[O], I Time[I]](outer O, zero I) Product[O, I] {
	return Product[O, I]{Outer: outer, Inner: zero}
}

// Leave projects a nested timestamp back to its outer coordinate, dropping
// the inner iteration count (spec §4.7: "the scope exits with tuples
// projected back to outer").
func Leave[O Time[O], I Time[I]](t Product[O, I]) O {
	return t.Outer
}

// Increment advances the inner coordinate of a product timestamp by one
// iteration round, feeding a tuple back into the loop (spec §4.7).
func Increment[O Time[O]](t Product[O, Nat]) Product[O, Nat] {
	return Product[O, Nat]{Outer: t.Outer, Inner: t.Inner + 1}
}
