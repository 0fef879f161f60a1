package lattice

import "strings"

// Antichain is a frontier: a set of pairwise-incomparable timestamps
// representing the earliest times that may still change (spec §3, §4.1).
// The zero value is the empty antichain, which denotes "drained" — no
// further times are possible.
type Antichain[T Time[T]] struct {
	elements []T
}

// New builds a minimized antichain from the given elements.
func New[T Time[T]](elements ...T) Antichain[T] {
	var f Antichain[T]
	for _, e := range elements {
		f.Insert(e)
	}
	return f
}

// Empty reports whether the frontier has no elements: the collection is
// fully drained and no further updates of any time are possible.
func (f *Antichain[T]) Empty() bool { return len(f.elements) == 0 }

// Elements returns the frontier's minimal elements. The returned slice
// must not be mutated by the caller.
func (f *Antichain[T]) Elements() []T { return f.elements }

// Insert adds t to the frontier, discarding any existing element that t
// dominates (is less-equal to), and skipping the insert entirely if an
// existing element already dominates t. Reports whether the frontier
// changed (spec §4.1: "insert with minimization").
func (f *Antichain[T]) Insert(t T) bool {
	for _, e := range f.elements {
		if e.LessEqual(t) {
			return false // an existing, tighter bound already covers t
		}
	}
	kept := f.elements[:0:0]
	for _, e := range f.elements {
		if !t.LessEqual(e) {
			kept = append(kept, e)
		}
	}
	kept = append(kept, t)
	f.elements = kept
	return true
}

// LessEqualTime reports whether the frontier is at-or-before t: some
// element of the frontier is less-equal to t, meaning t is still in the
// frontier's future (updates may still arrive at t).
func (f *Antichain[T]) LessEqualTime(t T) bool {
	for _, e := range f.elements {
		if e.LessEqual(t) {
			return true
		}
	}
	return false
}

// LessThanTime reports whether the frontier is strictly before t.
func (f *Antichain[T]) LessThanTime(t T) bool {
	for _, e := range f.elements {
		if e.LessEqual(t) && e != t {
			return true
		}
	}
	return false
}

// Dominates reports whether every element of other is dominated by (i.e.
// at-or-after) this frontier — equivalently, this frontier is at least
// as advanced as other. Used to validate that a handle's through only
// moves forward (spec §7: "Regressive frontier").
func (f *Antichain[T]) Dominates(other *Antichain[T]) bool {
	for _, o := range other.elements {
		dominated := false
		for _, e := range f.elements {
			if o.LessEqual(e) {
				dominated = true
				break
			}
		}
		if !dominated {
			return false
		}
	}
	return true
}

// Equal reports whether two frontiers contain the same minimal elements.
func (f *Antichain[T]) Equal(other *Antichain[T]) bool {
	return f.Dominates(other) && other.Dominates(f)
}

// Join returns the elementwise least upper bound of the two frontiers:
// every pairwise Join of an element from f with an element from other,
// re-minimized. Used to combine successive frontier-advance notifications
// on the same edge into one cumulative, more-advanced guarantee.
func (f *Antichain[T]) Join(other *Antichain[T]) Antichain[T] {
	var out Antichain[T]
	for _, a := range f.elements {
		for _, b := range other.elements {
			out.Insert(a.Join(b))
		}
	}
	return out
}

// Meet returns the elementwise greatest lower bound of the two frontiers:
// every pairwise Meet of an element from f with an element from other,
// re-minimized. Used to combine independent inputs/handles into the
// single, least-advanced safe frontier (spec §4.3: trace.since is the
// meet of all consumers' through frontiers).
func (f *Antichain[T]) Meet(other *Antichain[T]) Antichain[T] {
	if f.Empty() {
		return other.Clone()
	}
	if other.Empty() {
		return f.Clone()
	}
	var out Antichain[T]
	for _, a := range f.elements {
		for _, b := range other.elements {
			out.Insert(a.Meet(b))
		}
	}
	return out
}

// Clone returns an independent copy of the frontier.
func (f *Antichain[T]) Clone() Antichain[T] {
	out := Antichain[T]{elements: make([]T, len(f.elements))}
	copy(out.elements, f.elements)
	return out
}

// Coarsen maps a time t to the unique minimum time t' such that
// t <= t' <= Join(t, e) for some e in the frontier, i.e. t' = Join(t,
// Meet over the frontier of Join(t, e)) (spec §4.1). Two distinct times
// that coarsen to the same value are indistinguishable beyond this
// frontier and their diffs may be summed. If the frontier is empty, t is
// returned unchanged (nothing to coarsen against).
func (f *Antichain[T]) Coarsen(t T) T {
	if f.Empty() {
		return t
	}
	acc := t.Join(f.elements[0])
	for _, e := range f.elements[1:] {
		acc = acc.Meet(t.Join(e))
	}
	return acc
}

func (f *Antichain[T]) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, e := range f.elements {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(e.String())
	}
	sb.WriteByte('}')
	return sb.String()
}
