// Package operator implements the bilinear/grouping operators that
// consume arrangements: join, reduce, iterate, and the small
// specializations (count, distinct, threshold, semijoin, negate,
// consolidate) named in spec §6's operator vocabulary.
package operator

import (
	"bytes"

	"github.com/latticeflow/arrange/lattice"
	"github.com/latticeflow/arrange/trace"
)

// JoinFunc computes one output contribution for a matching (key, valA,
// valB) pair. suggestedTime is Join(timeA, timeB), the lattice join
// spec §4.5 mandates as the default output time; f may return it
// unchanged or compute a different time for a bespoke bilinear operator
// ("the rule generalizes to the bespoke f").
type JoinFunc[T lattice.Time[T]] func(key []byte, valA, valB any, suggestedTime T, diffA, diffB trace.Diff) (val any, time T, diff trace.Diff)

// DefaultJoin pairs the two values into a [2]any and multiplies diffs —
// the ordinary relational join contract of spec §4.5.
func DefaultJoin[T lattice.Time[T]](_ []byte, valA, valB any, t T, diffA, diffB trace.Diff) (any, T, trace.Diff) {
	return [2]any{valA, valB}, t, trace.Diff(int64(diffA) * int64(diffB))
}

// JoinCore walks delta's keys in order and, for each, seeks directly
// into other (an indexed cursor, e.g. over a full trace) rather than
// merge-scanning both sides — the "arrangement-aware" property of spec
// §4.5: "since both sides are indexed by key, joining two batches
// enumerates only matching keys with cost proportional to matched
// entries". delta is expected to be the small, newly-arrived side; other
// the large, already-indexed side (spec §4.5 "half-join variant").
func JoinCore[T lattice.Time[T]](delta, other trace.Cursor[T], f JoinFunc[T]) []trace.Update[T] {
	type membershipChecker interface{ MaybeContainsKey([]byte) bool }

	var out []trace.Update[T]
	for ; delta.KeyValid(); delta.StepKey() {
		key := append([]byte(nil), delta.Key()...)
		if mc, ok := other.(membershipChecker); ok && !mc.MaybeContainsKey(key) {
			continue
		}
		other.SeekKey(key)
		if !other.KeyValid() || !bytes.Equal(other.Key(), key) {
			continue
		}
		for ; delta.ValValid(); delta.StepVal() {
			valA := delta.Val()
			for other.RewindVals(); other.ValValid(); other.StepVal() {
				valB := other.Val()
				delta.MapTimes(func(ta T, da trace.Diff) {
					other.MapTimes(func(tb T, db trace.Diff) {
						val, t, d := f(key, valA, valB, ta.Join(tb), da, db)
						if !d.IsZero() {
							out = append(out, trace.Update[T]{Key: key, Val: val, Time: t, Diff: d})
						}
					})
				})
			}
		}
	}
	return out
}

// Join computes the three bilinear contributions of spec §4.5:
//
//	(A+dA)(B+dB) - AB = A·dB + dA·B + dA·dB
//
// oldA/oldB are cursors over each side's trace as it stood before this
// round's batches were inserted; newA/newB are cursors over this round's
// freshly-sealed batches (either may be nil if that side produced no
// batch this round). The result is the consolidated update stream to
// emit downstream.
func Join[T lattice.Time[T]](oldA, oldB, newA, newB trace.Cursor[T], valLess trace.ValueOrder, f JoinFunc[T]) []trace.Update[T] {
	var all []trace.Update[T]
	if newA != nil && oldB != nil {
		all = append(all, JoinCore(newA, oldB, f)...)
	}
	if oldA != nil && newB != nil {
		all = append(all, JoinCore(newB, oldA, flip(f))...)
	}
	if newA != nil && newB != nil {
		all = append(all, JoinCore(newA, newB, f)...)
	}
	return trace.ConsolidateUpdates(all, valLess)
}

// flip swaps the valA/valB (and diffA/diffB) arguments so JoinCore, which
// always treats its first cursor argument as the "A" side, can be reused
// when B is the delta being walked.
func flip[T lattice.Time[T]](f JoinFunc[T]) JoinFunc[T] {
	return func(key []byte, valB, valA any, t T, diffB, diffA trace.Diff) (any, T, trace.Diff) {
		return f(key, valA, valB, t, diffA, diffB)
	}
}

// Semijoin preserves only A's values: every matching B (key, val) entry
// contributes A's diff multiplied by that entry's diff, and B's value is
// not part of the output — spec §6 names semijoin without defining
// it; SPEC_FULL grounds this on the half-join variant of spec §4.5 and
// differential-dataflow's semijoin_stream.
func Semijoin[T lattice.Time[T]](oldA, oldB, newA, newB trace.Cursor[T], valLess trace.ValueOrder) []trace.Update[T] {
	f := func(_ []byte, valA, _ any, t T, diffA, diffB trace.Diff) (any, T, trace.Diff) {
		return valA, t, trace.Diff(int64(diffA) * int64(diffB))
	}
	return Join(oldA, oldB, newA, newB, valLess, f)
}
