package operator

import (
	"github.com/latticeflow/arrange/lattice"
	"github.com/latticeflow/arrange/trace"
)

// Count is a ReduceFunc computing the total multiplicity for key, the
// "count" specialization of spec §6's operator vocabulary — grounded on
// differential-dataflow's CountTotal in original_source, which emits the
// single record (key, count) with diff exactly 1 (retracted with diff -1
// when the count changes), never with the count itself as the diff.
func Count(_ []byte, input []trace.Accumulated) []trace.Accumulated {
	var total int64
	for _, a := range input {
		total += int64(a.Diff)
	}
	if total == 0 {
		return nil
	}
	return []trace.Accumulated{{Val: total, Diff: 1}}
}

// Distinct is a ReduceFunc collapsing every value present with positive
// multiplicity down to multiplicity one — spec §6's "distinct",
// grounded on original_source's threshold_semigroup-based Distinct.
func Distinct(_ []byte, input []trace.Accumulated) []trace.Accumulated {
	out := make([]trace.Accumulated, 0, len(input))
	for _, a := range input {
		if a.Diff > 0 {
			out = append(out, trace.Accumulated{Val: a.Val, Diff: 1})
		}
	}
	return out
}

// Threshold is a ReduceFunc that passes through only values with
// strictly positive accumulated multiplicity, dropping the rest — spec
// §6's "threshold", the general form Distinct specializes.
func Threshold(_ []byte, input []trace.Accumulated) []trace.Accumulated {
	out := make([]trace.Accumulated, 0, len(input))
	for _, a := range input {
		if a.Diff > 0 {
			out = append(out, a)
		}
	}
	return out
}

// Negate returns every update in updates with its diff's sign flipped,
// the element-wise operator spec §6 names as "negate" — used to retract
// a whole collection, e.g. when discarding a branch of a conditional
// dataflow.
func Negate[T lattice.Time[T]](updates []trace.Update[T]) []trace.Update[T] {
	out := make([]trace.Update[T], len(updates))
	for i, u := range updates {
		out[i] = trace.Update[T]{Key: u.Key, Val: u.Val, Time: u.Time, Diff: u.Diff.Negate()}
	}
	return out
}

// Map transforms every update's (key, val) pair, leaving time and diff
// untouched — spec §6's element-wise "map". The caller is responsible
// for consolidating afterward if the mapping can merge distinct inputs
// onto the same output.
func Map[T lattice.Time[T]](updates []trace.Update[T], f func(key []byte, val any) ([]byte, any)) []trace.Update[T] {
	out := make([]trace.Update[T], len(updates))
	for i, u := range updates {
		k, v := f(u.Key, u.Val)
		out[i] = trace.Update[T]{Key: k, Val: v, Time: u.Time, Diff: u.Diff}
	}
	return out
}

// Filter keeps only updates whose (key, val) satisfies pred — spec §6's
// element-wise "filter".
func Filter[T lattice.Time[T]](updates []trace.Update[T], pred func(key []byte, val any) bool) []trace.Update[T] {
	out := make([]trace.Update[T], 0, len(updates))
	for _, u := range updates {
		if pred(u.Key, u.Val) {
			out = append(out, u)
		}
	}
	return out
}

// Concat merges multiple update streams into one without consolidating
// — spec §6's element-wise "concat"; callers chain Consolidate
// afterward when cancellation across the inputs matters.
func Concat[T lattice.Time[T]](streams ...[]trace.Update[T]) []trace.Update[T] {
	var n int
	for _, s := range streams {
		n += len(s)
	}
	out := make([]trace.Update[T], 0, n)
	for _, s := range streams {
		out = append(out, s...)
	}
	return out
}

// Consolidate sums diffs sharing (key, val, time) and drops zeroed
// entries — spec §6's element-wise "consolidate", exposed at the
// operator layer as a thin wrapper over trace.ConsolidateUpdates so
// callers working purely in terms of the operator vocabulary never need
// to import the trace package directly for this one call.
func Consolidate[T lattice.Time[T]](updates []trace.Update[T], valLess trace.ValueOrder) []trace.Update[T] {
	return trace.ConsolidateUpdates(updates, valLess)
}
