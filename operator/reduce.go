package operator

import (
	"bytes"
	"sort"

	"github.com/latticeflow/arrange/lattice"
	"github.com/latticeflow/arrange/trace"
)

// ReduceFunc computes the desired full output accumulation for key given
// its accumulated input at some time — not a delta, the complete desired
// collection contents (spec §4.6: "f: (key, sorted list of (val,
// accumulated_diff)) -> list of (output_val, output_diff)").
type ReduceFunc[T lattice.Time[T]] func(key []byte, input []trace.Accumulated) []trace.Accumulated

// Reduce implements the group operator of spec §4.6. inputCursor must be
// an indexed cursor over the full input trace (so AccumulateKey can seek
// to key); outputCursor must be an indexed cursor over every output
// update already durably committed by earlier calls to Reduce for this
// same logical operator (the reduce operator's own output arrangement,
// fed back per step 3 of spec §4.6's algorithm). Reduce computes the set
// of interesting times for key, evaluates f at each in a linear
// extension of the partial order, and emits only the delta between f's
// desired output and what has already been accumulated (by outputCursor
// plus updates emitted earlier in this same call).
func Reduce[T lattice.Time[T]](key []byte, inputCursor, outputCursor trace.Cursor[T], valLess trace.ValueOrder, f ReduceFunc[T]) []trace.Update[T] {
	raw := rawTimesForKey(inputCursor, key)
	if len(raw) == 0 {
		return nil
	}
	interesting := joinClosure(raw)
	ordered := linearExtension(interesting)

	var emitted []trace.Update[T]
	for _, t := range ordered {
		input := trace.AccumulateKey(inputCursor, key, t)
		desired := f(key, input)
		prior := accumulateCombined(outputCursor, emitted, key, t)
		for _, d := range diffAccumulated(desired, prior, valLess) {
			emitted = append(emitted, trace.Update[T]{
				Key: append([]byte(nil), key...), Val: d.Val, Time: t, Diff: d.Diff,
			})
		}
	}
	return emitted
}

// ReduceAll runs Reduce once per distinct key present in inputCursor,
// concatenating every key's emitted updates — the whole-collection entry
// point layered over Reduce's single-key core (spec §4.6: "for each key
// whose input diffs changed"). Real schedulers would restrict this to
// only the keys touched since the last round (SPEC_FULL's "dirty key"
// tracking, see CollectDirtyKeys); ReduceAll instead walks every key
// currently in the input, which is correct but does not amortize away
// keys whose accumulation hasn't changed.
func ReduceAll[T lattice.Time[T]](inputCursor, outputCursor trace.Cursor[T], valLess trace.ValueOrder, f ReduceFunc[T]) []trace.Update[T] {
	var out []trace.Update[T]
	for inputCursor.RewindKeys(); inputCursor.KeyValid(); inputCursor.StepKey() {
		key := append([]byte(nil), inputCursor.Key()...)
		out = append(out, Reduce(key, inputCursor, outputCursor, valLess, f)...)
	}
	return out
}

// rawTimesForKey collects the distinct raw update times recorded for key
// across every value in inputCursor (spec §4.6 "Interesting times":
// "the set of input update times {t1, ..., tm}").
func rawTimesForKey[T lattice.Time[T]](c trace.Cursor[T], key []byte) []T {
	c.SeekKey(key)
	if !c.KeyValid() || !bytes.Equal(c.Key(), key) {
		return nil
	}
	seen := make(map[T]bool)
	var out []T
	for ; c.ValValid(); c.StepVal() {
		c.MapTimes(func(t T, _ trace.Diff) {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		})
	}
	return out
}

// joinClosure computes the closure of times under pairwise lattice join,
// since "joining two interesting times produces another time where
// output may change" (spec §4.6). For totally ordered time this is a
// no-op: the join of any two is already one of the inputs.
func joinClosure[T lattice.Time[T]](times []T) []T {
	set := make(map[T]bool, len(times))
	var queue []T
	for _, t := range times {
		if !set[t] {
			set[t] = true
			queue = append(queue, t)
		}
	}
	for i := 0; i < len(queue); i++ {
		for j := 0; j < len(queue); j++ {
			joined := queue[i].Join(queue[j])
			if !set[joined] {
				set[joined] = true
				queue = append(queue, joined)
			}
		}
	}
	return queue
}

// linearExtension orders times consistently with the partial order
// (spec §4.6 "Ordering of emission"): if a <= b then a is placed no
// later than b. Implemented as Kahn's algorithm over the LessEqual
// relation, which works for an arbitrary poset, not just chains.
func linearExtension[T lattice.Time[T]](times []T) []T {
	n := len(times)
	remaining := make([]bool, n)
	for i := range remaining {
		remaining[i] = true
	}
	predCount := make([]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j && times[j].LessEqual(times[i]) && times[j] != times[i] {
				predCount[i]++
			}
		}
	}
	out := make([]T, 0, n)
	for len(out) < n {
		for i := 0; i < n; i++ {
			if remaining[i] && predCount[i] == 0 {
				out = append(out, times[i])
				remaining[i] = false
				for j := 0; j < n; j++ {
					if remaining[j] && times[i].LessEqual(times[j]) && times[i] != times[j] {
						predCount[j]--
					}
				}
				break
			}
		}
	}
	return out
}

// accumulateCombined sums outputCursor's durable contents for key at
// time <= t together with any updates already emitted earlier in the
// current Reduce call whose time is <= t (spec §4.6 step 3: "Accumulate
// previously-emitted outputs for key at time ≤ t").
func accumulateCombined[T lattice.Time[T]](outputCursor trace.Cursor[T], emitted []trace.Update[T], key []byte, t T) []trace.Accumulated {
	acc := make(map[any]trace.Diff)
	var order []any
	add := func(val any, d trace.Diff) {
		if _, ok := acc[val]; !ok {
			order = append(order, val)
		}
		acc[val] = acc[val].Add(d)
	}
	for _, a := range trace.AccumulateKey(outputCursor, key, t) {
		add(a.Val, a.Diff)
	}
	for _, u := range emitted {
		if bytes.Equal(u.Key, key) && u.Time.LessEqual(t) {
			add(u.Val, u.Diff)
		}
	}
	var out []trace.Accumulated
	for _, v := range order {
		if d := acc[v]; !d.IsZero() {
			out = append(out, trace.Accumulated{Val: v, Diff: d})
		}
	}
	return out
}

// diffAccumulated returns desired minus prior, as the update diffs that
// must be emitted to bring prior's accumulation in line with desired.
func diffAccumulated(desired, prior []trace.Accumulated, valLess trace.ValueOrder) []trace.Accumulated {
	acc := make(map[any]trace.Diff)
	var order []any
	note := func(v any) {
		for _, seen := range order {
			if valLess(seen, v) == 0 {
				return
			}
		}
		order = append(order, v)
	}
	for _, d := range desired {
		acc[d.Val] = acc[d.Val].Add(d.Diff)
		note(d.Val)
	}
	for _, p := range prior {
		acc[p.Val] = acc[p.Val].Add(p.Diff.Negate())
		note(p.Val)
	}
	sort.Slice(order, func(i, j int) bool { return valLess(order[i], order[j]) < 0 })
	var out []trace.Accumulated
	for _, v := range order {
		if d := acc[v]; !d.IsZero() {
			out = append(out, trace.Accumulated{Val: v, Diff: d})
		}
	}
	return out
}
