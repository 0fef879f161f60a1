package operator

import (
	"github.com/latticeflow/arrange/lattice"
	"github.com/latticeflow/arrange/trace"
)

// StepFunc computes one iteration's worth of new updates from the
// variable's current accumulated contents at round (spec §4.7
// "Feedback": "compute F(X) which refers to X through a back-edge").
// round carries the nested (outer, inner) timestamp the step is being
// evaluated at; accumulated holds every update fed back so far,
// including round 0's lifted seed.
type StepFunc[O lattice.Time[O]] func(round lattice.Product[O, lattice.Nat], accumulated []trace.Update[lattice.Product[O, lattice.Nat]]) []trace.Update[lattice.Product[O, lattice.Nat]]

// Iterate implements spec §4.7's variable-binding feedback operator: it
// lifts seed into a nested scope at (outer, 0) (spec "Timestamp
// lifting"), repeatedly evaluates step against the accumulated feedback
// collection, retimes each round's fresh contributions to (outer,
// inner+1), and stops once a round contributes no further non-zero
// updates or maxRounds is reached — "fixed point is reached when the
// collection ceases to change". The result is projected back to outer
// and consolidated before being returned ("the scope exits with tuples
// projected back to outer").
//
// Iterate consolidates the lifted seed, each round's fresh contributions
// and the running accumulation, as well as the final projected result,
// matching original_source's iterate(): a step that never settles to
// zero diffs loops until maxRounds, guarding against non-terminating
// recursion.
func Iterate[O lattice.Time[O]](outer O, seed []trace.Update[O], valLess trace.ValueOrder, maxRounds uint64, step StepFunc[O]) []trace.Update[O] {
	lift := func(u trace.Update[O]) trace.Update[lattice.Product[O, lattice.Nat]] {
		return trace.Update[lattice.Product[O, lattice.Nat]]{
			Key: u.Key, Val: u.Val, Time: lattice.Enter[O, lattice.Nat](outer, 0), Diff: u.Diff,
		}
	}
	var accumulated []trace.Update[lattice.Product[O, lattice.Nat]]
	for _, u := range seed {
		accumulated = append(accumulated, lift(u))
	}
	accumulated = trace.ConsolidateUpdates(accumulated, valLess)

	for round := uint64(1); round <= maxRounds; round++ {
		at := lattice.Pair[O, lattice.Nat](outer, lattice.Nat(round-1))
		fresh := step(at, accumulated)
		fresh = trace.ConsolidateUpdates(fresh, valLess)
		if len(fresh) == 0 {
			break
		}
		retimed := make([]trace.Update[lattice.Product[O, lattice.Nat]], len(fresh))
		for i, u := range fresh {
			retimed[i] = trace.Update[lattice.Product[O, lattice.Nat]]{
				Key: u.Key, Val: u.Val, Time: lattice.Pair[O, lattice.Nat](outer, lattice.Nat(round)), Diff: u.Diff,
			}
		}
		accumulated = trace.ConsolidateUpdates(append(accumulated, retimed...), valLess)
	}

	out := make([]trace.Update[O], len(accumulated))
	for i, u := range accumulated {
		out[i] = trace.Update[O]{Key: u.Key, Val: u.Val, Time: lattice.Leave(u.Time), Diff: u.Diff}
	}
	return trace.ConsolidateUpdates(out, valLess)
}
