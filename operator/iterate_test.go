package operator_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticeflow/arrange/lattice"
	"github.com/latticeflow/arrange/operator"
	"github.com/latticeflow/arrange/trace"
)

func intValOrder(a, b any) int {
	x, y := a.(int), b.(int)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// TestIterateHalvesUntilOne mirrors original_source's iterate() doc
// example: repeatedly halve even values (or leave odd ones alone) until
// the collection stops changing.
func TestIterateHalvesUntilOne(t *testing.T) {
	seed := []trace.Update[lattice.Nat]{
		{Key: nil, Val: 8, Time: 0, Diff: 1},
	}
	step := func(round lattice.Product[lattice.Nat, lattice.Nat], acc []trace.Update[lattice.Product[lattice.Nat, lattice.Nat]]) []trace.Update[lattice.Product[lattice.Nat, lattice.Nat]] {
		var out []trace.Update[lattice.Product[lattice.Nat, lattice.Nat]]
		for _, a := range trace.AccumulateKey(trace.NewBatch(acc, lattice.New[lattice.Product[lattice.Nat, lattice.Nat]](), lattice.New[lattice.Product[lattice.Nat, lattice.Nat]](), intValOrder).Cursor(), nil, round) {
			v := a.Val.(int)
			next := v
			if v%2 == 0 && v > 1 {
				next = v / 2
			}
			if next != v {
				out = append(out,
					trace.Update[lattice.Product[lattice.Nat, lattice.Nat]]{Val: v, Diff: a.Diff.Negate()},
					trace.Update[lattice.Product[lattice.Nat, lattice.Nat]]{Val: next, Diff: a.Diff},
				)
			}
		}
		return out
	}

	out := operator.Iterate[lattice.Nat](0, seed, intValOrder, 10, step)
	require.Len(t, out, 1)
	require.Equal(t, 1, out[0].Val)
	require.Equal(t, trace.Diff(1), out[0].Diff)
}

func TestIterateStopsAtFixedPoint(t *testing.T) {
	calls := 0
	seed := []trace.Update[lattice.Nat]{{Val: 1, Time: 0, Diff: 1}}
	step := func(_ lattice.Product[lattice.Nat, lattice.Nat], _ []trace.Update[lattice.Product[lattice.Nat, lattice.Nat]]) []trace.Update[lattice.Product[lattice.Nat, lattice.Nat]] {
		calls++
		return nil // already fixed from round 1 onward
	}
	out := operator.Iterate[lattice.Nat](0, seed, intValOrder, 50, step)
	require.Equal(t, 1, calls) // halts immediately after the first empty round
	require.Len(t, out, 1)
	require.Equal(t, 1, out[0].Val)
}
