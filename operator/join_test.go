package operator_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticeflow/arrange/lattice"
	"github.com/latticeflow/arrange/operator"
	"github.com/latticeflow/arrange/trace"
)

func natFrontier(n uint64) lattice.Antichain[lattice.Nat] {
	return lattice.New[lattice.Nat](lattice.Nat(n))
}

func strOrder(a, b any) int {
	x, y := a.(string), b.(string)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func pairOrder(a, b any) int {
	x, y := a.([2]any), b.([2]any)
	if c := strOrder(x[0], y[0]); c != 0 {
		return c
	}
	return strOrder(x[1], y[1])
}

func batchOf(t *testing.T, updates []trace.Update[lattice.Nat], lo, hi uint64) *trace.Batch[lattice.Nat] {
	t.Helper()
	return trace.NewBatch(updates, natFrontier(lo), natFrontier(hi), strOrder)
}

func TestJoinCoreMatchesOnSharedKeys(t *testing.T) {
	a := batchOf(t, []trace.Update[lattice.Nat]{
		{Key: []byte("x"), Val: "a1", Time: 0, Diff: 1},
		{Key: []byte("y"), Val: "a2", Time: 0, Diff: 1},
	}, 0, 1)
	b := batchOf(t, []trace.Update[lattice.Nat]{
		{Key: []byte("x"), Val: "b1", Time: 0, Diff: 1},
	}, 0, 1)

	out := operator.JoinCore[lattice.Nat](a.Cursor(), b.Cursor(), operator.DefaultJoin[lattice.Nat])
	require.Len(t, out, 1)
	require.Equal(t, []byte("x"), out[0].Key)
	require.Equal(t, [2]any{"a1", "b1"}, out[0].Val)
	require.Equal(t, trace.Diff(1), out[0].Diff)
}

func TestJoinBilinearIdentity(t *testing.T) {
	oldA := batchOf(t, []trace.Update[lattice.Nat]{{Key: []byte("k"), Val: "a0", Time: 0, Diff: 1}}, 0, 1)
	oldB := batchOf(t, []trace.Update[lattice.Nat]{{Key: []byte("k"), Val: "b0", Time: 0, Diff: 1}}, 0, 1)
	newA := batchOf(t, []trace.Update[lattice.Nat]{{Key: []byte("k"), Val: "a1", Time: 1, Diff: 1}}, 1, 2)
	newB := batchOf(t, []trace.Update[lattice.Nat]{{Key: []byte("k"), Val: "b1", Time: 1, Diff: 1}}, 1, 2)

	got := operator.Join[lattice.Nat](oldA.Cursor(), oldB.Cursor(), newA.Cursor(), newB.Cursor(), pairOrder, operator.DefaultJoin[lattice.Nat])

	// Brute force: join (oldA+newA) x (oldB+newB), then subtract oldA x oldB.
	all := func(batches ...*trace.Batch[lattice.Nat]) []trace.Update[lattice.Nat] {
		var out []trace.Update[lattice.Nat]
		for _, b := range batches {
			c := b.Cursor()
			for ; c.KeyValid(); c.StepKey() {
				key := append([]byte(nil), c.Key()...)
				for ; c.ValValid(); c.StepVal() {
					val := c.Val()
					c.MapTimes(func(tm lattice.Nat, d trace.Diff) {
						out = append(out, trace.Update[lattice.Nat]{Key: key, Val: val, Time: tm, Diff: d})
					})
				}
			}
		}
		return out
	}
	bruteJoin := func(as, bs []trace.Update[lattice.Nat]) []trace.Update[lattice.Nat] {
		var out []trace.Update[lattice.Nat]
		for _, ua := range as {
			for _, ub := range bs {
				if string(ua.Key) != string(ub.Key) {
					continue
				}
				out = append(out, trace.Update[lattice.Nat]{
					Key: ua.Key, Val: [2]any{ua.Val, ub.Val}, Time: ua.Time.Join(ub.Time),
					Diff: trace.Diff(int64(ua.Diff) * int64(ub.Diff)),
				})
			}
		}
		return out
	}
	combinedA := append(all(oldA), all(newA)...)
	combinedB := append(all(oldB), all(newB)...)
	want := trace.ConsolidateUpdates(append(
		bruteJoin(combinedA, combinedB),
		negateAll(bruteJoin(all(oldA), all(oldB)))...,
	), pairOrder)

	require.ElementsMatch(t, want, got)
}

func negateAll(us []trace.Update[lattice.Nat]) []trace.Update[lattice.Nat] {
	out := make([]trace.Update[lattice.Nat], len(us))
	for i, u := range us {
		out[i] = trace.Update[lattice.Nat]{Key: u.Key, Val: u.Val, Time: u.Time, Diff: u.Diff.Negate()}
	}
	return out
}

func TestJoinHandlesNilSides(t *testing.T) {
	oldA := batchOf(t, []trace.Update[lattice.Nat]{{Key: []byte("k"), Val: "a0", Time: 0, Diff: 1}}, 0, 1)
	oldB := batchOf(t, []trace.Update[lattice.Nat]{{Key: []byte("k"), Val: "b0", Time: 0, Diff: 1}}, 0, 1)

	out := operator.Join[lattice.Nat](oldA.Cursor(), oldB.Cursor(), nil, nil, pairOrder, operator.DefaultJoin[lattice.Nat])
	require.Empty(t, out)
}

func TestSemijoinKeepsOnlyASideValues(t *testing.T) {
	a := batchOf(t, []trace.Update[lattice.Nat]{{Key: []byte("k"), Val: "a0", Time: 0, Diff: 1}}, 0, 1)
	b := batchOf(t, []trace.Update[lattice.Nat]{{Key: []byte("k"), Val: "b0", Time: 0, Diff: 1}}, 0, 1)

	out := operator.Semijoin[lattice.Nat](nil, nil, a.Cursor(), b.Cursor(), strOrder)
	require.Len(t, out, 1)
	require.Equal(t, "a0", out[0].Val)
	require.Equal(t, trace.Diff(1), out[0].Diff)
}
