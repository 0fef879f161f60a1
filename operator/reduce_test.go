package operator_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/latticeflow/arrange/lattice"
	"github.com/latticeflow/arrange/operator"
	"github.com/latticeflow/arrange/trace"
)

func emptyCursor(t *testing.T) trace.Cursor[lattice.Nat] {
	t.Helper()
	return trace.NewBatch[lattice.Nat](nil, natFrontier(0), natFrontier(1), strOrder).Cursor()
}

// sumReduce adds up every Diff-weighted occurrence into a single "total"
// value, mirroring a SQL SUM aggregate.
func sumReduce(_ []byte, input []trace.Accumulated) []trace.Accumulated {
	var total int64
	for _, a := range input {
		total += int64(a.Diff)
	}
	if total == 0 {
		return nil
	}
	return []trace.Accumulated{{Val: "total", Diff: trace.Diff(total)}}
}

func TestReduceEmitsAggregateAtEachInterestingTime(t *testing.T) {
	input := batchOf(t, []trace.Update[lattice.Nat]{
		{Key: []byte("k"), Val: "a", Time: 0, Diff: 1},
		{Key: []byte("k"), Val: "b", Time: 1, Diff: 1},
	}, 0, 2)

	out := operator.Reduce[lattice.Nat]([]byte("k"), input.Cursor(), emptyCursor(t), strOrder, sumReduce)
	require.Len(t, out, 2)
	require.Equal(t, lattice.Nat(0), out[0].Time)
	require.Equal(t, trace.Diff(1), out[0].Diff)
	require.Equal(t, lattice.Nat(1), out[1].Time)
	require.Equal(t, trace.Diff(1), out[1].Diff)
}

func TestReduceAgainstPriorOutputEmitsOnlyDelta(t *testing.T) {
	input := batchOf(t, []trace.Update[lattice.Nat]{
		{Key: []byte("k"), Val: "a", Time: 0, Diff: 1},
	}, 0, 1)
	// Output trace already records "total"=1 at time 0, the expected
	// desired value, so Reduce must emit nothing further.
	priorOutput := batchOf(t, []trace.Update[lattice.Nat]{
		{Key: []byte("k"), Val: "total", Time: 0, Diff: 1},
	}, 0, 1)

	out := operator.Reduce[lattice.Nat]([]byte("k"), input.Cursor(), priorOutput.Cursor(), strOrder, sumReduce)
	require.Empty(t, out)
}

func TestReduceRetractsWhenInputShrinks(t *testing.T) {
	input := batchOf(t, []trace.Update[lattice.Nat]{
		{Key: []byte("k"), Val: "a", Time: 0, Diff: 1},
		{Key: []byte("k"), Val: "a", Time: 1, Diff: -1},
	}, 0, 2)

	out := operator.Reduce[lattice.Nat]([]byte("k"), input.Cursor(), emptyCursor(t), strOrder, sumReduce)
	require.Len(t, out, 2)
	require.Equal(t, lattice.Nat(0), out[0].Time)
	require.Equal(t, trace.Diff(1), out[0].Diff)
	require.Equal(t, lattice.Nat(1), out[1].Time)
	require.Equal(t, trace.Diff(-1), out[1].Diff)
}

func TestReduceStructuralDiffAgainstExpectedAccumulation(t *testing.T) {
	input := batchOf(t, []trace.Update[lattice.Nat]{
		{Key: []byte("k"), Val: "a", Time: 0, Diff: 1},
	}, 0, 1)

	out := operator.Reduce[lattice.Nat]([]byte("k"), input.Cursor(), emptyCursor(t), strOrder, sumReduce)
	want := []trace.Update[lattice.Nat]{
		{Key: []byte("k"), Val: "total", Time: 0, Diff: 1},
	}
	if diff := cmp.Diff(want, out, cmp.Comparer(func(a, b lattice.Nat) bool { return a == b })); diff != "" {
		t.Fatalf("unexpected reduce output (-want +got):\n%s", diff)
	}
}

func TestReduceAllCoversEveryDistinctKey(t *testing.T) {
	input := batchOf(t, []trace.Update[lattice.Nat]{
		{Key: []byte("k1"), Val: "a", Time: 0, Diff: 1},
		{Key: []byte("k2"), Val: "b", Time: 0, Diff: 4},
	}, 0, 1)

	out := operator.ReduceAll[lattice.Nat](input.Cursor(), emptyCursor(t), strOrder, operator.Count)
	require.Len(t, out, 2)
	var totals []int64
	for _, u := range out {
		totals = append(totals, u.Val.(int64))
	}
	require.ElementsMatch(t, []int64{1, 4}, totals)
}

func TestCountReducesToCardinality(t *testing.T) {
	input := batchOf(t, []trace.Update[lattice.Nat]{
		{Key: []byte("k"), Val: "a", Time: 0, Diff: 1},
		{Key: []byte("k"), Val: "b", Time: 0, Diff: 2},
	}, 0, 1)

	out := operator.Reduce[lattice.Nat]([]byte("k"), input.Cursor(), emptyCursor(t), strOrder, operator.Count)
	require.Len(t, out, 1)
	require.Equal(t, int64(3), out[0].Val)
	require.Equal(t, trace.Diff(1), out[0].Diff)
}

func TestDistinctCollapsesMultiplicities(t *testing.T) {
	input := batchOf(t, []trace.Update[lattice.Nat]{
		{Key: []byte("k"), Val: "a", Time: 0, Diff: 3},
	}, 0, 1)

	out := operator.Reduce[lattice.Nat]([]byte("k"), input.Cursor(), emptyCursor(t), strOrder, operator.Distinct)
	require.Len(t, out, 1)
	require.Equal(t, "a", out[0].Val)
	require.Equal(t, trace.Diff(1), out[0].Diff)
}

func TestThresholdDropsNonPositiveCounts(t *testing.T) {
	input := batchOf(t, []trace.Update[lattice.Nat]{
		{Key: []byte("k"), Val: "a", Time: 0, Diff: -1},
	}, 0, 1)

	out := operator.Reduce[lattice.Nat]([]byte("k"), input.Cursor(), emptyCursor(t), strOrder, operator.Threshold)
	require.Empty(t, out)
}
