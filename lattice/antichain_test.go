package lattice_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticeflow/arrange/lattice"
)

func TestAntichainInsertMinimizes(t *testing.T) {
	var f lattice.Antichain[lattice.Nat]
	require.True(t, f.Insert(5))
	require.True(t, f.Insert(3)) // 3 < 5, displaces it
	require.ElementsMatch(t, []lattice.Nat{3}, f.Elements())

	require.False(t, f.Insert(7)) // dominated by existing 3, no-op
	require.ElementsMatch(t, []lattice.Nat{3}, f.Elements())
}

func TestAntichainLessEqualTime(t *testing.T) {
	f := lattice.New[lattice.Nat](3, 10)
	require.True(t, f.LessEqualTime(3))
	require.True(t, f.LessEqualTime(10))
	require.True(t, f.LessEqualTime(4))
	require.False(t, f.LessEqualTime(2))
}

func TestAntichainEmptyIsDrained(t *testing.T) {
	var f lattice.Antichain[lattice.Nat]
	require.True(t, f.Empty())
	require.False(t, f.LessEqualTime(1000))
}

func TestAntichainMeetIsLeastAdvanced(t *testing.T) {
	a := lattice.New[lattice.Nat](5)
	b := lattice.New[lattice.Nat](3)
	m := a.Meet(&b)
	require.ElementsMatch(t, []lattice.Nat{3}, m.Elements())
}

func TestAntichainJoinIsMostAdvanced(t *testing.T) {
	a := lattice.New[lattice.Nat](5)
	b := lattice.New[lattice.Nat](3)
	j := a.Join(&b)
	require.ElementsMatch(t, []lattice.Nat{5}, j.Elements())
}

func TestAntichainDominates(t *testing.T) {
	advanced := lattice.New[lattice.Nat](10)
	behind := lattice.New[lattice.Nat](3)
	require.True(t, advanced.Dominates(&behind))
	require.False(t, behind.Dominates(&advanced))
}

func TestCoarsenCollapsesDistinguishableTimes(t *testing.T) {
	frontier := lattice.New[lattice.Nat](10)
	require.Equal(t, lattice.Nat(10), frontier.Coarsen(3))
	require.Equal(t, lattice.Nat(10), frontier.Coarsen(7))
	require.Equal(t, lattice.Nat(15), frontier.Coarsen(15)) // past the frontier, unchanged
}

func TestCoarsenEmptyFrontierIsIdentity(t *testing.T) {
	var frontier lattice.Antichain[lattice.Nat]
	require.Equal(t, lattice.Nat(42), frontier.Coarsen(42))
}

func TestProductOrderLessEqual(t *testing.T) {
	a := lattice.Pair[lattice.Nat, lattice.Nat](1, 2)
	b := lattice.Pair[lattice.Nat, lattice.Nat](1, 3)
	require.True(t, a.LessEqual(b))
	require.False(t, b.LessEqual(a))

	c := lattice.Pair[lattice.Nat, lattice.Nat](2, 0)
	require.False(t, a.LessEqual(c)) // incomparable: outer advances, inner regresses
	require.False(t, c.LessEqual(a))
}

func TestEnterAndLeave(t *testing.T) {
	outer := lattice.Nat(7)
	nested := lattice.Enter[lattice.Nat, lattice.Nat](outer, 0)
	require.Equal(t, outer, lattice.Leave(nested))

	advanced := lattice.Increment(nested)
	require.Equal(t, lattice.Nat(1), advanced.Inner)
	require.Equal(t, outer, lattice.Leave(advanced))
}
