package dataflow_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticeflow/arrange/arrange"
	"github.com/latticeflow/arrange/dataflow"
	"github.com/latticeflow/arrange/lattice"
)

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

func TestScopeClosesAllEnteredHandles(t *testing.T) {
	op := arrange.NewOperator[lattice.Nat](lattice.New[lattice.Nat](0), strOrder)
	scope := dataflow.NewScope[lattice.Nat]()
	h1 := scope.Enter(op.Arrangement().Clone())
	h2 := scope.Enter(op.Arrangement().Clone())

	require.NoError(t, scope.Close())
	require.ErrorIs(t, h1.Close(), arrange.ErrHandleAlreadyClosed)
	require.ErrorIs(t, h2.Close(), arrange.ErrHandleAlreadyClosed)
}
