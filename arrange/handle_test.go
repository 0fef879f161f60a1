package arrange_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticeflow/arrange/arrange"
	"github.com/latticeflow/arrange/lattice"
)

func TestCloseAllAggregatesDoubleCloseErrors(t *testing.T) {
	op := arrange.NewOperator[lattice.Nat](nf(0), intOrder)
	h1 := op.Arrangement().Clone()
	h2 := op.Arrangement().Clone()
	require.NoError(t, h1.Close())

	err := arrange.CloseAll(h1, h2)
	require.ErrorIs(t, err, arrange.ErrHandleAlreadyClosed)
}

func TestCloseAllSucceedsWhenAllFresh(t *testing.T) {
	op := arrange.NewOperator[lattice.Nat](nf(0), intOrder)
	h1 := op.Arrangement().Clone()
	h2 := op.Arrangement().Clone()

	require.NoError(t, arrange.CloseAll(h1, h2))
}
