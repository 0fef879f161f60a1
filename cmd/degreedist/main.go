// Command degreedist is a demonstration driver, not part of the core
// library (spec §6: "no CLI"), exercising the engine end to end over a
// small graph: it computes each node's out-degree, then the
// distribution of those degrees, following original_source's
// examples/degrees.rs pipeline of two chained counts.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/latticeflow/arrange/arrange"
	"github.com/latticeflow/arrange/lattice"
	"github.com/latticeflow/arrange/logger"
	"github.com/latticeflow/arrange/operator"
	"github.com/latticeflow/arrange/trace"
)

type edge struct{ src, dst int }

func encodeInt(n int) []byte { return []byte(fmt.Sprintf("%010d", n)) }

func natFrontier(n uint64) lattice.Antichain[lattice.Nat] {
	return lattice.New[lattice.Nat](lattice.Nat(n))
}

func noValOrder(any, any) int { return 0 }

func main() {
	log := logger.New(os.Stdout)
	defer log.Sync() //nolint:errcheck

	edges := []edge{{0, 1}, {0, 2}, {1, 2}, {1, 3}, {2, 3}, {3, 4}}

	edgeOp := arrange.ArrangeBySelf[lattice.Nat](natFrontier(0))
	for _, e := range edges {
		edgeOp.Notify(trace.Update[lattice.Nat]{Key: encodeInt(e.src), Val: e.dst, Time: 0, Diff: 1})
	}
	edgeBatch, err := edgeOp.AdvanceInput(natFrontier(1))
	if err != nil {
		log.Fatal("arranging edges", zap.Error(err))
	}

	sources := operator.Map(trace.Materialize[lattice.Nat](edgeBatch.Cursor()), func(key []byte, _ any) ([]byte, any) {
		return key, nil // edges are already keyed by source; drop the dst value
	})
	sourceBatch := trace.NewBatch(sources, natFrontier(0), natFrontier(1), noValOrder)
	emptyOutput := trace.NewBatch[lattice.Nat](nil, natFrontier(0), natFrontier(1), noValOrder)

	degreeByNode := operator.ReduceAll[lattice.Nat](sourceBatch.Cursor(), emptyOutput.Cursor(), noValOrder, operator.Count)

	degreeValues := operator.Map(degreeByNode, func(_ []byte, val any) ([]byte, any) {
		return encodeInt(int(val.(int64))), nil
	})
	degreeBatch := trace.NewBatch(degreeValues, natFrontier(0), natFrontier(1), noValOrder)

	distribution := operator.ReduceAll[lattice.Nat](degreeBatch.Cursor(), emptyOutput.Cursor(), noValOrder, operator.Count)

	for _, u := range distribution {
		var degree int
		fmt.Sscanf(string(u.Key), "%d", &degree)
		fmt.Printf("degree=%d nodes=%v diff=%d\n", degree, u.Val, u.Diff)
	}
}
