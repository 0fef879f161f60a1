// Package dataflow supplies the multi-worker simulation harness named in
// spec §5's concurrency model: independent single-threaded workers, each
// holding its own shard of every arrangement, exchanging updates at
// operator boundaries configured to re-partition by key. It is
// supplemental scaffolding for driving the engine end to end, not part
// of the core library itself (spec §6: "no CLI ... the core is an
// embedded library").
package dataflow

import (
	"context"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/latticeflow/arrange/lattice"
	"github.com/latticeflow/arrange/trace"
)

// ExchangeFunc maps a key to the worker that should own it (spec §6
// "Exchange: a function key → worker_index registered per operator
// edge").
type ExchangeFunc func(key []byte, numWorkers int) int

// HashExchange is the default ExchangeFunc, grounded on
// tsdb.SeriesFile.SeriesKeyPartitionID: hash the key with xxhash and
// reduce modulo the worker count.
func HashExchange(key []byte, numWorkers int) int {
	if numWorkers <= 0 {
		return 0
	}
	return int(xxhash.Sum64(key) % uint64(numWorkers))
}

// Cluster coordinates a fixed set of simulated workers (spec §5:
// "Parallel independent workers; within a worker, single-threaded
// cooperative scheduling of operators"). It does not itself hold any
// arrangement state — callers own one shard of state per worker index
// and use Cluster only to fan out per-round work and repartition data
// between rounds.
type Cluster struct {
	numWorkers int
	exchange   ExchangeFunc
	logger     *zap.Logger
}

// ClusterOption configures a Cluster at construction.
type ClusterOption func(*Cluster)

// WithExchange overrides the default HashExchange partitioning function.
func WithExchange(f ExchangeFunc) ClusterOption { return func(c *Cluster) { c.exchange = f } }

// WithClusterLogger attaches a logger for round-level diagnostics.
func WithClusterLogger(l *zap.Logger) ClusterOption { return func(c *Cluster) { c.logger = l } }

// NewCluster builds a Cluster simulating numWorkers independent workers.
func NewCluster(numWorkers int, opts ...ClusterOption) *Cluster {
	c := &Cluster{numWorkers: numWorkers, exchange: HashExchange, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NumWorkers returns the worker count this cluster was built with.
func (c *Cluster) NumWorkers() int { return c.numWorkers }

// Run invokes fn once per worker concurrently via errgroup, the way
// tsdb.SeriesFile fans operations out across its partitions, returning
// the first non-nil error and cancelling the shared context for the
// rest (spec §5: "Parallel independent workers"). Run blocks until every
// worker's fn call returns.
func (c *Cluster) Run(ctx context.Context, fn func(ctx context.Context, worker int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < c.numWorkers; w++ {
		worker := w
		g.Go(func() error {
			c.logger.Debug("dataflow: worker round starting")
			return fn(gctx, worker)
		})
	}
	return g.Wait()
}

// Partition splits updates across c.NumWorkers() shards by key using the
// cluster's exchange function — the "re-partition by key" exchange point
// of spec §5. Updates with a nil key (arrange_by_self on a
// record-typed collection with no separate key bytes) all land on worker
// 0.
func Partition[T lattice.Time[T]](c *Cluster, updates []trace.Update[T]) [][]trace.Update[T] {
	out := make([][]trace.Update[T], c.numWorkers)
	for _, u := range updates {
		w := 0
		if u.Key != nil {
			w = c.exchange(u.Key, c.numWorkers)
		}
		out[w] = append(out[w], u)
	}
	return out
}
