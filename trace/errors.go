package trace

import "errors"

// Contract violations (spec §7): all are programming errors, not runtime
// conditions the engine attempts to recover from. Callers (the arrange
// operator, trace handles) treat them as fatal to the worker.
var (
	// ErrMalformedBatchBoundary is returned by Insert when the new
	// batch's lower bound does not equal the trace's current upper
	// bound (spec §4.3 "Contract of insert(batch)").
	ErrMalformedBatchBoundary = errors.New("trace: batch.lower does not match trace.upper")

	// ErrRegressiveFrontier is returned by SetPhysicalCompaction and
	// SetLogicalCompaction when asked to move that compaction frontier
	// backwards (spec §7).
	ErrRegressiveFrontier = errors.New("trace: frontier may not move backwards")

	// ErrLogicalAboveSince is returned by SetLogicalCompaction when the
	// requested frontier exceeds the trace's physical since (spec §4.3
	// "Contract of set_logical_compaction(F): must be ≤ since").
	ErrLogicalAboveSince = errors.New("trace: logical compaction frontier must not exceed since")
)
