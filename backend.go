package preflow

import "context"

// A PendingStat pairs a StatOperator with the deferred computation which
// realizes its raw statistic. The computation runs against the composed lazy
// result of all pending transforms, not the raw input.
type PendingStat struct {
	Op      StatOperator
	Compute func(ctx context.Context) (RawStat, error)
}

// A ComputedStat is a realized statistic, ready to be finalized
type ComputedStat struct {
	Op  StatOperator
	Raw RawStat
}

// A StatBackend realizes a batch of pending statistic computations, possibly
// across a distributed cluster. Realization is the engine's sole blocking
// point: Compute must not return until every result is available or an error
// has occurred. When a Workflow has no StatBackend, pending statistics are
// realized synchronously in the driver.
type StatBackend interface {
	Compute(ctx context.Context, pending []PendingStat) ([]ComputedStat, error)
}
