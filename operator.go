package preflow

import "context"

// RawStat is an unfinalized statistic value produced by a StatOperator's
// Compute, prior to being merged via Finalize.
type RawStat interface{}

// An Operator is a unit of computation applied to one ColumnGroup of a
// partitioned dataset. Every Operator is exactly one of three kinds: a pure
// TransformOperator, a pure StatOperator, or a DFOperator (a transform which
// consumes previously-computed statistics).
type Operator interface {
	ID() string             // ID returns the unique identifier for this Operator instance
	DefaultIn() ColumnGroup // DefaultIn returns the ColumnGroup this Operator targets by default
}

// A TransformOperator derives new columns from a Partition. Apply must be a
// pure function of its inputs: it is replayed lazily and may run against
// partitions in any order.
type TransformOperator interface {
	Operator
	// Apply transforms a single Partition. group and targets identify which
	// column-context sub-keys this invocation reads its input columns from.
	// stats is a read view of the statistics store, and is nil unless this
	// operator declared required statistics.
	Apply(part Partition, cctx ColumnContext, group ColumnGroup, targets []string, stats StatsReader) (Partition, error)
}

// A StatOperator computes an aggregate statistic over a Dataset. Compute
// produces a raw value, Finalize merges it into the operator's collected
// form, and Clear releases any intermediate state the operator holds.
type StatOperator interface {
	Operator
	Compute(ctx context.Context, ds Dataset, cctx ColumnContext, group ColumnGroup, targets []string) (RawStat, error)
	Finalize(raw RawStat) error
	StatsCollected() map[string]interface{} // StatsCollected returns finalized statistics, keyed by statistic name
	Clear()
}

// A DFOperator is a TransformOperator which reads statistics produced by
// other operators. Its required statistics gate its phase placement: it may
// only run in a phase strictly later than the phases computing them.
type DFOperator interface {
	TransformOperator
	RequiredStats() []StatOperator
}

// A DatasetReplacer is a StatOperator whose statistic computation re-derives
// the working dataset as a side effect (re-keying it, for example). When
// ReplacementDataset returns a non-nil Dataset after Finalize, the engine
// adopts it as the working dataset and advances its base-phase cursor.
type DatasetReplacer interface {
	ReplacementDataset() Dataset
}

// StatsReader is the read view of the statistics store handed to DFOperators
// at apply time.
type StatsReader interface {
	Get(name string) (interface{}, bool)
}

// OperatorKind is a closed enumeration of Operator variants, used for
// exhaustive dispatch during task placement and phase execution
type OperatorKind uint8

const (
	// UnknownOperatorKind indicates an Operator satisfying none of the known contracts
	UnknownOperatorKind OperatorKind = iota
	// TransformKind indicates a pure TransformOperator
	TransformKind
	// DFKind indicates a stat-dependent TransformOperator
	DFKind
	// StatKind indicates a pure StatOperator
	StatKind
)

// KindOf classifies an Operator into its OperatorKind
func KindOf(op Operator) OperatorKind {
	switch op.(type) {
	case DFOperator:
		return DFKind
	case StatOperator:
		return StatKind
	case TransformOperator:
		return TransformKind
	default:
		return UnknownOperatorKind
	}
}
