package preflow

import "context"

// A PartitionMapper is a pure function transforming one Partition into another
type PartitionMapper func(part Partition) (Partition, error)

// A Partition is a horizontal slice of a tabular dataset, exposing its data
// as named columns. Partitions are immutable: derivation methods return new
// Partitions sharing unmodified column data with their parent.
type Partition interface {
	ID() string                                                // ID returns an identifier unique to this Partition
	NumRows() int                                              // NumRows returns the number of rows in this Partition
	ColumnNames() []string                                     // ColumnNames lists the columns of this Partition, in order
	HasColumn(name string) bool                                // HasColumn returns true iff this Partition contains the named column
	Column(name string) ([]interface{}, error)                 // Column returns the values of the named column. Callers must not mutate the result.
	WithColumn(name string, values []interface{}) (Partition, error) // WithColumn returns a Partition with the named column added or replaced
	DropColumn(name string) (Partition, error)                 // DropColumn returns a Partition without the named column
}

// A PartitionIterator produces a series of Partitions
type PartitionIterator interface {
	HasNextPartition() bool              // HasNextPartition returns true iff this PartitionIterator can produce another Partition
	NextPartition() (Partition, error)   // NextPartition returns the next Partition if one is available, or an error
}

// A Dataset is an opaque handle to the current state of a partitioned
// dataset. MapPartitions is lazy: the derived Dataset records the mapper
// without materializing results, and realization happens on Collect or
// Partitions. A derived Dataset which is never committed as the working
// dataset must be released with Cancel.
type Dataset interface {
	ID() string                                              // ID returns an identifier unique to this Dataset handle
	MapPartitions(fn PartitionMapper) Dataset                // MapPartitions lazily derives a new Dataset by applying fn to every Partition
	Collect(ctx context.Context) ([]Partition, error)        // Collect realizes and returns all Partitions of this Dataset
	Partitions(ctx context.Context) (PartitionIterator, error) // Partitions realizes this Dataset and iterates its Partitions
	Cancel()                                                 // Cancel releases any resources held by an uncommitted realization
}
