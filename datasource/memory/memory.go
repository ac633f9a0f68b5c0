// Package memory provides an in-memory implementation of the preflow Dataset
// contract, suitable for tests and single-process runs. MapPartitions chains
// compose lazily; realization happens on Collect, in parallel across
// partitions.
package memory

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	xxhash "github.com/cespare/xxhash/v2"
	uuid "github.com/gofrs/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/go-preflow/preflow"
	perrors "github.com/go-preflow/preflow/errors"
)

// Dataset is an in-memory partitioned dataset handle. The root of a chain
// holds source partitions; derived handles hold a mapper and a parent.
type Dataset struct {
	id     string
	base   []preflow.Partition
	parent *Dataset
	mapper preflow.PartitionMapper

	lock      sync.Mutex
	realized  []preflow.Partition
	cancelled bool
}

// FromPartitions creates a Dataset over existing partitions
func FromPartitions(parts []preflow.Partition) *Dataset {
	return &Dataset{id: newID(), base: parts}
}

func newID() string {
	id, err := uuid.NewV4()
	if err != nil {
		panic(err)
	}
	return id.String()
}

// ID returns an identifier unique to this Dataset handle
func (d *Dataset) ID() string {
	return d.id
}

// MapPartitions lazily derives a new Dataset by applying fn to every
// Partition. No work happens until the result is realized.
func (d *Dataset) MapPartitions(fn preflow.PartitionMapper) preflow.Dataset {
	return &Dataset{id: newID(), parent: d, mapper: fn}
}

// Collect realizes and returns all Partitions of this Dataset. Partitions
// are mapped in parallel, bounded by GOMAXPROCS, and the realized result is
// cached for subsequent calls.
func (d *Dataset) Collect(ctx context.Context) ([]preflow.Partition, error) {
	d.lock.Lock()
	if d.cancelled {
		d.lock.Unlock()
		return nil, perrors.CancelledDatasetError{ID: d.id}
	}
	if d.realized != nil {
		parts := d.realized
		d.lock.Unlock()
		return parts, nil
	}
	d.lock.Unlock()

	source := d.base
	if d.parent != nil {
		var err error
		source, err = d.parent.Collect(ctx)
		if err != nil {
			return nil, err
		}
	}
	if d.mapper == nil {
		d.lock.Lock()
		d.realized = source
		d.lock.Unlock()
		return source, nil
	}

	mapped := make([]preflow.Partition, len(source))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, part := range source {
		i, part := i, part
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := d.mapper(part)
			if err != nil {
				return err
			}
			mapped[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	d.lock.Lock()
	if d.cancelled {
		d.lock.Unlock()
		return nil, perrors.CancelledDatasetError{ID: d.id}
	}
	d.realized = mapped
	d.lock.Unlock()
	return mapped, nil
}

// Partitions realizes this Dataset and iterates its Partitions
func (d *Dataset) Partitions(ctx context.Context) (preflow.PartitionIterator, error) {
	parts, err := d.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return &partitionSliceIterator{parts: parts}, nil
}

// Cancel releases realized partition buffers and marks this handle unusable
func (d *Dataset) Cancel() {
	d.lock.Lock()
	d.realized = nil
	d.cancelled = true
	d.lock.Unlock()
}

// Rekey redistributes all rows across numPartitions buckets by hashing the
// named column's values, realizing the dataset in the process. The resulting
// Dataset groups equal key values into the same partition.
func (d *Dataset) Rekey(ctx context.Context, column string, numPartitions int) (*Dataset, error) {
	if numPartitions < 1 {
		return nil, fmt.Errorf("cannot rekey into %d partitions", numPartitions)
	}
	source, err := d.Collect(ctx)
	if err != nil {
		return nil, err
	}
	var order []string
	buckets := make([]map[string][]interface{}, numPartitions)
	for i := range buckets {
		buckets[i] = make(map[string][]interface{})
	}
	for _, part := range source {
		if len(order) == 0 {
			order = part.ColumnNames()
		}
		keys, err := part.Column(column)
		if err != nil {
			return nil, err
		}
		for row := 0; row < part.NumRows(); row++ {
			bucket := int(xxhash.Sum64String(fmt.Sprint(keys[row])) % uint64(numPartitions))
			for _, name := range order {
				values, err := part.Column(name)
				if err != nil {
					return nil, err
				}
				buckets[bucket][name] = append(buckets[bucket][name], values[row])
			}
		}
	}
	parts := make([]preflow.Partition, 0, numPartitions)
	for _, cols := range buckets {
		if len(order) > 0 && len(cols[order[0]]) == 0 {
			continue // drop empty buckets
		}
		for _, name := range order {
			if cols[name] == nil {
				cols[name] = []interface{}{}
			}
		}
		part, err := CreatePartition(order, cols)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return FromPartitions(parts), nil
}

// partitionSliceIterator serves realized partitions in order
type partitionSliceIterator struct {
	lock  sync.Mutex
	parts []preflow.Partition
	next  int
}

// HasNextPartition returns true iff this iterator can produce another Partition
func (it *partitionSliceIterator) HasNextPartition() bool {
	it.lock.Lock()
	defer it.lock.Unlock()
	return it.next < len(it.parts)
}

// NextPartition returns the next Partition if one is available, or an error
func (it *partitionSliceIterator) NextPartition() (preflow.Partition, error) {
	it.lock.Lock()
	defer it.lock.Unlock()
	if it.next >= len(it.parts) {
		return nil, perrors.NoMorePartitionsError{}
	}
	part := it.parts[it.next]
	it.next++
	return part, nil
}
