package errors

import (
	"fmt"
	"strings"
)

// UnknownOperatorError occurs when an Operator is neither a Transform nor a Statistic
type UnknownOperatorError struct{ ID string }

// Error returns a textual representation of this UnknownOperatorError
func (e UnknownOperatorError) Error() string {
	return fmt.Sprintf("Operator %s is neither a transform nor a statistic", e.ID)
}

// NoDatasetError occurs when a phase is executed before a working dataset is set
type NoDatasetError struct{}

// Error returns a textual representation of this NoDatasetError
func (e NoDatasetError) Error() string {
	return "No working dataset is available"
}

// DependencyCycleError occurs when tasks cannot be placed into any phase
// because their dependencies form a cycle
type DependencyCycleError struct{ OperatorIDs []string }

// Error returns a textual representation of this DependencyCycleError
func (e DependencyCycleError) Error() string {
	return fmt.Sprintf("Tasks form a dependency cycle: %s", strings.Join(e.OperatorIDs, ", "))
}

// MissingColumnError occurs when a Partition does not contain a requested column
type MissingColumnError struct{ Name string }

// Error returns a textual representation of this MissingColumnError
func (e MissingColumnError) Error() string {
	return fmt.Sprintf("Column %s does not exist in partition", e.Name)
}

// ColumnLengthError occurs when a column's value count does not match a Partition's row count
type ColumnLengthError struct {
	Name     string
	Expected int
	Actual   int
}

// Error returns a textual representation of this ColumnLengthError
func (e ColumnLengthError) Error() string {
	return fmt.Sprintf("Column %s has %d values but partition has %d rows", e.Name, e.Actual, e.Expected)
}

// NoMorePartitionsError occurs when there are no more partitions in a PartitionIterator
type NoMorePartitionsError struct{}

// Error returns a textual representation of this NoMorePartitionsError
func (e NoMorePartitionsError) Error() string {
	return "No more partitions"
}

// CancelledDatasetError occurs when a cancelled Dataset handle is realized
type CancelledDatasetError struct{ ID string }

// Error returns a textual representation of this CancelledDatasetError
func (e CancelledDatasetError) Error() string {
	return fmt.Sprintf("Dataset %s has been cancelled", e.ID)
}
