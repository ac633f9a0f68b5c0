package preflow

// A Writer consumes processed partitions after the final phase of a run.
// Before the first partition arrives, the engine supplies the resolved
// column-group name lists if the Writer asks for them. Close returns
// general and specialized metadata describing what was physically written.
type Writer interface {
	NeedsColumnNames() bool                             // NeedsColumnNames returns true iff column name lists have not yet been supplied
	SetColumnNames(cats, conts, labels []string)        // SetColumnNames supplies the resolved categorical/continuous/label column names
	AddPartition(part Partition) error                  // AddPartition writes one processed Partition
	Close() (general, special map[string]interface{}, err error)
}
