package preflow

// ColumnGroup identifies which named group of columns an Operator targets
type ColumnGroup string

const (
	// AllColumns targets every input column
	AllColumns ColumnGroup = "all"
	// ContinuousColumns targets continuous (numeric) columns
	ContinuousColumns ColumnGroup = "continuous"
	// CategoricalColumns targets categorical columns
	CategoricalColumns ColumnGroup = "categorical"
	// LabelColumns targets label columns
	LabelColumns ColumnGroup = "label"
)

// BaseKey is the column-context sub-key under which the raw input columns of
// a ColumnGroup are recorded. A task whose sole dependency is BaseKey reads
// untransformed input data.
const BaseKey = "base"

// ColumnGroups returns all ColumnGroups in their canonical order
func ColumnGroups() []ColumnGroup {
	return []ColumnGroup{AllColumns, ContinuousColumns, CategoricalColumns, LabelColumns}
}

// ColumnContext tracks named groups of columns as they flow through the
// phases of a pipeline. Within each group, column name lists are recorded
// under sub-keys: BaseKey for raw input columns, or the identifier of the
// Operator which produced them.
type ColumnContext interface {
	DeclareBase(group ColumnGroup, cols []string)              // DeclareBase seeds a group's raw input column list
	Register(group ColumnGroup, key string, cols []string)     // Register records columns produced under key for a group
	Columns(group ColumnGroup, key string) []string            // Columns returns the column list recorded under key, or nil
	HasKey(group ColumnGroup, key string) bool                 // HasKey returns true iff key has been recorded for group
	Names(group ColumnGroup) []string                          // Names returns the de-duplicated ordered list of all columns ever recorded for a group
	SetFinalRefs(refs map[ColumnGroup][]string)                // SetFinalRefs records which sub-keys contribute to the output schema
	FinalRefs() map[ColumnGroup][]string                       // FinalRefs returns the recorded contributor sub-keys, or nil if unset
	ResolveFinal() map[ColumnGroup][]string                    // ResolveFinal materializes final column names from the recorded refs
	FinalColumns(group ColumnGroup) []string                   // FinalColumns returns the resolved final columns for a group
	Export() ColumnContextData                                 // Export produces a serializable snapshot of this context
	Import(data ColumnContextData)                             // Import replaces the state of this context with a snapshot
}

// ColumnContextData is a serializable snapshot of a ColumnContext, suitable
// for persisting alongside computed statistics.
type ColumnContextData struct {
	Groups    map[ColumnGroup]map[string][]string `yaml:"groups"`
	KeyOrder  map[ColumnGroup][]string            `yaml:"key_order"`
	FinalRefs map[ColumnGroup][]string            `yaml:"final_refs,omitempty"`
	FinalCols map[ColumnGroup][]string            `yaml:"final_cols,omitempty"`
}
