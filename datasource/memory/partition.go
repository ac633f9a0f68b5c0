package memory

import (
	uuid "github.com/gofrs/uuid"

	"github.com/go-preflow/preflow"
	perrors "github.com/go-preflow/preflow/errors"
)

// partition is an immutable in-memory columnar Partition. Derivation methods
// share unmodified column slices with the parent.
type partition struct {
	id    string
	order []string
	cols  map[string][]interface{}
	rows  int
}

// CreatePartition builds a Partition from named column slices. Every column
// must have the same number of values.
func CreatePartition(order []string, cols map[string][]interface{}) (preflow.Partition, error) {
	rows := 0
	if len(order) > 0 {
		rows = len(cols[order[0]])
	}
	for _, name := range order {
		values, ok := cols[name]
		if !ok {
			return nil, perrors.MissingColumnError{Name: name}
		}
		if len(values) != rows {
			return nil, perrors.ColumnLengthError{Name: name, Expected: rows, Actual: len(values)}
		}
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	return &partition{
		id:    id.String(),
		order: append([]string{}, order...),
		cols:  cols,
		rows:  rows,
	}, nil
}

// ID returns an identifier unique to this Partition
func (p *partition) ID() string {
	return p.id
}

// NumRows returns the number of rows in this Partition
func (p *partition) NumRows() int {
	return p.rows
}

// ColumnNames lists the columns of this Partition, in order
func (p *partition) ColumnNames() []string {
	return append([]string{}, p.order...)
}

// HasColumn returns true iff this Partition contains the named column
func (p *partition) HasColumn(name string) bool {
	_, ok := p.cols[name]
	return ok
}

// Column returns the values of the named column
func (p *partition) Column(name string) ([]interface{}, error) {
	values, ok := p.cols[name]
	if !ok {
		return nil, perrors.MissingColumnError{Name: name}
	}
	return values, nil
}

// WithColumn returns a Partition with the named column added or replaced
func (p *partition) WithColumn(name string, values []interface{}) (preflow.Partition, error) {
	if p.rows > 0 && len(values) != p.rows {
		return nil, perrors.ColumnLengthError{Name: name, Expected: p.rows, Actual: len(values)}
	}
	cols := make(map[string][]interface{}, len(p.cols)+1)
	for colName, colValues := range p.cols {
		cols[colName] = colValues
	}
	order := append([]string{}, p.order...)
	if _, exists := cols[name]; !exists {
		order = append(order, name)
	}
	cols[name] = values
	rows := p.rows
	if len(p.order) == 0 {
		rows = len(values)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	return &partition{id: id.String(), order: order, cols: cols, rows: rows}, nil
}

// DropColumn returns a Partition without the named column
func (p *partition) DropColumn(name string) (preflow.Partition, error) {
	if _, ok := p.cols[name]; !ok {
		return nil, perrors.MissingColumnError{Name: name}
	}
	cols := make(map[string][]interface{}, len(p.cols)-1)
	order := make([]string, 0, len(p.order)-1)
	for _, colName := range p.order {
		if colName == name {
			continue
		}
		cols[colName] = p.cols[colName]
		order = append(order, colName)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	return &partition{id: id.String(), order: order, cols: cols, rows: p.rows}, nil
}
