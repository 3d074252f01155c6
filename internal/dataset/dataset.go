// Package dataset loads categorical tables for model learning and evaluation.
//
// A Dataset is a list of named string columns. Continuous source columns are
// discretized before they get here (see german.go); the core never sees raw
// numbers other than as labels.
package dataset

import (
	"errors"
	"fmt"

	"github.com/moolen/riskgraph/internal/bayes"
)

var (
	ErrUnknownColumn = errors.New("unknown column")
	ErrRowWidth      = errors.New("row width does not match header")
)

// Dataset is an in-memory categorical table.
type Dataset struct {
	columns []string
	index   map[string]int
	rows    [][]string
	// levels holds declared label orders, e.g. for binned columns.
	levels map[string][]string
}

// New creates an empty dataset with the given header.
func New(columns ...string) (*Dataset, error) {
	d := &Dataset{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
		levels:  make(map[string][]string),
	}
	for i, c := range columns {
		if _, dup := d.index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		d.index[c] = i
	}
	return d, nil
}

// Append adds a row. The slice is copied.
func (d *Dataset) Append(row ...string) error {
	if len(row) != len(d.columns) {
		return fmt.Errorf("%w: got %d values, want %d", ErrRowWidth, len(row), len(d.columns))
	}
	d.rows = append(d.rows, append([]string(nil), row...))
	return nil
}

// SetLevels declares the ordered labels of a column.
func (d *Dataset) SetLevels(column string, levels []string) error {
	if _, ok := d.index[column]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	d.levels[column] = append([]string(nil), levels...)
	return nil
}

func (d *Dataset) Columns() []string { return append([]string(nil), d.columns...) }
func (d *Dataset) Len() int          { return len(d.rows) }

// ColumnIndex returns the position of a column.
func (d *Dataset) ColumnIndex(name string) (int, bool) {
	i, ok := d.index[name]
	return i, ok
}

// Value returns the cell at row i, column name.
func (d *Dataset) Value(i int, column string) (string, bool) {
	c, ok := d.index[column]
	if !ok || i < 0 || i >= len(d.rows) {
		return "", false
	}
	return d.rows[i][c], true
}

// Row returns row i. The slice is shared and must not be modified.
func (d *Dataset) Row(i int) []string { return d.rows[i] }

// Column returns a copy of all values in a column.
func (d *Dataset) Column(name string) ([]string, error) {
	c, ok := d.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	out := make([]string, len(d.rows))
	for i, r := range d.rows {
		out[i] = r[c]
	}
	return out, nil
}

// Domain returns the declared levels of a column, or the labels inferred from
// its values when none were declared.
func (d *Dataset) Domain(name string) ([]string, error) {
	if levels, ok := d.levels[name]; ok {
		return append([]string(nil), levels...), nil
	}
	values, err := d.Column(name)
	if err != nil {
		return nil, err
	}
	labels, err := bayes.InferDomain(values)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", name, err)
	}
	return labels, nil
}
