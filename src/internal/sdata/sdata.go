// Package sdata deals with structured data.
package sdata

import (
	"encoding/csv"
	"io"

	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/errors"
)

// Tuple is an alias for []interface{}.  It is used for passing around rows of
// data.
type Tuple = []interface{}

// Table is an in-memory table: a name, ordered column names, and rows.  Meta
// Kaggle values are carried as strings (or nil for an absent value); typing
// is left to the database schema.
type Table struct {
	Name    string
	Columns []string
	Rows    []Tuple
}

// NumRows returns the number of rows in t.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of column name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// TupleWriter is the type of Writers for structured data.
type TupleWriter interface {
	WriteTuple(row Tuple) error
	Flush() error
}

// Constraint describes one foreign key: Table.ForeignKey references
// ReferencedTable.ReferencedColumn.
type Constraint struct {
	Table            string
	ForeignKey       string
	ReferencedTable  string
	ReferencedColumn string
}

// ReadCSVTable reads an entire CSV stream into a Table.  The first record is
// the header.  Empty fields become nil so they load as SQL NULL.
func ReadCSVTable(r io.Reader, name string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrapf(err, "read header of %s", name)
	}
	table := &Table{Name: name, Columns: header}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, errors.Wrapf(err, "read row %d of %s", len(table.Rows)+2, name)
		}
		row := make(Tuple, len(record))
		for i, v := range record {
			if v == "" {
				row[i] = nil
			} else {
				row[i] = v
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
