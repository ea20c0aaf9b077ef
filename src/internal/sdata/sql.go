package sdata

import (
	"fmt"
	"strings"

	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/errors"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/kgtsql"
)

// rowLimit limits the number of rows per batch in an INSERT statement.
const rowLimit = 1000

// SQLTupleWriter writes tuples to a SQL database in batched INSERTs.
type SQLTupleWriter struct {
	tx              *kgtsql.Tx
	driver          string
	insertStatement string
	buf             []Tuple
}

// NewSQLTupleWriter returns a writer inserting into tableName via tx.
func NewSQLTupleWriter(tx *kgtsql.Tx, tableName string, columns []string) *SQLTupleWriter {
	driver := tx.DriverName()
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = kgtsql.QuoteIdentifier(driver, c)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES ",
		kgtsql.QuoteIdentifier(driver, tableName),
		strings.Join(quoted, ", "))
	return &SQLTupleWriter{tx: tx, driver: driver, insertStatement: stmt}
}

// WriteTuple buffers t, flushing the batch when it is full.
func (m *SQLTupleWriter) WriteTuple(t Tuple) error {
	if len(m.buf) >= rowLimit {
		if err := m.Flush(); err != nil {
			return err
		}
	}
	m.buf = append(m.buf, t)
	return nil
}

// Flush writes any buffered tuples as a single multi-row INSERT.
func (m *SQLTupleWriter) Flush() error {
	if len(m.buf) == 0 {
		return nil
	}
	var placeholders []string // a list of (?, ?, ...)
	var values Tuple
	for _, row := range m.buf {
		placeholderRow := make([]string, len(row))
		for c := range row {
			placeholderRow[c] = kgtsql.Placeholder(m.driver, len(values))
			values = append(values, row[c])
		}
		placeholders = append(placeholders, "("+strings.Join(placeholderRow, ", ")+")")
	}
	sqlStr := m.insertStatement + strings.Join(placeholders, ", ")
	if _, err := m.tx.Exec(sqlStr, values...); err != nil {
		return errors.EnsureStack(err)
	}
	m.buf = m.buf[:0]
	return nil
}
