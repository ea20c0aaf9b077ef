// Package preprocess turns the raw Meta Kaggle tables into a store-ready
// form: snake_case naming, and referential integrity restored by dropping
// rows whose foreign keys point at missing parents.  The original dump is
// not internally consistent; without the cleanup pass, foreign-key
// application would fail.
package preprocess

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/errors"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/log"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/sdata"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// TableStat records the row counts of one table before and after cleanup.
type TableStat struct {
	Table   string
	Before  int
	After   int
	Dropped int
}

// Stats summarizes the preprocessing pass, for the operator's eyes.
type Stats struct {
	Tables []TableStat
	Passes int
}

func (s *Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-28s %12s %12s %12s\n", "TABLE", "ROWS IN", "ROWS OUT", "DROPPED")
	for _, t := range s.Tables {
		fmt.Fprintf(&b, "%-28s %12s %12s %12s\n", t.Table,
			humanize.Comma(int64(t.Before)),
			humanize.Comma(int64(t.After)),
			humanize.Comma(int64(t.Dropped)))
	}
	fmt.Fprintf(&b, "(referential cleanup converged after %d pass(es))\n", s.Passes)
	return b.String()
}

// Process returns store-ready copies of the raw tables along with the
// constraints renamed to match, and summary statistics.  The inputs are not
// modified.
func Process(ctx context.Context, raw map[string]*sdata.Table, constraints []sdata.Constraint) (_ map[string]*sdata.Table, _ []sdata.Constraint, _ *Stats, retErr error) {
	defer log.Span(ctx, "preprocess.Process")(log.Errorp(&retErr))

	tables := make(map[string]*sdata.Table, len(raw))
	before := make(map[string]int, len(raw))
	for _, t := range raw {
		renamed := rename(t)
		tables[renamed.Name] = renamed
		before[renamed.Name] = renamed.NumRows()
	}
	renamedConstraints := make([]sdata.Constraint, len(constraints))
	for i, c := range constraints {
		renamedConstraints[i] = sdata.Constraint{
			Table:            ToSnake(c.Table),
			ForeignKey:       ToSnake(c.ForeignKey),
			ReferencedTable:  ToSnake(c.ReferencedTable),
			ReferencedColumn: ToSnake(c.ReferencedColumn),
		}
	}
	for _, c := range renamedConstraints {
		if _, ok := tables[c.Table]; !ok {
			return nil, nil, nil, errors.Errorf("constraint references unknown table %s", c.Table)
		}
		if _, ok := tables[c.ReferencedTable]; !ok {
			return nil, nil, nil, errors.Errorf("constraint references unknown table %s", c.ReferencedTable)
		}
	}

	passes, err := enforceConstraints(ctx, tables, renamedConstraints)
	if err != nil {
		return nil, nil, nil, err
	}

	stats := &Stats{Passes: passes}
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		after := tables[name].NumRows()
		stats.Tables = append(stats.Tables, TableStat{
			Table:   name,
			Before:  before[name],
			After:   after,
			Dropped: before[name] - after,
		})
	}
	return tables, renamedConstraints, stats, nil
}

// rename returns a copy of t with the table and column names converted to
// snake_case.  Row tuples are shared with the input; they are never mutated.
func rename(t *sdata.Table) *sdata.Table {
	columns := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		columns[i] = ToSnake(c)
	}
	rows := make([]sdata.Tuple, len(t.Rows))
	copy(rows, t.Rows)
	return &sdata.Table{Name: ToSnake(t.Name), Columns: columns, Rows: rows}
}

// enforceConstraints drops child rows whose foreign key references a missing
// parent, repeating until no pass drops anything.  Dropping a row can orphan
// rows in another table, hence the fixed point.
func enforceConstraints(ctx context.Context, tables map[string]*sdata.Table, constraints []sdata.Constraint) (int, error) {
	passes := 0
	for {
		passes++
		dropped := 0
		for _, c := range constraints {
			n, err := dropOrphans(tables, c)
			if err != nil {
				return passes, err
			}
			if n > 0 {
				log.Debug(ctx, "dropped orphaned rows",
					zap.String("table", c.Table),
					zap.String("foreignKey", c.ForeignKey),
					zap.Int("rows", n))
			}
			dropped += n
		}
		if dropped == 0 {
			return passes, nil
		}
	}
}

func dropOrphans(tables map[string]*sdata.Table, c sdata.Constraint) (int, error) {
	child := tables[c.Table]
	parent := tables[c.ReferencedTable]
	fkIdx := child.ColumnIndex(c.ForeignKey)
	if fkIdx < 0 {
		return 0, errors.Errorf("table %s has no column %s", c.Table, c.ForeignKey)
	}
	refIdx := parent.ColumnIndex(c.ReferencedColumn)
	if refIdx < 0 {
		return 0, errors.Errorf("table %s has no column %s", c.ReferencedTable, c.ReferencedColumn)
	}
	known := make(map[interface{}]struct{}, parent.NumRows())
	for _, row := range parent.Rows {
		if v := row[refIdx]; v != nil {
			known[v] = struct{}{}
		}
	}
	kept := child.Rows[:0]
	dropped := 0
	for _, row := range child.Rows {
		v := row[fkIdx]
		if v == nil {
			// A NULL foreign key is not a violation.
			kept = append(kept, row)
			continue
		}
		if _, ok := known[v]; ok {
			kept = append(kept, row)
		} else {
			dropped++
		}
	}
	child.Rows = kept
	return dropped, nil
}

// ToSnake converts a Meta Kaggle name (CamelCase, e.g. AuthorUserId) to
// snake_case (author_user_id).
func ToSnake(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			prevLower := i > 0 && isLowerOrDigit(runes[i-1])
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || (i > 0 && nextLower) {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isLowerOrDigit(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
