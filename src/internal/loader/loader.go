// Package loader reads the Meta Kaggle CSV dump and its foreign-key
// description into memory.
package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/errors"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/log"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/sdata"
	"go.uber.org/zap"
)

// requiredTables are the Meta Kaggle tables KGTorrent cannot work without;
// the identifier query joins across all of them.
var requiredTables = []string{"Users", "Kernels", "KernelVersions", "KernelLanguages"}

// Load reads every CSV file in metaKagglePath as a table (named after the
// file) and the constraints file at constraintsPath.  It fails if any of the
// required tables is missing.
func Load(ctx context.Context, metaKagglePath, constraintsPath string) (_ map[string]*sdata.Table, _ []sdata.Constraint, retErr error) {
	defer log.Span(ctx, "loader.Load", zap.String("path", metaKagglePath))(log.Errorp(&retErr))

	entries, err := os.ReadDir(metaKagglePath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read meta kaggle directory")
	}
	tables := make(map[string]*sdata.Table)
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		table, err := loadTable(filepath.Join(metaKagglePath, entry.Name()), name)
		if err != nil {
			return nil, nil, err
		}
		tables[name] = table
		log.Info(ctx, "table loaded", zap.String("table", name), zap.Int("rows", table.NumRows()))
	}
	for _, name := range requiredTables {
		if _, ok := tables[name]; !ok {
			return nil, nil, errors.Errorf("required table %s not found in %s", name, metaKagglePath)
		}
	}
	constraints, err := loadConstraints(constraintsPath)
	if err != nil {
		return nil, nil, err
	}
	return tables, constraints, nil
}

func loadTable(path, name string) (_ *sdata.Table, retErr error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer errors.Close(&retErr, f, "close %s", path)
	return sdata.ReadCSVTable(f, name)
}

// loadConstraints reads the foreign-key CSV.  The file has a header and four
// columns: table, foreign key column, referenced table, referenced column.
func loadConstraints(path string) (_ []sdata.Constraint, retErr error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open constraints file %s", path)
	}
	defer errors.Close(&retErr, f, "close %s", path)

	table, err := sdata.ReadCSVTable(f, "constraints")
	if err != nil {
		return nil, err
	}
	if len(table.Columns) != 4 {
		return nil, errors.Errorf("constraints file %s has %d columns, want 4", path, len(table.Columns))
	}
	var constraints []sdata.Constraint
	for i, row := range table.Rows {
		c := sdata.Constraint{}
		fields := []*string{&c.Table, &c.ForeignKey, &c.ReferencedTable, &c.ReferencedColumn}
		for j, dst := range fields {
			s, ok := row[j].(string)
			if !ok || s == "" {
				return nil, errors.Errorf("constraints file %s: row %d: empty %s", path, i+2, table.Columns[j])
			}
			*dst = s
		}
		constraints = append(constraints, c)
	}
	return constraints, nil
}
