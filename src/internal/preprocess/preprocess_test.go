package preprocess

import (
	"testing"

	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/log"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/sdata"
	"github.com/stretchr/testify/require"
)

func TestToSnake(t *testing.T) {
	testData := []struct{ in, want string }{
		{"Id", "id"},
		{"UserName", "user_name"},
		{"AuthorUserId", "author_user_id"},
		{"KernelVersions", "kernel_versions"},
		{"CurrentUrlSlug", "current_url_slug"},
		{"already_snake", "already_snake"},
		{"HTMLBody", "html_body"},
	}
	for _, test := range testData {
		require.Equal(t, test.want, ToSnake(test.in), "ToSnake(%q)", test.in)
	}
}

func testTables() map[string]*sdata.Table {
	return map[string]*sdata.Table{
		"Users": {
			Name:    "Users",
			Columns: []string{"Id", "UserName"},
			Rows:    []sdata.Tuple{{"1", "alice"}},
		},
		"Kernels": {
			Name:    "Kernels",
			Columns: []string{"Id", "AuthorUserId", "CurrentKernelVersionId"},
			Rows: []sdata.Tuple{
				{"10", "1", "100"},  // fine
				{"11", "99", "101"}, // author 99 does not exist
				{"12", nil, "102"},  // NULL author is allowed
			},
		},
		"KernelVersions": {
			Name:    "KernelVersions",
			Columns: []string{"Id", "ScriptKernelId"},
			Rows: []sdata.Tuple{
				{"100", "10"},
				{"101", "11"}, // orphaned once kernel 11 is dropped
				{"102", "12"},
			},
		},
	}
}

func testConstraints() []sdata.Constraint {
	return []sdata.Constraint{
		{Table: "Kernels", ForeignKey: "AuthorUserId", ReferencedTable: "Users", ReferencedColumn: "Id"},
		{Table: "KernelVersions", ForeignKey: "ScriptKernelId", ReferencedTable: "Kernels", ReferencedColumn: "Id"},
	}
}

func TestProcessRenames(t *testing.T) {
	tables, constraints, _, err := Process(log.Test(t), testTables(), testConstraints())
	require.NoError(t, err)

	require.Contains(t, tables, "users")
	require.Contains(t, tables, "kernel_versions")
	require.Equal(t, []string{"id", "author_user_id", "current_kernel_version_id"}, tables["kernels"].Columns)
	require.Equal(t, "author_user_id", constraints[0].ForeignKey)
}

func TestProcessDropsOrphansToFixedPoint(t *testing.T) {
	tables, _, stats, err := Process(log.Test(t), testTables(), testConstraints())
	require.NoError(t, err)

	// Kernel 11 loses its author; version 101 then loses its kernel.
	require.Equal(t, 2, tables["kernels"].NumRows())
	require.Equal(t, 2, tables["kernel_versions"].NumRows())
	for _, row := range tables["kernels"].Rows {
		require.NotEqual(t, "11", row[0])
	}
	require.GreaterOrEqual(t, stats.Passes, 2)
}

func TestProcessKeepsNullForeignKeys(t *testing.T) {
	tables, _, _, err := Process(log.Test(t), testTables(), testConstraints())
	require.NoError(t, err)

	var found bool
	for _, row := range tables["kernels"].Rows {
		if row[0] == "12" {
			found = true
		}
	}
	require.True(t, found, "row with NULL foreign key must survive")
}

func TestProcessDoesNotMutateInput(t *testing.T) {
	raw := testTables()
	_, _, _, err := Process(log.Test(t), raw, testConstraints())
	require.NoError(t, err)
	require.Equal(t, 3, raw["Kernels"].NumRows())
	require.Equal(t, "Kernels", raw["Kernels"].Name)
}

func TestProcessUnknownConstraintTable(t *testing.T) {
	_, _, _, err := Process(log.Test(t), testTables(), []sdata.Constraint{
		{Table: "Nope", ForeignKey: "Id", ReferencedTable: "Users", ReferencedColumn: "Id"},
	})
	require.Error(t, err)
}

func TestProcessUnknownConstraintColumn(t *testing.T) {
	_, _, _, err := Process(log.Test(t), testTables(), []sdata.Constraint{
		{Table: "Kernels", ForeignKey: "Missing", ReferencedTable: "Users", ReferencedColumn: "Id"},
	})
	require.Error(t, err)
}

func TestStatsString(t *testing.T) {
	_, _, stats, err := Process(log.Test(t), testTables(), testConstraints())
	require.NoError(t, err)
	out := stats.String()
	require.Contains(t, out, "kernels")
	require.Contains(t, out, "TABLE")
}
