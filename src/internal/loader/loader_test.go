package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/log"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/sdata"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeMetaKaggle(t *testing.T, dir string) {
	writeFile(t, filepath.Join(dir, "Users.csv"), "Id,UserName\n1,alice\n")
	writeFile(t, filepath.Join(dir, "Kernels.csv"), "Id,AuthorUserId,CurrentKernelVersionId,CurrentUrlSlug\n10,1,100,titanic\n")
	writeFile(t, filepath.Join(dir, "KernelVersions.csv"), "Id,ScriptLanguageId\n100,2\n")
	writeFile(t, filepath.Join(dir, "KernelLanguages.csv"), "Id,DisplayName\n2,IPython Notebook HTML\n")
}

const constraintsCSV = "Table,Foreign Key,Referenced Table,Referenced Column\n" +
	"Kernels,AuthorUserId,Users,Id\n" +
	"KernelVersions,ScriptLanguageId,KernelLanguages,Id\n"

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeMetaKaggle(t, dir)
	constraintsPath := filepath.Join(dir, "constraints.csv")
	writeFile(t, constraintsPath, constraintsCSV)
	// The constraints file sits in the same directory here; it must also be
	// picked up as a table, which is harmless.
	tables, constraints, err := Load(log.Test(t), dir, constraintsPath)
	require.NoError(t, err)

	require.Contains(t, tables, "Users")
	require.Contains(t, tables, "Kernels")
	require.Equal(t, 1, tables["Users"].NumRows())
	require.Equal(t, []sdata.Constraint{
		{Table: "Kernels", ForeignKey: "AuthorUserId", ReferencedTable: "Users", ReferencedColumn: "Id"},
		{Table: "KernelVersions", ForeignKey: "ScriptLanguageId", ReferencedTable: "KernelLanguages", ReferencedColumn: "Id"},
	}, constraints)
}

func TestLoadMissingRequiredTable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Users.csv"), "Id,UserName\n1,alice\n")
	constraintsPath := filepath.Join(dir, "constraints.csv")
	writeFile(t, constraintsPath, constraintsCSV)

	_, _, err := Load(log.Test(t), dir, constraintsPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Kernels")
}

func TestLoadMissingDirectory(t *testing.T) {
	_, _, err := Load(log.Test(t), "/does/not/exist", "/does/not/exist.csv")
	require.Error(t, err)
}

func TestLoadBadConstraints(t *testing.T) {
	dir := t.TempDir()
	writeMetaKaggle(t, dir)
	constraintsPath := filepath.Join(dir, "constraints.csv")
	writeFile(t, constraintsPath, "Table,Foreign Key\nKernels,AuthorUserId\n")

	_, _, err := Load(log.Test(t), dir, constraintsPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "4")
}

func TestLoadConstraintsEmptyField(t *testing.T) {
	dir := t.TempDir()
	writeMetaKaggle(t, dir)
	constraintsPath := filepath.Join(dir, "constraints.csv")
	writeFile(t, constraintsPath, "Table,Foreign Key,Referenced Table,Referenced Column\nKernels,,Users,Id\n")

	_, _, err := Load(log.Test(t), dir, constraintsPath)
	require.Error(t, err)
}
