package sdata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadCSVTable(t *testing.T) {
	in := strings.Join([]string{
		"Id,CurrentUrlSlug,DisplayName",
		"1,alice,Alice",
		"2,bob,",
		"3,carol,Carol",
	}, "\n")
	table, err := ReadCSVTable(strings.NewReader(in), "Users")
	require.NoError(t, err)
	require.Equal(t, "Users", table.Name)
	require.Equal(t, []string{"Id", "CurrentUrlSlug", "DisplayName"}, table.Columns)
	require.Equal(t, 3, table.NumRows())
	require.Equal(t, "bob", table.Rows[1][1])
	require.Nil(t, table.Rows[1][2], "empty CSV field should load as NULL")
}

func TestReadCSVTableEmpty(t *testing.T) {
	_, err := ReadCSVTable(strings.NewReader(""), "Empty")
	require.Error(t, err)
}

func TestReadCSVTableRagged(t *testing.T) {
	in := "a,b\n1,2\n3\n"
	_, err := ReadCSVTable(strings.NewReader(in), "Ragged")
	require.Error(t, err)
}

func TestColumnIndex(t *testing.T) {
	table := &Table{Columns: []string{"a", "b"}}
	require.Equal(t, 1, table.ColumnIndex("b"))
	require.Equal(t, -1, table.ColumnIndex("z"))
}
