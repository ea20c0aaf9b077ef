package dbutil

import (
	"testing"

	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/errors"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/stretchr/testify/require"
)

func TestIsDuplicateDatabase(t *testing.T) {
	require.True(t, IsDuplicateDatabase(&pgconn.PgError{Code: pgerrcode.DuplicateDatabase}))
	require.True(t, IsDuplicateDatabase(&mysql.MySQLError{Number: mysqlErrDBCreateExists}))
	require.True(t, IsDuplicateDatabase(errors.Wrap(&pgconn.PgError{Code: pgerrcode.DuplicateDatabase}, "create")))
	require.False(t, IsDuplicateDatabase(errors.New("unrelated")))
	require.False(t, IsDuplicateDatabase(&pgconn.PgError{Code: pgerrcode.UniqueViolation}))
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, IsUniqueViolation(&pgconn.PgError{Code: pgerrcode.UniqueViolation}))
	require.True(t, IsUniqueViolation(&mysql.MySQLError{Number: mysqlErrDupEntry}))
	require.False(t, IsUniqueViolation(errors.New("unrelated")))
}
