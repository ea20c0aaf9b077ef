package sdata

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func TestSQLTupleWriter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	sdb := sqlx.NewDb(db, "mysql")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `users` \\(`id`, `name`\\) VALUES \\(\\?, \\?\\), \\(\\?, \\?\\)").
		WithArgs("1", "alice", "2", "bob").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	tx, err := sdb.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	w := NewSQLTupleWriter(tx, "users", []string{"id", "name"})
	require.NoError(t, w.WriteTuple(Tuple{"1", "alice"}))
	require.NoError(t, w.WriteTuple(Tuple{"2", "bob"}))
	require.NoError(t, w.Flush())
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTupleWriterEmptyFlush(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	sdb := sqlx.NewDb(db, "mysql")

	mock.ExpectBegin()
	mock.ExpectCommit()

	tx, err := sdb.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	w := NewSQLTupleWriter(tx, "users", []string{"id"})
	require.NoError(t, w.Flush())
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}
