package dbutil

import (
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/errors"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
)

// MySQL server error codes; see
// https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	mysqlErrDBCreateExists = 1007
	mysqlErrDupEntry       = 1062
)

// IsDuplicateDatabase returns true if the error says that the database to be
// created already exists.
func IsDuplicateDatabase(err error) bool {
	pgErr := &pgconn.PgError{}
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.DuplicateDatabase
	}
	myErr := &mysql.MySQLError{}
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrDBCreateExists
	}
	return false
}

// IsUniqueViolation returns true if the error is a unique constraint
// violation.
func IsUniqueViolation(err error) bool {
	pgErr := &pgconn.PgError{}
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	myErr := &mysql.MySQLError{}
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrDupEntry
	}
	return false
}
