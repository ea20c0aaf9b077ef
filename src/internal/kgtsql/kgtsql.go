// Package kgtsql is the SQL plumbing for KGTorrent.  It knows how to open
// connections to the supported database servers; higher-level schema and
// query logic lives in the store package.
package kgtsql

import (
	"net"
	"strconv"
	"strings"

	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/errors"
	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
)

const (
	ProtocolPostgres = "postgres"
	ProtocolMySQL    = "mysql"
)

// DB is an alias for sqlx.DB which is the standard database type used
// throughout the project.
type DB = sqlx.DB

// Tx is an alias for sqlx.Tx which is the standard transaction type used
// throughout the project.
type Tx = sqlx.Tx

// OpenURL returns a database connection pool to the database specified by u.
// If password != "" then it will be used for authentication.  This function
// does not confirm that the database is reachable; callers may be interested
// in DB.Ping().
func OpenURL(u URL, password string) (*DB, error) {
	return open(u, password, u.Database)
}

// OpenServerURL returns a connection pool to the database server named by u,
// without selecting u.Database.  This is the connection used for existence
// checks and for CREATE/DROP DATABASE, which cannot run against the database
// they target.
func OpenServerURL(u URL, password string) (*DB, error) {
	dbname := ""
	if u.Protocol == ProtocolPostgres || u.Protocol == "postgresql" {
		// Postgres requires some database to connect to.
		dbname = "postgres"
	}
	return open(u, password, dbname)
}

func open(u URL, password, dbname string) (*DB, error) {
	var driver string
	var dsn string
	switch u.Protocol {
	case ProtocolPostgres, "postgresql":
		driver = "pgx"
		dsn = postgresDSN(u, password, dbname)
	case ProtocolMySQL:
		driver = "mysql"
		dsn = mySQLDSN(u, password, dbname)
	default:
		return nil, errors.Errorf("database protocol %q not supported", u.Protocol)
	}
	res, err := sqlx.Open(driver, dsn)
	return res, errors.EnsureStack(err)
}

func postgresDSN(u URL, password, dbname string) string {
	fields := map[string]string{
		"user": u.User,
		"host": u.Host,
		"port": strconv.Itoa(int(u.Port)),
	}
	if dbname != "" {
		fields["dbname"] = dbname
	}
	if password != "" {
		fields["password"] = password
	}
	for k, v := range u.Params {
		fields[k] = v
	}
	var dsnParts []string
	for k, v := range fields {
		dsnParts = append(dsnParts, k+"="+v)
	}
	return strings.Join(dsnParts, " ")
}

func mySQLDSN(u URL, password, dbname string) string {
	params := make(map[string]string, len(u.Params)+1)
	for k, v := range u.Params {
		params[k] = v
	}
	params["parseTime"] = "true"
	config := mysql.Config{
		User:                 u.User,
		Passwd:               password,
		Net:                  "tcp",
		Addr:                 net.JoinHostPort(u.Host, strconv.Itoa(int(u.Port))),
		DBName:               dbname,
		Params:               params,
		AllowNativePasswords: true,
	}
	return config.FormatDSN()
}

// Placeholder returns a placeholder for the given driver assuming i
// placeholders have been provided before it.  It is 0 indexed in this way.
//
// This means that the first Postgres placeholder is `$1` when i = 0, which is
// ergonomic for constructing a list of arguments since i = len(args).
func Placeholder(driverName string, i int) string {
	switch driverName {
	case "pgx":
		return "$" + strconv.Itoa(i+1)
	case "mysql":
		return "?"
	default:
		panic(driverName)
	}
}

// QuoteIdentifier quotes a table or column name for the given driver.  Names
// come from our own schema definitions, not from user input; quoting guards
// against reserved words, not injection.
func QuoteIdentifier(driverName, name string) string {
	switch driverName {
	case "pgx":
		return `"` + name + `"`
	case "mysql":
		return "`" + name + "`"
	default:
		panic(driverName)
	}
}
