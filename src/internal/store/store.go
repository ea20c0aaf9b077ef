// Package store is the relational persistence layer for KGTorrent.  It owns
// the lifecycle of the KGTorrent database: existence checks, destructive
// re-creation, bulk table loads, foreign-key application, and the kernel
// identifier query that drives notebook downloads.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/dbutil"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/errors"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/kgtsql"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/log"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/sdata"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ErrClosed is returned by any operation on a closed Store.
var ErrClosed = errors.New("store is closed")

// Store is a handle on the KGTorrent database.  It is not safe for
// concurrent use; the pipeline is strictly sequential.
type Store struct {
	url      kgtsql.URL
	password string

	server *kgtsql.DB // server-level connection, no database selected
	db     *kgtsql.DB // connection to the KGTorrent database, opened lazily
	closed bool
}

// New returns a Store for the database named by urlStr.  The server must be
// reachable; the database itself need not exist yet.
func New(ctx context.Context, urlStr, password string) (*Store, error) {
	u, err := kgtsql.ParseURL(urlStr)
	if err != nil {
		return nil, errors.Wrapf(err, "parse store url %q", urlStr)
	}
	if u.Database == "" {
		return nil, errors.Errorf("store url %q names no database", urlStr)
	}
	server, err := kgtsql.OpenServerURL(*u, password)
	if err != nil {
		return nil, errors.Wrap(err, "open server connection")
	}
	if err := dbutil.WaitUntilReady(ctx, server); err != nil {
		return nil, errors.Wrap(err, "wait for database server")
	}
	log.Info(ctx, "connected to database server", zap.String("url", u.String()))
	return &Store{url: *u, password: password, server: server}, nil
}

// Exists reports whether the KGTorrent database exists on the server.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	var q string
	switch s.server.DriverName() {
	case "mysql":
		q = "SELECT COUNT(*) FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?"
	case "pgx":
		q = "SELECT COUNT(*) FROM pg_database WHERE datname = $1"
	default:
		return false, errors.Errorf("driver %q not supported", s.server.DriverName())
	}
	var n int
	if err := s.server.GetContext(ctx, &n, q, s.url.Database); err != nil {
		return false, errors.Wrap(err, "query database existence")
	}
	return n > 0, nil
}

// Recreate creates the KGTorrent database, dropping it first if dropIfExists
// is set.  This is the only destructive operation in the store; the pipeline
// guard stage confirms operator intent before it is reached.
func (s *Store) Recreate(ctx context.Context, dropIfExists bool) error {
	if s.closed {
		return ErrClosed
	}
	if s.db != nil {
		// The handle points at a database about to be dropped.
		if err := s.db.Close(); err != nil {
			return errors.Wrap(err, "close stale database handle")
		}
		s.db = nil
	}
	name := kgtsql.QuoteIdentifier(s.server.DriverName(), s.url.Database)
	if dropIfExists {
		if _, err := s.server.ExecContext(ctx, "DROP DATABASE IF EXISTS "+name); err != nil {
			return errors.Wrap(err, "drop database")
		}
	}
	if _, err := s.server.ExecContext(ctx, "CREATE DATABASE "+name); err != nil {
		if dbutil.IsDuplicateDatabase(err) {
			return errors.Wrapf(err, "database %s was created by someone else in the meantime", s.url.Database)
		}
		return errors.Wrap(err, "create database")
	}
	log.Info(ctx, "database created", zap.String("database", s.url.Database))
	return nil
}

// database returns the connection to the KGTorrent database, opening it on
// first use.
func (s *Store) database(ctx context.Context) (*kgtsql.DB, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.db == nil {
		db, err := kgtsql.OpenURL(s.url, s.password)
		if err != nil {
			return nil, errors.Wrap(err, "open database connection")
		}
		if err := db.PingContext(ctx); err != nil {
			closeErr := db.Close()
			return nil, errors.Join(errors.Wrapf(err, "ping database %s", s.url.Database), closeErr)
		}
		s.db = db
	}
	return s.db, nil
}

// WriteTables creates one SQL table per in-memory table and bulk-loads its
// rows, one transaction per table.  Tables are written in name order so runs
// are reproducible.
func (s *Store) WriteTables(ctx context.Context, tables map[string]*sdata.Table) error {
	db, err := s.database(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		table := tables[name]
		if err := s.writeTable(ctx, db, table); err != nil {
			return errors.Wrapf(err, "write table %s", name)
		}
		log.Info(ctx, "table written", zap.String("table", name), zap.Int("rows", table.NumRows()))
	}
	return nil
}

func (s *Store) writeTable(ctx context.Context, db *kgtsql.DB, table *sdata.Table) error {
	if _, err := db.ExecContext(ctx, createTableStatement(db.DriverName(), table)); err != nil {
		return errors.Wrap(err, "create table")
	}
	err := dbutil.WithTx(ctx, db, func(tx *kgtsql.Tx) error {
		w := sdata.NewSQLTupleWriter(tx, table.Name, table.Columns)
		for _, row := range table.Rows {
			if err := w.WriteTuple(row); err != nil {
				return err
			}
		}
		return w.Flush()
	})
	if dbutil.IsUniqueViolation(err) {
		return errors.Wrap(err, "duplicate row in the Meta Kaggle dump")
	}
	return err
}

// createTableStatement derives a schema from the column names: identifier
// columns get an indexable type so foreign keys can be applied later,
// everything else is unbounded text.
func createTableStatement(driver string, table *sdata.Table) string {
	cols := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		quoted := kgtsql.QuoteIdentifier(driver, c)
		switch {
		case c == "id":
			cols[i] = quoted + " VARCHAR(128) NOT NULL PRIMARY KEY"
		case strings.HasSuffix(c, "_id"):
			cols[i] = quoted + " VARCHAR(128)"
		default:
			cols[i] = quoted + " TEXT"
		}
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)",
		kgtsql.QuoteIdentifier(driver, table.Name),
		strings.Join(cols, ", "))
}

// ApplyConstraints adds the foreign keys described by constraints.  It must
// run after WriteTables; most relational backends reject constraints whose
// data is not yet loaded.
func (s *Store) ApplyConstraints(ctx context.Context, constraints []sdata.Constraint) error {
	db, err := s.database(ctx)
	if err != nil {
		return err
	}
	driver := db.DriverName()
	for _, c := range constraints {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD FOREIGN KEY (%s) REFERENCES %s (%s)",
			kgtsql.QuoteIdentifier(driver, c.Table),
			kgtsql.QuoteIdentifier(driver, c.ForeignKey),
			kgtsql.QuoteIdentifier(driver, c.ReferencedTable),
			kgtsql.QuoteIdentifier(driver, c.ReferencedColumn))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "add foreign key %s.%s -> %s.%s",
				c.Table, c.ForeignKey, c.ReferencedTable, c.ReferencedColumn)
		}
	}
	log.Info(ctx, "foreign keys applied", zap.Int("count", len(constraints)))
	return nil
}

// identifierQuery joins kernels to their authors and current versions to
// produce the downloadable notebook identifiers (author/slug), restricted to
// the given kernel languages.
const identifierQuery = `
SELECT u.user_name, k.current_url_slug
FROM kernels k
JOIN users u ON k.author_user_id = u.id
JOIN kernel_versions kv ON k.current_kernel_version_id = kv.id
JOIN kernel_languages kl ON kv.script_language_id = kl.id
WHERE kl.display_name IN (?)`

// QueryIdentifiers returns the identifiers of every notebook in the store
// whose language is in languages.
func (s *Store) QueryIdentifiers(ctx context.Context, languages []string) ([]string, error) {
	db, err := s.database(ctx)
	if err != nil {
		return nil, err
	}
	if len(languages) == 0 {
		return nil, errors.New("no languages configured")
	}
	q, args, err := sqlx.In(identifierQuery, languages)
	if err != nil {
		return nil, errors.Wrap(err, "expand language filter")
	}
	rows, err := db.QueryxContext(ctx, db.Rebind(q), args...)
	if err != nil {
		return nil, errors.Wrap(err, "query identifiers")
	}
	defer rows.Close()
	var identifiers []string
	for rows.Next() {
		var user, slug string
		if err := rows.Scan(&user, &slug); err != nil {
			return nil, errors.EnsureStack(err)
		}
		identifiers = append(identifiers, user+"/"+slug)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.EnsureStack(err)
	}
	return identifiers, nil
}

// Close invalidates the store.  Any use after Close returns ErrClosed; the
// download stage must never touch the database.
func (s *Store) Close() (retErr error) {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		errors.JoinInto(&retErr, errors.Wrap(s.db.Close(), "close database connection"))
		s.db = nil
	}
	if s.server != nil {
		errors.JoinInto(&retErr, errors.Wrap(s.server.Close(), "close server connection"))
		s.server = nil
	}
	return
}
