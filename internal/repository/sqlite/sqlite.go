// Package sqlite implements the repository interfaces on top of SQLite.
//
// The pure-Go modernc.org/sqlite driver keeps the binary free of CGo. Schema
// changes live in migrations/*.sql, embedded into the binary and applied by
// goose on every start; goose records applied versions in its own table so
// re-running is a no-op.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"strings"

	"github.com/pressly/goose/v3"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB wraps a sql.DB connection pool and implements every repository
// interface in internal/repository.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and brings the schema up to date.
//
// dbPath is a file path ("data/finance.db") or ":memory:" for tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// IN-MEMORY DATABASES:
	// every connection to ":memory:" gets its own empty database, so the pool
	// must be pinned to a single connection or migrations and queries would
	// land in different databases.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// connPragmas run on every new connection in the pool.
//
// PER-CONNECTION SETTINGS:
// foreign_keys and busy_timeout belong to a connection, not to the database
// file. A PRAGMA executed through *sql.DB reaches whichever pooled connection
// happens to run it, and connections opened later start without it. The
// driver's _pragma DSN parameters are applied each time it opens a
// connection, so every request sees FK enforcement and waits on locks.
// journal_mode=WAL is stored in the file; repeating it is harmless.
var connPragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"journal_mode(WAL)",
}

// dsn appends connPragmas to dbPath as _pragma query parameters.
func dsn(dbPath string) string {
	q := make(url.Values)
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	return dbPath + "?" + q.Encode()
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) migrate() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db.conn, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// inClause returns "?, ?, ?" for n placeholders together with args converted
// for ExecContext/QueryContext. The placeholders carry the values, never the
// SQL text, so ids cannot inject anything.
func inClause(values []string) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", "), args
}

// isUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY
// constraint. The driver only exposes the message, so this matches on text.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}
