// Package storage implements the Storage Adapter: a thin, synchronous
// interface to a row-returning SQL engine. It is the only place SQL text
// is executed (the engines build the statements they pass in); it carries
// no schema knowledge of its own.
// Grounded on a dialect/sql driver wrapper (Conn/Driver/Tx over
// database/sql) and on the original's single sqlite3.Connection/Cursor
// pair in interface.py, reproduced here as a single *sql.DB restricted to
// one open connection plus a lazily-opened transaction that `Commit`
// flushes — the same "writes are pending until commit" semantics the
// original gets for free from Python's legacy sqlite3 isolation model.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pepegiallo/sqlite-odai/dialect"
)

// Row is a single result row keyed by column name, mirroring the
// dict-shaped rows the original's sqlite3.Row factory returns.
type Row map[string]any

// SlowQueryThreshold above which a query is logged at Warn level.
var SlowQueryThreshold = 200 * time.Millisecond

// Adapter is the Storage Adapter: execute/fetch operations against the
// embedded engine, plus the commit/close housekeeping the root facade
// exposes.
type Adapter struct {
	db      *sql.DB
	dialect string
	tx      *sql.Tx // lazily opened by the first mutating statement; nil once committed
	logger  *slog.Logger
	stats   Stats
}

// Stats holds running counters for executed statements.
type Stats struct {
	Queries     int64
	Execs       int64
	SlowQueries int64
	Errors      int64
}

// Open opens a SQLite database file (or ":memory:") and returns an Adapter.
// The pool is restricted to a single connection: the core assumes serial
// execution over one logical connection.
func Open(path string, logger *slog.Logger) (*Adapter, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	return OpenDB(db, logger), nil
}

// OpenDB wraps an already-opened *sql.DB, e.g. one backed by sqlmock in
// tests. The pool is pinned to a single connection either way.
func OpenDB(db *sql.DB, logger *slog.Logger) *Adapter {
	db.SetMaxOpenConns(1)
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{db: db, dialect: dialect.SQLite, logger: logger}
}

// Dialect reports the dialect name.
func (a *Adapter) Dialect() string { return a.dialect }

// querier is whichever of *sql.DB or *sql.Tx statements currently run
// against: a *sql.Tx once a write has opened one, else the pooled *sql.DB.
func (a *Adapter) querier() interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
} {
	if a.tx != nil {
		return a.tx
	}
	return a.db
}

// ensureTx lazily begins a transaction for the next write, matching the
// original's implicit-transaction-on-write sqlite3 behavior.
func (a *Adapter) ensureTx(ctx context.Context) error {
	if a.tx != nil {
		return nil
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	a.tx = tx
	return nil
}

func (a *Adapter) observe(op, query string, start time.Time, err error) {
	d := time.Since(start)
	if err != nil {
		a.stats.Errors++
		return
	}
	if d > SlowQueryThreshold {
		a.stats.SlowQueries++
		a.logger.Warn("slow query detected", "op", op, "duration", d, "query", query)
	}
}

// Execute runs a single statement expected to mutate state and returns the
// driver result (for LastInsertID).
func (a *Adapter) Execute(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := a.ensureTx(ctx); err != nil {
		return nil, newStorageErr("execute", query, err)
	}
	start := time.Now()
	res, err := a.querier().ExecContext(ctx, query, args...)
	a.stats.Execs++
	a.observe("execute", query, start, err)
	if err != nil {
		return nil, newStorageErr("execute", query, err)
	}
	return res, nil
}

// ExecuteMany runs the same statement once per element of argsList
// (execute_many(sql, iter)).
func (a *Adapter) ExecuteMany(ctx context.Context, query string, argsList [][]any) error {
	if len(argsList) == 0 {
		return nil
	}
	if err := a.ensureTx(ctx); err != nil {
		return newStorageErr("execute_many", query, err)
	}
	stmt, err := a.querier().(interface {
		PrepareContext(context.Context, string) (*sql.Stmt, error)
	}).PrepareContext(ctx, query)
	if err != nil {
		return newStorageErr("execute_many", query, err)
	}
	defer stmt.Close()
	for _, args := range argsList {
		start := time.Now()
		_, err := stmt.ExecContext(ctx, args...)
		a.stats.Execs++
		a.observe("execute_many", query, start, err)
		if err != nil {
			return newStorageErr("execute_many", query, err)
		}
	}
	return nil
}

// ExecuteScript runs a semicolon-separated batch of DDL statements, such as
// the bootstrap init.sql (execute_script(sql)). Statements are split on
// unquoted semicolons; the bootstrap script never embeds a semicolon
// inside a string literal.
func (a *Adapter) ExecuteScript(ctx context.Context, script string) error {
	for _, stmt := range splitStatements(script) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := a.Execute(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func splitStatements(script string) []string {
	var stmts []string
	var b strings.Builder
	inString := false
	for _, r := range script {
		b.WriteRune(r)
		switch r {
		case '\'':
			inString = !inString
		case ';':
			if !inString {
				stmts = append(stmts, b.String())
				b.Reset()
			}
		}
	}
	if rest := strings.TrimSpace(b.String()); rest != "" {
		stmts = append(stmts, rest)
	}
	return stmts
}

// FetchOne runs a query and returns its first row, or ok=false if empty.
func (a *Adapter) FetchOne(ctx context.Context, query string, args ...any) (Row, bool, error) {
	rows, err := a.query(ctx, query, args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()
	if len(rows.rows) == 0 {
		return nil, false, nil
	}
	return rows.rows[0], true, nil
}

// FetchAll runs a query and returns every row.
func (a *Adapter) FetchAll(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := a.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return rows.rows, nil
}

// materialisedRows lets FetchOne/FetchAll share the scan loop while still
// exposing a Close for symmetry with a row iterator.
type materialisedRows struct{ rows []Row }

func (m *materialisedRows) Close() error { return nil }

func (a *Adapter) query(ctx context.Context, query string, args ...any) (*materialisedRows, error) {
	start := time.Now()
	sqlRows, err := a.querier().QueryContext(ctx, query, args...)
	a.stats.Queries++
	a.observe("query", query, start, err)
	if err != nil {
		return nil, newStorageErr("query", query, err)
	}
	defer sqlRows.Close()

	cols, err := sqlRows.Columns()
	if err != nil {
		return nil, newStorageErr("query", query, err)
	}
	var out []Row
	for sqlRows.Next() {
		scanDest := make([]any, len(cols))
		scanPtrs := make([]any, len(cols))
		for i := range scanDest {
			scanPtrs[i] = &scanDest[i]
		}
		if err := sqlRows.Scan(scanPtrs...); err != nil {
			return nil, newStorageErr("query", query, err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = scanDest[i]
		}
		out = append(out, row)
	}
	if err := sqlRows.Err(); err != nil {
		return nil, newStorageErr("query", query, err)
	}
	return &materialisedRows{rows: out}, nil
}

// LastInsertID extracts the auto-increment id from an Execute result.
func (a *Adapter) LastInsertID(res sql.Result) (int64, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, newStorageErr("last_insert_id", "", err)
	}
	return id, nil
}

// Commit flushes the pending transaction, if any.
func (a *Adapter) Commit() error {
	if a.tx == nil {
		return nil
	}
	err := a.tx.Commit()
	a.tx = nil
	if err != nil {
		return newStorageErr("commit", "", err)
	}
	return nil
}

// Rollback discards the pending transaction, if any.
func (a *Adapter) Rollback() error {
	if a.tx == nil {
		return nil
	}
	err := a.tx.Rollback()
	a.tx = nil
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return newStorageErr("rollback", "", err)
	}
	return nil
}

// Close releases the connection.
func (a *Adapter) Close() error {
	_ = a.Rollback()
	return a.db.Close()
}

// Stats returns a snapshot of running counters.
func (a *Adapter) Stats() Stats { return a.stats }

func newStorageErr(op, sql string, err error) error {
	return &storageErrAdapter{op: op, sql: sql, err: err}
}

// storageErrAdapter carries the failing operation and statement without
// importing the root package's StorageError type; each engine's
// wrapStorageErr helper converts it to an odai.StorageError at the boundary
// it sits behind.
type storageErrAdapter struct {
	op  string
	sql string
	err error
}

func (e *storageErrAdapter) Error() string {
	if e.sql != "" {
		return fmt.Sprintf("storage: %s failed: %v (sql=%q)", e.op, e.err, e.sql)
	}
	return fmt.Sprintf("storage: %s failed: %v", e.op, e.err)
}

func (e *storageErrAdapter) Unwrap() error { return e.err }

// Op returns the operation name that failed.
func (e *storageErrAdapter) Op() string { return e.op }

// SQL returns the offending statement, if known.
func (e *storageErrAdapter) SQL() string { return e.sql }
