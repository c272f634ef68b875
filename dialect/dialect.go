// Package dialect defines dialect name constants and a narrow Driver/Tx
// abstraction. The storage adapter reports its dialect with these constants;
// it runs statements through database/sql directly and does not implement
// Driver or Tx.
//
// Only SQLite is wired to a concrete driver in this module; the dialect
// constants for Postgres and MySQL are kept because the Driver/Tx
// abstraction itself is dialect-agnostic by design, supporting several
// engines behind one interface.
package dialect

import "context"

// Dialect name constants.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
	MySQL    = "mysql"
)

// ExecQuerier is implemented by both Driver and Tx.
type ExecQuerier interface {
	// Exec executes a statement with no expected rows. v, if non-nil,
	// must be a *sql.Result the caller wants populated.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a statement expected to return rows. v must be a
	// *Rows the caller wants populated.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is a dialect-aware connection to a relational engine.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a transaction.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect reports the dialect name, e.g. SQLite.
	Dialect() string
}

// Tx extends Driver with transaction completion.
type Tx interface {
	Driver
	Commit() error
	Rollback() error
}
