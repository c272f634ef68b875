package store

import (
	"context"
	_ "embed"

	"github.com/pepegiallo/sqlite-odai/storage"
)

// bootstrapSQL is the schema-creation script applied to a freshly opened
// database before the Schema/Object/Reference engines touch it. Bundled
// with go:embed rather than read from disk so a Store.Open caller never
// has to ship init.sql alongside the binary.
//
//go:embed init.sql
var bootstrapSQL string

// Bootstrap applies the schema-creation script to adapter and commits it,
// exported so package ddl's integration tests can stand up a real database without duplicating init.sql's table definitions.
func Bootstrap(ctx context.Context, adapter *storage.Adapter) error {
	if err := adapter.ExecuteScript(ctx, bootstrapSQL); err != nil {
		return err
	}
	return adapter.Commit()
}
