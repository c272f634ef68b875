// Package store assembles the Storage Adapter, Transformer Host, Schema
// Manager, Object Engine, Reference Engine and DDL Interpreter into the
// single root facade: one Store value exposing every public operation the
// system offers. Grounded on the original's interface.py ObjectInterface,
// which plays the identical role of gluing the lower engines behind one
// object a caller opens once per process.
package store

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/pepegiallo/sqlite-odai/ddl"
	"github.com/pepegiallo/sqlite-odai/object"
	"github.com/pepegiallo/sqlite-odai/querylanguage"
	"github.com/pepegiallo/sqlite-odai/reference"
	"github.com/pepegiallo/sqlite-odai/storage"
	"github.com/pepegiallo/sqlite-odai/structure"
	"github.com/pepegiallo/sqlite-odai/transform"
)

// Store is the root facade: every public operation the system offers is a
// method on this type.
type Store struct {
	id      uuid.UUID
	logger  *slog.Logger
	adapter *storage.Adapter
	host    *transform.Host
	schema  *structure.Manager
	objects *object.Engine
	refs    *reference.Engine
	ddl     *ddl.Interpreter
}

// Open opens a Store per cfg: a single pooled connection to cfg.DSN, the
// bootstrap script applied when cfg.Bootstrap is set, and every engine wired
// together with a shared correlation id attached to the base logger.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	id := uuid.New()
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.level()})
	logger := slog.New(handler).With("store_id", id.String())

	adapter, err := storage.Open(cfg.DSN, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Bootstrap {
		if err := Bootstrap(ctx, adapter); err != nil {
			adapter.Close()
			return nil, err
		}
	}

	return wire(adapter, id, logger), nil
}

// wire assembles the engine graph over an already-open adapter. The two
// variables the lookup closures capture (schema, objects) are declared before transform.NewHost and
// assigned afterward: transform.Host needs its Lookups at construction time,
// but the schema/object engines those lookups resolve through need the Host
// itself, so the closures capture the variables by reference and only
// dereference them once a transformer actually runs, well after wiring
// completes.
func wire(adapter *storage.Adapter, id uuid.UUID, logger *slog.Logger) *Store {
	var schema *structure.Manager
	var objects *object.Engine

	lookups := transform.Lookups{
		GetClass: func(name string) (any, error) {
			return schema.GetClassByName(context.Background(), name)
		},
		GetAttribute: func(name string) (any, error) {
			return schema.GetAttributeByName(context.Background(), name)
		},
		GetReference: func(name string) (any, error) {
			return schema.GetReferenceByName(context.Background(), name)
		},
		GetObject: func(id int64) (any, error) {
			return objects.GetObject(context.Background(), id)
		},
	}
	host := transform.NewHost(lookups, logger)

	schema = structure.New(adapter, host)
	objects = object.New(adapter, schema, host, logger)
	refs := reference.New(adapter, schema, objects)
	interp := ddl.New(schema)

	return &Store{
		id:      id,
		logger:  logger,
		adapter: adapter,
		host:    host,
		schema:  schema,
		objects: objects,
		refs:    refs,
		ddl:     interp,
	}
}

// ID is this Store's per-process correlation id, the value attached to
// every log record it emits.
func (s *Store) ID() uuid.UUID { return s.id }

// Close releases the underlying connection.
func (s *Store) Close() error { return s.adapter.Close() }

// Commit flushes any pending write transaction: writes stay pending until
// explicitly committed.
func (s *Store) Commit() error { return s.adapter.Commit() }

// Rollback discards any pending write transaction.
func (s *Store) Rollback() error { return s.adapter.Rollback() }

// ClearCache drops every memoised structure lookup, forcing the next schema
// read to go back to storage.
func (s *Store) ClearCache() { s.schema.ClearCache() }

// RunDDL parses and applies source as a sequence of DDL blocks.
func (s *Store) RunDDL(ctx context.Context, source string) error {
	if err := s.ddl.Run(ctx, source); err != nil {
		s.logger.Error("ddl run failed", "error", err)
		return err
	}
	return nil
}

// -- Schema Manager passthroughs --

func (s *Store) CreateDatatype(ctx context.Context, name string, generator, parent *string, readSrc, writeSrc string) (*structure.Datatype, error) {
	return s.schema.CreateDatatype(ctx, name, generator, parent, readSrc, writeSrc)
}

func (s *Store) CreateClass(ctx context.Context, name string, parent *string, traced bool) (*structure.Class, error) {
	return s.schema.CreateClass(ctx, name, parent, traced)
}

func (s *Store) CreateAttribute(ctx context.Context, name string, datatype structure.Datatype) (*structure.Attribute, error) {
	return s.schema.CreateAttribute(ctx, name, datatype)
}

func (s *Store) Assign(ctx context.Context, class structure.Class, attribute structure.Attribute, indexed bool, readSrc, writeSrc string) (*structure.AttributeAssignment, error) {
	return s.schema.Assign(ctx, class, attribute, indexed, readSrc, writeSrc)
}

func (s *Store) CreateReference(ctx context.Context, name string, origin, target structure.Class, cardinality *int) (*structure.Reference, error) {
	return s.schema.CreateReference(ctx, name, origin, target, cardinality)
}

func (s *Store) GetDatatype(ctx context.Context, name string) (*structure.Datatype, error) {
	return s.schema.GetDatatypeByName(ctx, name)
}

func (s *Store) GetClass(ctx context.Context, name string) (*structure.Class, error) {
	return s.schema.GetClassByName(ctx, name)
}

func (s *Store) GetAttribute(ctx context.Context, name string) (*structure.Attribute, error) {
	return s.schema.GetAttributeByName(ctx, name)
}

func (s *Store) GetReference(ctx context.Context, name string) (*structure.Reference, error) {
	return s.schema.GetReferenceByName(ctx, name)
}

// -- Object Engine passthroughs --

func (s *Store) Touch(ctx context.Context, class structure.Class) (*object.Object, error) {
	return s.objects.Touch(ctx, class)
}

func (s *Store) CreateObject(ctx context.Context, class structure.Class, attrs map[string]any) (*object.Object, error) {
	return s.objects.CreateObject(ctx, class, attrs)
}

func (s *Store) Modify(ctx context.Context, obj *object.Object, attrs map[string]any) error {
	return s.objects.Modify(ctx, obj, attrs)
}

func (s *Store) Activate(ctx context.Context, obj *object.Object) error   { return s.objects.Activate(ctx, obj) }
func (s *Store) Deactivate(ctx context.Context, obj *object.Object) error { return s.objects.Deactivate(ctx, obj) }
func (s *Store) Delete(ctx context.Context, obj *object.Object) error     { return s.objects.Delete(ctx, obj) }

func (s *Store) GetObject(ctx context.Context, id int64) (*object.Object, error) {
	return s.objects.GetObject(ctx, id)
}

func (s *Store) GetInstances(ctx context.Context, class structure.Class, recursive, activeOnly bool) (*object.ObjectList, error) {
	return s.objects.GetInstances(ctx, class, recursive, activeOnly)
}

func (s *Store) GetValue(ctx context.Context, obj *object.Object, name string) (any, error) {
	return s.objects.GetValue(ctx, obj, name)
}

func (s *Store) Values(ctx context.Context, obj *object.Object) (map[string]any, error) {
	return s.objects.Values(ctx, obj)
}

// Filter narrows list to the subset whose attribute row satisfies predicate,
// e.g. one built with querylanguage.StringEQ("ada").Field("name").
func (s *Store) Filter(ctx context.Context, list *object.ObjectList, predicate querylanguage.P) (*object.ObjectList, error) {
	return list.Filter(ctx, s.objects, predicate)
}

// -- Reference Engine passthroughs --

func (s *Store) Bind(ctx context.Context, ref structure.Reference, origin *object.Object, targets []*object.Object, rebind bool) error {
	return s.refs.Bind(ctx, ref, origin, targets, rebind)
}

func (s *Store) Hop(ctx context.Context, ref structure.Reference, origin *object.Object, version *int64, activeOnly bool) (*object.ObjectList, error) {
	return s.refs.Hop(ctx, ref, origin, version, activeOnly)
}

func (s *Store) HopFirst(ctx context.Context, ref structure.Reference, origin *object.Object, version *int64, activeOnly bool) (*object.Object, bool, error) {
	return s.refs.HopFirst(ctx, ref, origin, version, activeOnly)
}

// -- housekeeping --

// Info returns the most recent limit rows logged via Log, newest first.
func (s *Store) Info(ctx context.Context, limit int) ([]storage.Row, error) {
	return s.adapter.FetchAll(ctx, `SELECT id, time, version, comment FROM info ORDER BY id DESC LIMIT ?`, limit)
}

// Log appends a free-text comment to the info table, stamped with Version.
func (s *Store) Log(ctx context.Context, comment string) error {
	_, err := s.adapter.Execute(ctx, `INSERT INTO info (version, comment) VALUES (?, ?)`, Version, comment)
	return err
}

// Version is the running build identifier stamped on every Log entry.
const Version = "0.1.0"
