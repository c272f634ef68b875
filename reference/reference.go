// Package reference implements the Reference Engine: bind/rebind/hop over
// a directed, named, optionally cardinality-bounded edge type, with a
// per-(reference, origin) monotonic version counter. Grounded on the
// original's interface.py bind/hop and on control.py's Object.hop/
// hop_first, reimplemented against the storage adapter and the
// object.Engine for target materialisation.
//
// One deviation from the original is deliberate: interface.py's non-rebind
// path stamps every existing row for an origin forward to the new version
// regardless of the row's own version ("UPDATE ... SET version = ? WHERE
// origin_id = ?"), which would overwrite every prior snapshot's version
// number and make historical hops unrecoverable. Historical rows must stay
// queryable, so Bind here copies the rows at the origin's *current*
// reference-version into the new version and leaves every existing row,
// including those copied from, untouched (see DESIGN.md).
package reference

import (
	"context"
	"fmt"

	"github.com/pepegiallo/sqlite-odai"
	"github.com/pepegiallo/sqlite-odai/naming"
	"github.com/pepegiallo/sqlite-odai/object"
	"github.com/pepegiallo/sqlite-odai/storage"
	"github.com/pepegiallo/sqlite-odai/structure"
)

// Engine is the Reference Engine: Bind/Hop over reference_<name> tables,
// backed by structure_reference_version for the per-origin counter.
type Engine struct {
	db      *storage.Adapter
	schema  *structure.Manager
	objects *object.Engine
}

// New returns an Engine wired to db, schema (for reference lookups) and
// objects (to materialise hop targets via GetObject).
func New(db *storage.Adapter, schema *structure.Manager, objects *object.Engine) *Engine {
	return &Engine{db: db, schema: schema, objects: objects}
}

// Bind links origin to targets via ref. With rebind=false the
// existing bound set is carried forward and targets already bound are
// filtered out (idempotent add); with rebind=true the existing set is
// discarded and new becomes the version of the new set only.
func (e *Engine) Bind(ctx context.Context, ref structure.Reference, origin *object.Object, targets []*object.Object, rebind bool) error {
	if ref.Cardinality != nil {
		if len(targets) > *ref.Cardinality {
			return odai.NewCardinalityExceededError(ref.Name, *ref.Cardinality, len(targets))
		}
		if !rebind {
			current, err := e.Hop(ctx, ref, origin, nil, true)
			if err != nil {
				return err
			}
			if len(targets)+current.Len() > *ref.Cardinality {
				return odai.NewCardinalityExceededError(ref.Name, *ref.Cardinality, len(targets)+current.Len())
			}
		}
	}

	if _, err := e.db.Execute(ctx,
		`INSERT OR IGNORE INTO structure_reference_version (reference_id, origin_object_id) VALUES (?, ?)`,
		ref.ID, origin.ID); err != nil {
		return wrapStorageErr("bind", err)
	}
	row, ok, err := e.db.FetchOne(ctx,
		`SELECT current_version FROM structure_reference_version WHERE reference_id = ? AND origin_object_id = ?`,
		ref.ID, origin.ID)
	if err != nil {
		return wrapStorageErr("bind", err)
	}
	if !ok {
		return odai.NewStorageError("bind", "", fmt.Errorf("reference_version row for (%d, %d) missing after insert", ref.ID, origin.ID))
	}
	cur := asInt64(row["current_version"])
	newVersion := cur + 1

	table := naming.ReferenceTable(ref.Name)
	toInsert := targets
	if !rebind {
		existingRows, err := e.db.FetchAll(ctx, fmt.Sprintf(`SELECT target_id FROM %s WHERE origin_id = ? AND version = ?`, table), origin.ID, cur)
		if err != nil {
			return wrapStorageErr("bind", err)
		}
		existing := make(map[int64]bool, len(existingRows))
		for _, r := range existingRows {
			existing[asInt64(r["target_id"])] = true
		}
		if len(existingRows) > 0 {
			if _, err := e.db.Execute(ctx, fmt.Sprintf(`INSERT INTO %s (origin_id, target_id, version) SELECT origin_id, target_id, ? FROM %s WHERE origin_id = ? AND version = ?`, table, table), newVersion, origin.ID, cur); err != nil {
				return wrapStorageErr("bind", err)
			}
		}
		filtered := make([]*object.Object, 0, len(targets))
		for _, t := range targets {
			if !existing[t.ID] {
				filtered = append(filtered, t)
			}
		}
		toInsert = filtered
	}

	if len(toInsert) > 0 {
		argsList := make([][]any, len(toInsert))
		for i, t := range toInsert {
			argsList[i] = []any{origin.ID, t.ID, newVersion}
		}
		if err := e.db.ExecuteMany(ctx, fmt.Sprintf(`INSERT INTO %s (origin_id, target_id, version) VALUES (?, ?, ?)`, table), argsList); err != nil {
			return wrapStorageErr("bind", err)
		}
	}

	if _, err := e.db.Execute(ctx,
		`UPDATE structure_reference_version SET current_version = ? WHERE reference_id = ? AND origin_object_id = ?`,
		newVersion, ref.ID, origin.ID); err != nil {
		return wrapStorageErr("bind", err)
	}
	return nil
}

// Hop follows ref from origin at version (or the origin's current
// reference-version when nil), materialising each target via GetObject and
// optionally filtering to Active targets.
func (e *Engine) Hop(ctx context.Context, ref structure.Reference, origin *object.Object, version *int64, activeOnly bool) (*object.ObjectList, error) {
	var resolved int64
	if version == nil {
		row, ok, err := e.db.FetchOne(ctx,
			`SELECT current_version FROM structure_reference_version WHERE reference_id = ? AND origin_object_id = ?`,
			ref.ID, origin.ID)
		if err != nil {
			return nil, wrapStorageErr("hop", err)
		}
		if !ok {
			return object.NewList(nil), nil
		}
		resolved = asInt64(row["current_version"])
	} else {
		resolved = *version
	}

	table := naming.ReferenceTable(ref.Name)
	rows, err := e.db.FetchAll(ctx, fmt.Sprintf(`SELECT target_id FROM %s WHERE origin_id = ? AND version = ?`, table), origin.ID, resolved)
	if err != nil {
		return nil, wrapStorageErr("hop", err)
	}

	objects := make([]*object.Object, 0, len(rows))
	for _, row := range rows {
		obj, err := e.objects.GetObject(ctx, asInt64(row["target_id"]))
		if err != nil {
			return nil, err
		}
		if activeOnly && !obj.IsActive() {
			continue
		}
		objects = append(objects, obj)
	}
	return object.NewList(objects), nil
}

// HopFirst returns the first target of Hop, if any (control.py:
// Object.hop_first).
func (e *Engine) HopFirst(ctx context.Context, ref structure.Reference, origin *object.Object, version *int64, activeOnly bool) (*object.Object, bool, error) {
	list, err := e.Hop(ctx, ref, origin, version, activeOnly)
	if err != nil {
		return nil, false, err
	}
	if list.Len() == 0 {
		return nil, false, nil
	}
	return list.At(0), true, nil
}

func wrapStorageErr(op string, err error) error {
	type sqlTexter interface{ SQL() string }
	sqlText := ""
	if st, ok := err.(sqlTexter); ok {
		sqlText = st.SQL()
	}
	return odai.NewStorageError(op, sqlText, err)
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case []byte:
		return parseInt64(string(t))
	case string:
		return parseInt64(t)
	default:
		return 0
	}
}

func parseInt64(s string) int64 {
	var n int64
	var neg bool
	for i, r := range s {
		if i == 0 && r == '-' {
			neg = true
			continue
		}
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int64(r-'0')
	}
	if neg {
		return -n
	}
	return n
}
