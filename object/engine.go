package object

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pepegiallo/sqlite-odai"
	"github.com/pepegiallo/sqlite-odai/naming"
	"github.com/pepegiallo/sqlite-odai/storage"
	"github.com/pepegiallo/sqlite-odai/structure"
	"github.com/pepegiallo/sqlite-odai/transform"
)

// Engine owns data_meta and the per-class data_<class> tables, and composes
// the class-view join used by GetObject and GetInstances.
type Engine struct {
	db     *storage.Adapter
	schema *structure.Manager
	host   *transform.Host
	logger *slog.Logger
}

// New returns an Engine backed by db, resolving structure through schema
// and transformer source through host.
func New(db *storage.Adapter, schema *structure.Manager, host *transform.Host, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{db: db, schema: schema, host: host, logger: logger}
}

// Touch creates a new object in status InCreation with current_version = 0
// and a nil value for every attribute assigned anywhere in class's family
// tree (control.py: ObjectInterface.touch).
func (e *Engine) Touch(ctx context.Context, class structure.Class) (*Object, error) {
	res, err := e.db.Execute(ctx, `INSERT INTO data_meta (class_id) VALUES (?)`, class.ID)
	if err != nil {
		return nil, wrapStorageErr("touch", err)
	}
	id, err := e.db.LastInsertID(res)
	if err != nil {
		return nil, wrapStorageErr("touch", err)
	}

	row, ok, err := e.db.FetchOne(ctx, `SELECT status, created FROM data_meta WHERE id = ?`, id)
	if err != nil {
		return nil, wrapStorageErr("touch", err)
	}
	if !ok {
		return nil, odai.NewStorageError("touch", "", fmt.Errorf("inserted object %d not found", id))
	}

	tree, err := e.schema.FamilyTree(ctx, class)
	if err != nil {
		return nil, err
	}
	raw := make(map[string]any)
	for _, k := range tree {
		attrs, err := e.schema.AssignedAttributes(ctx, k)
		if err != nil {
			return nil, err
		}
		for _, a := range attrs {
			raw[a.Name] = nil
		}
	}

	obj := newObject(id, class, Status(asInt64(row["status"])), asTime(row["created"]), 0, raw)
	e.logger.Debug("touched object", "class", class.Name, "id", id)
	return obj, nil
}

func (e *Engine) setStatus(ctx context.Context, obj *Object, status Status) error {
	if _, err := e.db.Execute(ctx, `UPDATE data_meta SET status = ? WHERE id = ?`, int(status), obj.ID); err != nil {
		return wrapStorageErr("set_status", err)
	}
	obj.Status = status
	return nil
}

// Activate moves obj to Active.
func (e *Engine) Activate(ctx context.Context, obj *Object) error { return e.setStatus(ctx, obj, StatusActive) }

// Deactivate moves obj to Inactive.
func (e *Engine) Deactivate(ctx context.Context, obj *Object) error { return e.setStatus(ctx, obj, StatusInactive) }

// Delete moves obj to Deleted. Terminal only for traversal defaults: the
// row remains and Hop's active-only filter is the sole compensating
// mechanism.
func (e *Engine) Delete(ctx context.Context, obj *Object) error { return e.setStatus(ctx, obj, StatusDeleted) }

// CreateObject touches class, applies attrs via Modify if any are given,
// and activates the result (control.py: ObjectInterface.create_object).
func (e *Engine) CreateObject(ctx context.Context, class structure.Class, attrs map[string]any) (*Object, error) {
	obj, err := e.Touch(ctx, class)
	if err != nil {
		return nil, err
	}
	if len(attrs) > 0 {
		if err := e.Modify(ctx, obj, attrs); err != nil {
			return nil, err
		}
	}
	if err := e.Activate(ctx, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// writeValue runs the write pipeline for attribute name on class: the
// assignment transform (value, this) followed by the datatype compose-write
// chain, producing the raw value to persist.
func (e *Engine) writeValue(ctx context.Context, obj *Object, class structure.Class, name string, value any) (any, error) {
	assignment, attr, err := e.schema.AssignmentFor(ctx, class, name)
	if err != nil {
		return nil, err
	}
	processed, err := e.host.Eval(assignment.WriteSource, value, map[string]any{"this": obj})
	if err != nil {
		e.logger.Error("assignment write transformer failed", "attribute", name, "error", err)
		return nil, nil
	}

	dt, err := e.schema.GetDatatypeByID(ctx, attr.DatatypeID)
	if err != nil {
		return nil, err
	}
	composeWrite, err := e.schema.ComposeWrite(ctx, *dt)
	if err != nil {
		return nil, err
	}
	raw, err := composeWrite(processed)
	if err != nil {
		e.logger.Error("datatype write transformer failed", "attribute", name, "error", err)
		return nil, nil
	}
	return raw, nil
}

// Modify advances obj to a new version, writing the given attributes and
// carrying forward every other column of every touched ancestor class. If
// any unknown attribute name is given, Modify fails with UnknownAttribute
// — the stricter of the original's two behaviors.
func (e *Engine) Modify(ctx context.Context, obj *Object, attrs map[string]any) error {
	tree, err := e.schema.FamilyTree(ctx, obj.Class)
	if err != nil {
		return err
	}

	classOf := make(map[string]bool, len(attrs))
	for name := range attrs {
		classOf[name] = false
	}

	cur := obj.CurrentVersion
	newVersion := cur + 1
	raw := make(map[string]any)

	for _, k := range tree {
		assignedAttrs, err := e.schema.AssignedAttributes(ctx, k)
		if err != nil {
			return err
		}
		classAttrNames := make(map[string]bool, len(assignedAttrs))
		for _, a := range assignedAttrs {
			classAttrNames[a.Name] = true
		}

		current := make(map[string]any)
		for name, value := range attrs {
			if !classAttrNames[name] {
				continue
			}
			classOf[name] = true
			rawVal, err := e.writeValue(ctx, obj, k, name, value)
			if err != nil {
				return err
			}
			current[name] = rawVal
		}
		for name, v := range current {
			raw[name] = v
		}

		table := naming.DataTable(k.Name)
		if len(current) > 0 {
			if err := e.insertVersionRow(ctx, table, obj.ID, cur, newVersion, classAttrNames, current); err != nil {
				return err
			}
		} else {
			if _, err := e.db.Execute(ctx, fmt.Sprintf(`UPDATE %s SET version = ? WHERE id = ? AND version = ?`, table), newVersion, obj.ID, cur); err != nil {
				return wrapStorageErr("modify", err)
			}
		}
	}

	for name, touched := range classOf {
		if !touched {
			return odai.NewUnknownAttributeError(obj.Class.Name, name)
		}
	}

	if _, err := e.db.Execute(ctx, `UPDATE data_meta SET current_version = ? WHERE id = ?`, newVersion, obj.ID); err != nil {
		return wrapStorageErr("modify", err)
	}
	obj.CurrentVersion = newVersion
	obj.updateRawAttributes(raw)
	return nil
}

// insertVersionRow inserts the new-version row for one class's data table,
// adopting the unmentioned columns' current values so the row stays
// complete.
func (e *Engine) insertVersionRow(ctx context.Context, table string, id, cur, newVersion int64, classAttrNames map[string]bool, current map[string]any) error {
	var toAdopt []string
	for name := range classAttrNames {
		if _, ok := current[name]; !ok {
			toAdopt = append(toAdopt, name)
		}
	}
	if len(toAdopt) > 0 {
		sort.Strings(toAdopt)
		row, ok, err := e.db.FetchOne(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id = ? AND version = ?`, strings.Join(toAdopt, ", "), table), id, cur)
		if err != nil {
			return wrapStorageErr("modify", err)
		}
		if ok {
			for _, name := range toAdopt {
				current[name] = row[name]
			}
		}
	}

	cols := make([]string, 0, len(current))
	for name := range current {
		cols = append(cols, name)
	}
	sort.Strings(cols)

	values := make([]any, 0, len(cols)+2)
	values = append(values, id, newVersion)
	for _, name := range cols {
		values = append(values, current[name])
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	colList := ""
	if len(cols) > 0 {
		colList = ", " + strings.Join(cols, ", ")
	}
	insertSQL := fmt.Sprintf(`INSERT INTO %s (id, version%s) VALUES (?, ?%s)`, table, colList, placeholderPrefix(placeholders))
	if _, err := e.db.Execute(ctx, insertSQL, values...); err != nil {
		return wrapStorageErr("modify", err)
	}
	return nil
}

func placeholderPrefix(placeholders string) string {
	if placeholders == "" {
		return ""
	}
	return ", " + placeholders
}

// classViewSQL composes the class view: one LEFT JOIN per ancestor class,
// selecting every inherited column aliased to its attribute name.
func (e *Engine) classViewSQL(ctx context.Context, class structure.Class) (string, error) {
	tree, err := e.schema.FamilyTree(ctx, class)
	if err != nil {
		return "", err
	}
	var joins []string
	var cols []string
	for _, k := range tree {
		table := naming.DataTable(k.Name)
		joins = append(joins, fmt.Sprintf("LEFT JOIN %s ON data_meta.id = %s.id AND data_meta.current_version = %s.version", table, table, table))
		attrs, err := e.schema.AssignedAttributes(ctx, k)
		if err != nil {
			return "", err
		}
		for _, a := range attrs {
			cols = append(cols, fmt.Sprintf("%s.%s AS %s", table, a.Name, a.Name))
		}
	}
	selectCols := "data_meta.id AS id"
	if len(cols) > 0 {
		selectCols += ", " + strings.Join(cols, ", ")
	}
	return fmt.Sprintf("SELECT %s FROM data_meta %s WHERE data_meta.class_id = %d", selectCols, strings.Join(joins, " "), class.ID), nil
}

// GetObject fetches the meta row, resolves the class, then materialises an
// Object from the class view filtered to id (control.py:
// ObjectInterface.get_object).
func (e *Engine) GetObject(ctx context.Context, id int64) (*Object, error) {
	metaRow, ok, err := e.db.FetchOne(ctx, `SELECT class_id, status, current_version, created FROM data_meta WHERE id = ?`, id)
	if err != nil {
		return nil, wrapStorageErr("get_object", err)
	}
	if !ok {
		return nil, odai.NewNotFoundError("object", id)
	}

	class, err := e.schema.GetClassByID(ctx, asInt64(metaRow["class_id"]))
	if err != nil {
		return nil, err
	}

	viewSQL, err := e.classViewSQL(ctx, *class)
	if err != nil {
		return nil, err
	}
	viewRow, ok, err := e.db.FetchOne(ctx, viewSQL+" AND data_meta.id = ?", id)
	if err != nil {
		return nil, wrapStorageErr("get_object", err)
	}
	if !ok {
		return nil, odai.NewNotFoundError("object", id)
	}

	raw := make(map[string]any, len(viewRow))
	for col, v := range viewRow {
		if col == "id" {
			continue
		}
		raw[col] = v
	}

	obj := newObject(id, *class, Status(asInt64(metaRow["status"])), asTime(metaRow["created"]), asInt64(metaRow["current_version"]), raw)
	return obj, nil
}

// GetInstances returns every object of class (and, if recursive, every
// descendant class), optionally restricted to Active objects. The
// recursive flag walks Class.Descendants exactly as control.py's
// get_instances does.
func (e *Engine) GetInstances(ctx context.Context, class structure.Class, recursive, activeOnly bool) (*ObjectList, error) {
	classIDs := []int64{class.ID}
	if recursive {
		descendants, err := e.schema.Descendants(ctx, class)
		if err != nil {
			return nil, err
		}
		for _, d := range descendants {
			classIDs = append(classIDs, d.ID)
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(classIDs)), ", ")
	query := fmt.Sprintf(`SELECT id FROM data_meta WHERE class_id IN (%s)`, placeholders)
	if activeOnly {
		query += fmt.Sprintf(" AND status = %d", int(StatusActive))
	}
	args := make([]any, len(classIDs))
	for i, id := range classIDs {
		args[i] = id
	}

	rows, err := e.db.FetchAll(ctx, query, args...)
	if err != nil {
		return nil, wrapStorageErr("get_instances", err)
	}

	objects := make([]*Object, 0, len(rows))
	for _, row := range rows {
		obj, err := e.GetObject(ctx, asInt64(row["id"]))
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return NewList(objects), nil
}

// unprocessedValue applies dt.ComposeRead to obj's raw value for name,
// memoising the result.
func (e *Engine) unprocessedValue(ctx context.Context, obj *Object, name string, attr structure.Attribute, raw any) (any, error) {
	if v, ok := obj.cachedUnprocessed(name); ok {
		return v, nil
	}
	dt, err := e.schema.GetDatatypeByID(ctx, attr.DatatypeID)
	if err != nil {
		return nil, err
	}
	composeRead, err := e.schema.ComposeRead(ctx, *dt)
	if err != nil {
		return nil, err
	}
	v, err := composeRead(raw)
	if err != nil {
		e.logger.Error("datatype read transformer failed", "attribute", name, "error", err)
		return nil, nil
	}
	obj.cacheUnprocessed(name, v)
	return v, nil
}

// GetValue runs the full read pipeline for attribute name on obj: raw ->
// datatype compose-read -> assignment read transform, memoising both
// stages (control.py: Object.get_value).
func (e *Engine) GetValue(ctx context.Context, obj *Object, name string) (any, error) {
	if v, ok := obj.cachedProcessed(name); ok {
		return v, nil
	}

	raw, ok := obj.RawValue(name)
	if !ok {
		return nil, odai.NewUnknownAttributeError(obj.Class.Name, name)
	}

	assignment, attr, err := e.schema.AssignmentFor(ctx, obj.Class, name)
	if err != nil {
		return nil, err
	}

	unprocessed, err := e.unprocessedValue(ctx, obj, name, *attr, raw)
	if err != nil {
		return nil, err
	}

	value, err := e.host.Eval(assignment.ReadSource, unprocessed, map[string]any{"this": obj})
	if err != nil {
		e.logger.Error("assignment read transformer failed", "attribute", name, "error", err)
		return nil, nil
	}
	obj.cacheProcessed(name, value)
	return value, nil
}

// Values resolves GetValue for every attribute name obj carries, used by
// ObjectList.Table and Object.Dump.
func (e *Engine) Values(ctx context.Context, obj *Object) (map[string]any, error) {
	out := make(map[string]any, len(obj.RawAttributes))
	for _, name := range obj.AttributeNames() {
		v, err := e.GetValue(ctx, obj, name)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func wrapStorageErr(op string, err error) error {
	type sqlTexter interface{ SQL() string }
	sqlText := ""
	if st, ok := err.(sqlTexter); ok {
		sqlText = st.SQL()
	}
	return odai.NewStorageError(op, sqlText, err)
}
