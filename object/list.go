package object

import "context"

// ObjectList is a read-only collection of Objects plus a cached tabular
// snapshot, set-hop traversal and predicate filtering. Grounded on
// control.py's ObjectList (objects slice + pandas
// DataFrame cache), reimplemented with a plain []map[string]any table
// instead of a DataFrame — the module carries no dataframe dependency, so
// Table()/Column() return the same row-oriented shape a caller would get
// from iterating a DataFrame's records.
type ObjectList struct {
	objects []*Object
	table   []map[string]any // cached by Table; nil means dirty/unbuilt
}

// NewList wraps objects in a read-only ObjectList.
func NewList(objects []*Object) *ObjectList {
	return &ObjectList{objects: append([]*Object(nil), objects...)}
}

// Len reports the number of objects.
func (l *ObjectList) Len() int { return len(l.objects) }

// At returns the object at index.
func (l *ObjectList) At(index int) *Object { return l.objects[index] }

// Objects returns the underlying slice (read-only; callers must not mutate
// it in place — use Append/Extend/Clear instead, which invalidate the
// cached table.
func (l *ObjectList) Objects() []*Object { return l.objects }

// Append adds object and invalidates the cached table.
func (l *ObjectList) Append(obj *Object) {
	l.objects = append(l.objects, obj)
	l.table = nil
}

// Extend adds objects and invalidates the cached table.
func (l *ObjectList) Extend(objects []*Object) {
	l.objects = append(l.objects, objects...)
	l.table = nil
}

// Clear empties the list and invalidates the cached table.
func (l *ObjectList) Clear() {
	l.objects = nil
	l.table = nil
}

// Table materialises a tabular snapshot: one row per object, keyed by
// attribute name plus "id", caching the result until the next mutation.
func (l *ObjectList) Table(ctx context.Context, engine *Engine) ([]map[string]any, error) {
	if l.table != nil {
		return l.table, nil
	}
	rows := make([]map[string]any, 0, len(l.objects))
	for _, obj := range l.objects {
		values, err := engine.Values(ctx, obj)
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(values)+1)
		row["id"] = obj.ID
		for k, v := range values {
			row[k] = v
		}
		rows = append(rows, row)
	}
	l.table = rows
	return rows, nil
}

// Column returns the named column across every row of Table.
func (l *ObjectList) Column(ctx context.Context, engine *Engine, name string) ([]any, error) {
	table, err := l.Table(ctx, engine)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(table))
	for i, row := range table {
		out[i] = row[name]
	}
	return out, nil
}

// Predicate is satisfied by anything that can decide whether a tabular row
// passes a filter, e.g. querylanguage.P.Match.
type Predicate interface {
	Match(row map[string]any) bool
}

// Filter returns a new ObjectList containing exactly the source objects
// whose Table row satisfies predicate.
func (l *ObjectList) Filter(ctx context.Context, engine *Engine, predicate Predicate) (*ObjectList, error) {
	table, err := l.Table(ctx, engine)
	if err != nil {
		return nil, err
	}
	keep := make(map[int64]bool, len(table))
	for _, row := range table {
		if predicate.Match(row) {
			if id, ok := row["id"].(int64); ok {
				keep[id] = true
			}
		}
	}
	var out []*Object
	for _, obj := range l.objects {
		if keep[obj.ID] {
			out = append(out, obj)
		}
	}
	return NewList(out), nil
}

// Hop aggregates a reference.Engine.Hop call across every element and
// dedupes targets by id, first-seen order. hopFn is injected so this
// package need not import reference directly
// (reference imports object; importing back would cycle).
func (l *ObjectList) Hop(hopFn func(origin *Object) ([]*Object, error)) (*ObjectList, error) {
	seen := make(map[int64]bool)
	var out []*Object
	for _, obj := range l.objects {
		targets, err := hopFn(obj)
		if err != nil {
			return nil, err
		}
		for _, t := range targets {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			out = append(out, t)
		}
	}
	return NewList(out), nil
}
