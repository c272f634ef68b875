// Package object implements the Object Engine: object
// lifecycle (touch/modify/activate/deactivate/delete), the two-stage
// read/write value-transformer pipeline, and the class-view join that
// materialises an Object from its current-version rows. Grounded on the
// original's control.py Object/ObjectList and interface.py's
// touch/modify/get_object/__get_class_view_sql__, reimplemented with the
// storage adapter, the structure.Manager and per-instance memoisation maps
// guarded by a mutex in place of Python's @cache-decorated methods (Design
// Notes: "Memoisation").
package object

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/pepegiallo/sqlite-odai/structure"
)

// Status is an object's lifecycle state.
type Status int

// Status codes, matching the bootstrap schema's data_meta.status values.
const (
	StatusInCreation Status = iota
	StatusActive
	StatusInactive
	StatusDeleted
)

// String renders the status the way control.py's Object.dump does:
// ['In creation', 'Active', 'Inactive', 'Deleted'][status].
func (s Status) String() string {
	switch s {
	case StatusInCreation:
		return "In creation"
	case StatusActive:
		return "Active"
	case StatusInactive:
		return "Inactive"
	case StatusDeleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// Object is a logical identity spanning many versioned rows across its
// class's family tree. RawAttributes holds the raw, as-stored
// values keyed by attribute name; processed/unprocessed values are derived
// on demand by Engine.GetValue and memoised here.
type Object struct {
	ID             int64
	Class          structure.Class
	Status         Status
	Created        time.Time
	CurrentVersion int64
	RawAttributes  map[string]any

	mu          sync.Mutex
	unprocessed map[string]any
	processed   map[string]any
}

func newObject(id int64, class structure.Class, status Status, created time.Time, currentVersion int64, raw map[string]any) *Object {
	return &Object{
		ID:             id,
		Class:          class,
		Status:         status,
		Created:        created,
		CurrentVersion: currentVersion,
		RawAttributes:  raw,
		unprocessed:    make(map[string]any),
		processed:      make(map[string]any),
	}
}

// IsActive reports whether the object's status is Active.
func (o *Object) IsActive() bool { return o.Status == StatusActive }

// AttributeNames returns the names of every attribute the object carries a
// raw value for, i.e. every attribute assigned somewhere in its class's
// family tree (control.py: Object.get_attribute_names).
func (o *Object) AttributeNames() []string {
	names := make([]string, 0, len(o.RawAttributes))
	for name := range o.RawAttributes {
		names = append(names, name)
	}
	return names
}

// RawValue returns the stored, untransformed value of attribute name.
func (o *Object) RawValue(name string) (any, bool) {
	v, ok := o.RawAttributes[name]
	return v, ok
}

// updateRawAttributes merges raw into RawAttributes and invalidates the
// memoised unprocessed/processed value for every touched key
// (control.py: Object.update_raw_attributes).
func (o *Object) updateRawAttributes(raw map[string]any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for k, v := range raw {
		o.RawAttributes[k] = v
		delete(o.unprocessed, k)
		delete(o.processed, k)
	}
}

func (o *Object) cachedUnprocessed(name string) (any, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.unprocessed[name]
	return v, ok
}

func (o *Object) cacheUnprocessed(name string, v any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.unprocessed == nil {
		o.unprocessed = make(map[string]any)
	}
	o.unprocessed[name] = v
}

func (o *Object) cachedProcessed(name string) (any, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.processed[name]
	return v, ok
}

func (o *Object) cacheProcessed(name string, v any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.processed == nil {
		o.processed = make(map[string]any)
	}
	o.processed[name] = v
}

// Dump renders a human-readable one-object summary (control.py:
// Object.dump), a debugging aid built from the object's class, id and
// status plus the attribute values passed in, not a presentation layer.
func (o *Object) Dump(values map[string]any) string {
	out := o.Class.Name + " " + strconv.FormatInt(o.ID, 10) + " (" + o.Status.String() + "):"
	for _, name := range o.AttributeNames() {
		out += fmt.Sprintf("\n  %s = %v", name, values[name])
	}
	return out
}
