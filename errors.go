// Package odai implements the metadata/runtime layer of a versioned,
// schema-evolving object store on top of an embedded SQLite-compatible
// relational engine.
package odai

import (
	"errors"
	"fmt"
)

// Standard sentinel errors. Every typed error below except SyntaxError,
// TransformError and StorageError wraps one of these so callers can use
// errors.Is against the sentinel without caring about the concrete type;
// those three have no sentinel and are matched with errors.As.
var (
	// ErrNotFound is returned when a lookup by id or name yields no row.
	ErrNotFound = errors.New("odai: not found")

	// ErrDuplicateName is returned when a structural create collides with
	// an existing name within the same entity kind.
	ErrDuplicateName = errors.New("odai: duplicate name")

	// ErrInvalidName is returned when an identifier fails the naming rule.
	ErrInvalidName = errors.New("odai: invalid name")

	// ErrInvalidDatatype is returned when a datatype is created with
	// neither a generator nor a parent.
	ErrInvalidDatatype = errors.New("odai: invalid datatype")

	// ErrCardinalityExceeded is returned when a bind would exceed a
	// reference's declared cardinality.
	ErrCardinalityExceeded = errors.New("odai: cardinality exceeded")

	// ErrUnknownAttribute is returned when an object attribute is accessed
	// or set by a name unassigned in any ancestor of its class.
	ErrUnknownAttribute = errors.New("odai: unknown attribute")
)

// NotFoundError reports that a lookup by id or name found no row.
type NotFoundError struct {
	Kind string // e.g. "class", "datatype", "attribute", "reference", "object"
	Key  any    // the id or name searched for
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("odai: %s %v not found", e.Kind, e.Key)
}

// Is allows errors.Is(err, ErrNotFound) to succeed.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NewNotFoundError returns a NotFoundError for the given entity kind and key.
func NewNotFoundError(kind string, key any) *NotFoundError {
	return &NotFoundError{Kind: kind, Key: key}
}

// DuplicateNameError reports a name collision on a structural create.
type DuplicateNameError struct {
	Kind string
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("odai: %s named %q already exists", e.Kind, e.Name)
}

func (e *DuplicateNameError) Is(target error) bool { return target == ErrDuplicateName }

// NewDuplicateNameError returns a DuplicateNameError for the given entity kind and name.
func NewDuplicateNameError(kind, name string) *DuplicateNameError {
	return &DuplicateNameError{Kind: kind, Name: name}
}

// InvalidNameError reports that an identifier fails the naming rule:
// letters, digits, underscore, starting with a letter.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("odai: invalid identifier %q", e.Name)
}

func (e *InvalidNameError) Is(target error) bool { return target == ErrInvalidName }

// NewInvalidNameError returns an InvalidNameError for the given raw name.
func NewInvalidNameError(name string) *InvalidNameError {
	return &InvalidNameError{Name: name}
}

// InvalidDatatypeError reports a datatype declared with neither a generator
// nor a parent: exactly one of the two is required.
type InvalidDatatypeError struct {
	Name   string
	Reason string
}

func (e *InvalidDatatypeError) Error() string {
	return fmt.Sprintf("odai: invalid datatype %q: %s", e.Name, e.Reason)
}

func (e *InvalidDatatypeError) Is(target error) bool { return target == ErrInvalidDatatype }

// NewInvalidDatatypeError returns an InvalidDatatypeError.
func NewInvalidDatatypeError(name, reason string) *InvalidDatatypeError {
	return &InvalidDatatypeError{Name: name, Reason: reason}
}

// CardinalityExceededError reports that a bind would push a reference past
// its declared cardinality.
type CardinalityExceededError struct {
	Reference   string
	Cardinality int
	Attempted   int
}

func (e *CardinalityExceededError) Error() string {
	return fmt.Sprintf("odai: reference %q has cardinality %d, cannot bind %d targets",
		e.Reference, e.Cardinality, e.Attempted)
}

func (e *CardinalityExceededError) Is(target error) bool { return target == ErrCardinalityExceeded }

// NewCardinalityExceededError returns a CardinalityExceededError.
func NewCardinalityExceededError(reference string, cardinality, attempted int) *CardinalityExceededError {
	return &CardinalityExceededError{Reference: reference, Cardinality: cardinality, Attempted: attempted}
}

// SyntaxError reports a DDL parsing failure, carrying the offending source
// fragment.
type SyntaxError struct {
	Fragment string
	Reason   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("odai: syntax error: %s: %q", e.Reason, e.Fragment)
}

// NewSyntaxError returns a SyntaxError for the given offending fragment.
func NewSyntaxError(reason, fragment string) *SyntaxError {
	return &SyntaxError{Fragment: fragment, Reason: reason}
}

// UnknownAttributeError reports access to, or an attempt to set, an
// attribute name that is unassigned in any ancestor of a class.
type UnknownAttributeError struct {
	Class     string
	Attribute string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("odai: attribute %q is not assigned to class %q or any ancestor", e.Attribute, e.Class)
}

func (e *UnknownAttributeError) Is(target error) bool { return target == ErrUnknownAttribute }

// NewUnknownAttributeError returns an UnknownAttributeError.
func NewUnknownAttributeError(class, attribute string) *UnknownAttributeError {
	return &UnknownAttributeError{Class: class, Attribute: attribute}
}

// TransformError wraps a panic/error raised by user transformer source.
// It is recovered at the transformer host boundary: operations log it and
// substitute nil for the value rather than aborting.
type TransformError struct {
	Source string
	Err    error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("odai: transformer failed: %v", e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// NewTransformError returns a TransformError wrapping the underlying cause.
func NewTransformError(source string, err error) *TransformError {
	return &TransformError{Source: source, Err: err}
}

// StorageError wraps an error surfaced from the Storage Adapter. It is
// fatal to the current operation and must never be swallowed.
type StorageError struct {
	Op  string
	SQL string
	Err error
}

func (e *StorageError) Error() string {
	if e.SQL != "" {
		return fmt.Sprintf("odai: storage error during %s: %v (sql=%q)", e.Op, e.Err, e.SQL)
	}
	return fmt.Sprintf("odai: storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError returns a StorageError.
func NewStorageError(op, sql string, err error) *StorageError {
	return &StorageError{Op: op, SQL: sql, Err: err}
}

// IsNotFound reports whether err is or wraps a NotFoundError/ErrNotFound.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// IsDuplicateName reports whether err is or wraps a DuplicateNameError.
func IsDuplicateName(err error) bool {
	if err == nil {
		return false
	}
	var e *DuplicateNameError
	return errors.As(err, &e) || errors.Is(err, ErrDuplicateName)
}

// IsCardinalityExceeded reports whether err is or wraps a CardinalityExceededError.
func IsCardinalityExceeded(err error) bool {
	if err == nil {
		return false
	}
	var e *CardinalityExceededError
	return errors.As(err, &e) || errors.Is(err, ErrCardinalityExceeded)
}

// IsUnknownAttribute reports whether err is or wraps an UnknownAttributeError.
func IsUnknownAttribute(err error) bool {
	if err == nil {
		return false
	}
	var e *UnknownAttributeError
	return errors.As(err, &e) || errors.Is(err, ErrUnknownAttribute)
}
