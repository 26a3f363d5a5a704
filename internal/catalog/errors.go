package catalog

import (
	"errors"
	"fmt"
)

// ErrCycle is returned when an operation would create a cycle: reparenting a
// node under its own descendant, or an invalidation that reaches back into a
// derived value already being invalidated.
var ErrCycle = errors.New("cycle detected")

// ErrFieldNotFound is returned when a container has no field with the
// requested name or position.
var ErrFieldNotFound = errors.New("field not found")

// ErrValueNotFound is returned when a field holds no value for the requested
// source or position.
var ErrValueNotFound = errors.New("no value for key")

// ErrSourceMismatch is returned when a replacement value does not carry the
// source of the slot it replaces.
var ErrSourceMismatch = errors.New("value source does not match slot")

// ErrDuplicateSource is returned when adding a value whose source is already
// present in the field.
var ErrDuplicateSource = errors.New("source already present in field")

// ErrTypeMismatch is returned when a value fails a field's type constraint.
var ErrTypeMismatch = errors.New("value does not satisfy type constraint")

// ErrDuplicateOwner is returned when attaching an already-owned Field or
// DerivedValue to a second owner, or re-adding an existing field name.
var ErrDuplicateOwner = errors.New("already owned")

// ErrEmptyField is returned when reading the current value of a field that
// holds no values.
var ErrEmptyField = errors.New("field is empty")

// ErrUnresolved is the sentinel wrapped by UnresolvedError.
var ErrUnresolved = errors.New("unresolved dependency")

// ErrUnusable is returned when reading a derived value that failed its
// field's type constraint at attach time.
var ErrUnusable = errors.New("derived value marked unusable")

// UnresolvedError reports the dependency slots of a derived value that could
// not be dereferenced, by declaration index.
type UnresolvedError struct {
	Indices []int
	Reason  string
}

func (e *UnresolvedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unresolved dependency at indices %v: %s", e.Indices, e.Reason)
	}
	return fmt.Sprintf("unresolved dependency at indices %v", e.Indices)
}

// Unwrap lets errors.Is match ErrUnresolved.
func (e *UnresolvedError) Unwrap() error {
	return ErrUnresolved
}
