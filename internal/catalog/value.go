package catalog

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// FieldValue is the fixed two-variant contract for values held by a Field:
// observed literals and lazily derived values.
type FieldValue interface {
	// Value returns the payload. Observed values never fail; derived values
	// may resolve dependencies and compute on demand.
	Value() (cty.Value, error)
	// Source identifies the provenance of the value.
	Source() *Source
}

// ObservedValue is an immutable literal paired with its Source.
type ObservedValue struct {
	val cty.Value
	src *Source
}

// NewObserved wraps a literal with its source. A nil source attaches the
// reserved default source.
func NewObserved(val cty.Value, src *Source) *ObservedValue {
	if src == nil {
		src = DefaultSource()
	}
	return &ObservedValue{val: val, src: src}
}

// Value returns the stored literal.
func (o *ObservedValue) Value() (cty.Value, error) {
	return o.val, nil
}

// Source returns the provenance of the literal.
func (o *ObservedValue) Source() *Source {
	return o.src
}

func (o *ObservedValue) String() string {
	return fmt.Sprintf("Value %v:%s", o.val, o.src)
}
