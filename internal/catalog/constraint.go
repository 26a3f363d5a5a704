package catalog

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Constraint restricts the values a Field accepts. Null values always pass:
// a null carries no payload to check.
type Constraint interface {
	// Check returns an error wrapping ErrTypeMismatch when v is not
	// acceptable.
	Check(v cty.Value) error
	String() string
}

type typeConstraint struct {
	ty cty.Type
}

// TypeIs constrains values to exactly the given cty type. List and set types
// carry their element type, so TypeIs(cty.List(cty.Number)) expresses a
// numeric-array constraint.
func TypeIs(ty cty.Type) Constraint {
	return typeConstraint{ty: ty}
}

func (c typeConstraint) Check(v cty.Value) error {
	if v.IsNull() {
		return nil
	}
	if !v.Type().Equals(c.ty) {
		return fmt.Errorf("%w: got %s, want %s", ErrTypeMismatch,
			v.Type().FriendlyName(), c.ty.FriendlyName())
	}
	return nil
}

func (c typeConstraint) String() string {
	return c.ty.FriendlyName()
}

type oneOfConstraint struct {
	types []cty.Type
}

// OneOf constrains values to any of the given cty types.
func OneOf(types ...cty.Type) Constraint {
	return oneOfConstraint{types: types}
}

func (c oneOfConstraint) Check(v cty.Value) error {
	if v.IsNull() {
		return nil
	}
	for _, ty := range c.types {
		if v.Type().Equals(ty) {
			return nil
		}
	}
	return fmt.Errorf("%w: got %s, want one of %s",
		ErrTypeMismatch, v.Type().FriendlyName(), c.String())
}

func (c oneOfConstraint) String() string {
	names := make([]string, len(c.types))
	for i, ty := range c.types {
		names[i] = ty.FriendlyName()
	}
	return strings.Join(names, "|")
}

type predicateConstraint struct {
	name string
	fn   func(cty.Value) bool
}

// Predicate constrains values with an arbitrary check. The name appears in
// error messages and renderings; the function must be pure.
func Predicate(name string, fn func(cty.Value) bool) Constraint {
	return predicateConstraint{name: name, fn: fn}
}

func (c predicateConstraint) Check(v cty.Value) error {
	if v.IsNull() {
		return nil
	}
	if !c.fn(v) {
		return fmt.Errorf("%w: predicate %q rejected value", ErrTypeMismatch, c.name)
	}
	return nil
}

func (c predicateConstraint) String() string {
	return "predicate:" + c.name
}

// checkConstraint applies c to a field value. Observed values check their
// literal; derived values check only a cached valid value, since an invalid
// one is not known until computed.
func checkConstraint(c Constraint, fv FieldValue) error {
	if c == nil {
		return nil
	}
	if dv, ok := fv.(*DerivedValue); ok {
		if !dv.valid {
			return nil
		}
		return c.Check(dv.cached)
	}
	v, err := fv.Value()
	if err != nil {
		return err
	}
	return c.Check(v)
}
