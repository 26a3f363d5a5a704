// Package schema declares the field layout of catalog entity types and
// instantiates nodes from those declarations. Registration is explicit:
// nothing is discovered by reflection, a type exists because code built and
// registered a Schema for it.
package schema

import (
	"errors"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/zjrosen/fieldcat/internal/catalog"
)

// Builder errors
var (
	ErrEmptyTypeName  = errors.New("schema type name cannot be empty")
	ErrEmptyFieldName = errors.New("schema field name cannot be empty")
	ErrDuplicateField = errors.New("duplicate field name in schema")
	ErrNilDeriveFunc  = errors.New("derived field requires a function")
)

// Recipe declares how a schema-level derived field computes: path
// expressions for its inputs and the function combining them. Recipes are
// re-invoked on instantiation and on snapshot restore, so Fn must be pure.
type Recipe struct {
	Deps   []string
	Fn     catalog.DeriveFunc
	Policy catalog.FailurePolicy
}

// fieldSpec is one declared field of a schema.
type fieldSpec struct {
	name       string
	constraint catalog.Constraint
	def        cty.Value
	hasDefault bool
	recipe     *Recipe
}

// Schema is the immutable declaration of an entity type's fields.
type Schema struct {
	name  string
	specs []fieldSpec
}

// Name returns the entity type name.
func (s *Schema) Name() string { return s.name }

// FieldNames returns the declared field names in order.
func (s *Schema) FieldNames() []string {
	out := make([]string, len(s.specs))
	for i, spec := range s.specs {
		out[i] = spec.name
	}
	return out
}

// HasField reports whether the schema declares name.
func (s *Schema) HasField(name string) bool {
	return s.spec(name) != nil
}

// IsDerived reports whether the named field carries a recipe.
func (s *Schema) IsDerived(name string) bool {
	spec := s.spec(name)
	return spec != nil && spec.recipe != nil
}

// Recipe returns the named field's derivation recipe, or nil.
func (s *Schema) Recipe(name string) *Recipe {
	spec := s.spec(name)
	if spec == nil {
		return nil
	}
	return spec.recipe
}

// Constraint returns the named field's declared constraint, or nil.
func (s *Schema) Constraint(name string) catalog.Constraint {
	spec := s.spec(name)
	if spec == nil {
		return nil
	}
	return spec.constraint
}

func (s *Schema) spec(name string) *fieldSpec {
	for i := range s.specs {
		if s.specs[i].name == name {
			return &s.specs[i]
		}
	}
	return nil
}

// Builder provides a fluent API for declaring schemas.
type Builder struct {
	name  string
	specs []fieldSpec
	err   error
}

// New starts a schema declaration for the named entity type.
func New(name string) *Builder {
	return &Builder{name: name}
}

// Field declares an observed field. A nil constraint accepts any value.
func (b *Builder) Field(name string, constraint catalog.Constraint) *Builder {
	b.add(fieldSpec{name: name, constraint: constraint})
	return b
}

// FieldWithDefault declares an observed field preloaded with a default
// value under the reserved default source.
func (b *Builder) FieldWithDefault(name string, constraint catalog.Constraint, def cty.Value) *Builder {
	b.add(fieldSpec{name: name, constraint: constraint, def: def, hasDefault: true})
	return b
}

// Derived declares a field holding a recipe-built derived value.
func (b *Builder) Derived(name string, constraint catalog.Constraint, recipe Recipe) *Builder {
	if recipe.Fn == nil {
		b.fail(fmt.Errorf("field %q: %w", name, ErrNilDeriveFunc))
		return b
	}
	r := recipe
	b.add(fieldSpec{name: name, constraint: constraint, recipe: &r})
	return b
}

func (b *Builder) add(spec fieldSpec) {
	if spec.name == "" {
		b.fail(ErrEmptyFieldName)
		return
	}
	for _, existing := range b.specs {
		if existing.name == spec.name {
			b.fail(fmt.Errorf("field %q: %w", spec.name, ErrDuplicateField))
			return
		}
	}
	b.specs = append(b.specs, spec)
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build finalizes the declaration, reporting the first error recorded while
// chaining.
func (b *Builder) Build() (*Schema, error) {
	if b.name == "" {
		return nil, ErrEmptyTypeName
	}
	if b.err != nil {
		return nil, fmt.Errorf("schema %q: %w", b.name, b.err)
	}
	return &Schema{name: b.name, specs: b.specs}, nil
}
