package schema

import (
	"errors"
	"fmt"

	"github.com/zjrosen/fieldcat/internal/catalog"
	"github.com/zjrosen/fieldcat/internal/log"
)

// Registry errors
var (
	ErrUnknownType   = errors.New("entity type not registered")
	ErrDuplicateType = errors.New("entity type already registered")
	ErrNilSchema     = errors.New("schema cannot be nil")
	ErrUntypedNode   = errors.New("node carries no entity type")
)

// Registry maps entity type names to their schemas.
type Registry struct {
	byName map[string]*Schema
	names  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Schema)}
}

// Register adds a schema to the registry.
func (r *Registry) Register(s *Schema) error {
	if s == nil {
		return ErrNilSchema
	}
	if _, exists := r.byName[s.name]; exists {
		return fmt.Errorf("type %q: %w", s.name, ErrDuplicateType)
	}
	r.byName[s.name] = s
	r.names = append(r.names, s.name)
	log.Debug(log.CatSchema, "registered entity type", "type", s.name, "fields", len(s.specs))
	return nil
}

// Get returns the schema for the named entity type.
func (r *Registry) Get(name string) (*Schema, error) {
	s, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("type %q: %w", name, ErrUnknownType)
	}
	return s, nil
}

// TypeNames returns the registered type names in registration order.
func (r *Registry) TypeNames() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Instantiate constructs a node of the named type under parent: one field
// per declaration, defaults recorded, recipe fields holding fresh derived
// values whose path origin is the new node.
func (r *Registry) Instantiate(name string, parent catalog.Node) (*catalog.FieldNode, error) {
	s, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	node := catalog.NewFieldNode(parent)
	for _, spec := range s.specs {
		if err := addDeclaredField(node, spec); err != nil {
			return nil, fmt.Errorf("instantiating %q: %w", name, err)
		}
	}

	// The type name is stamped last so declaration-time AddField calls do
	// not count as alterations.
	node.SetTypeName(s.name)
	return node, nil
}

// Revert restores a node to its declared shape: undeclared fields are
// removed, missing declared fields are rebuilt. Declared fields that still
// exist keep their accumulated values.
func (r *Registry) Revert(node *catalog.FieldNode) error {
	if node.TypeName() == "" {
		return ErrUntypedNode
	}
	s, err := r.Get(node.TypeName())
	if err != nil {
		return err
	}

	for _, name := range node.FieldNames() {
		if !s.HasField(name) {
			if err := node.DelField(name); err != nil {
				return err
			}
			log.Debug(log.CatSchema, "revert removed field", "type", s.name, "field", name)
		}
	}
	for _, spec := range s.specs {
		if node.HasField(spec.name) {
			continue
		}
		if err := addDeclaredField(node, spec); err != nil {
			return fmt.Errorf("reverting %q: %w", s.name, err)
		}
		log.Debug(log.CatSchema, "revert rebuilt field", "type", s.name, "field", spec.name)
	}

	node.ResetAltered()
	return nil
}

// BuildDerived constructs a derived value from a recipe. The caller attaches
// it to a field; the path origin follows the owning container unless node is
// given.
func BuildDerived(recipe *Recipe, node catalog.Node) (*catalog.DerivedValue, error) {
	deps := make([]catalog.Dep, len(recipe.Deps))
	for i, path := range recipe.Deps {
		deps[i] = catalog.DepPath(path)
	}
	opts := []catalog.DerivedOption{catalog.WithPolicy(recipe.Policy)}
	if node != nil {
		opts = append(opts, catalog.WithPathNode(node))
	}
	return catalog.NewDerived(recipe.Fn, deps, opts...)
}

func addDeclaredField(node *catalog.FieldNode, spec fieldSpec) error {
	f := catalog.NewField(spec.name, catalog.WithConstraint(spec.constraint))
	if err := node.AddField(f); err != nil {
		return err
	}
	if spec.hasDefault {
		if err := f.SetDefault(spec.def); err != nil {
			return fmt.Errorf("field %q default: %w", spec.name, err)
		}
	}
	if spec.recipe != nil {
		dv, err := BuildDerived(spec.recipe, nil)
		if err != nil {
			return fmt.Errorf("field %q recipe: %w", spec.name, err)
		}
		if err := f.Add(dv); err != nil {
			return fmt.Errorf("field %q recipe: %w", spec.name, err)
		}
	}
	return nil
}
