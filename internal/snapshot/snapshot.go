// Package snapshot serializes catalog trees to JSON and rebuilds them. A
// document stores a node without its parent, so any subtree can be framed;
// restore yields a detached root for the caller to reattach.
//
// Observed values serialize as cty value/type pairs keyed by source name.
// Live derived values have no stored form: schema-declared derived fields
// record only their position and are rebuilt from the schema recipe, and
// any other derived value either fails the snapshot or is dropped,
// depending on the codec's policy.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/zjrosen/fieldcat/internal/catalog"
	"github.com/zjrosen/fieldcat/internal/log"
	"github.com/zjrosen/fieldcat/internal/schema"
)

// ErrDerivedNotStorable is returned under DerivedFail when a snapshot
// reaches a derived value that no schema recipe can rebuild.
var ErrDerivedNotStorable = errors.New("derived value has no stored form")

// ErrUnknownKind is returned when a document names a node kind this codec
// does not know.
var ErrUnknownKind = errors.New("unknown node kind in document")

// DerivedPolicy selects what Marshal does with derived values that cannot
// be rebuilt from a schema recipe.
type DerivedPolicy int

const (
	// DerivedFail aborts the snapshot.
	DerivedFail DerivedPolicy = iota
	// DerivedDrop omits the value with a logged diagnostic.
	DerivedDrop
)

const (
	kindCatalog = "catalog"
	kindNode    = "node"
)

type valueDoc struct {
	Source string          `json:"source"`
	Type   json.RawMessage `json:"type"`
	Value  json.RawMessage `json:"value"`
}

type fieldDoc struct {
	Name string `json:"name"`
	// Values holds the observed entries in their stored order.
	Values []valueDoc `json:"values"`
	// DerivedAt lists the value-list positions of recipe-built derived
	// entries, to be re-created on restore.
	DerivedAt []int `json:"derivedAt,omitempty"`
}

type nodeDoc struct {
	ID       string     `json:"id"`
	Kind     string     `json:"kind"`
	Name     string     `json:"name,omitempty"`
	Type     string     `json:"type,omitempty"`
	Fields   []fieldDoc `json:"fields,omitempty"`
	Children []nodeDoc  `json:"children,omitempty"`
}

// Codec marshals and restores catalog trees. The schema registry supplies
// constraints and derivation recipes for typed nodes.
type Codec struct {
	registry *schema.Registry
	policy   DerivedPolicy
}

// Option configures a Codec.
type Option func(*Codec)

// WithDerivedPolicy sets the handling of underivable derived values.
func WithDerivedPolicy(p DerivedPolicy) Option {
	return func(c *Codec) { c.policy = p }
}

// NewCodec creates a codec backed by reg. A nil registry restores every
// node as untyped and makes all derived values unstorable.
func NewCodec(reg *schema.Registry, opts ...Option) *Codec {
	c := &Codec{registry: reg}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MarshalOption configures one Marshal call.
type MarshalOption func(*marshalConfig)

type marshalConfig struct {
	withoutChildren bool
}

// WithoutChildren frames only the node itself, excluding its subtree.
func WithoutChildren() MarshalOption {
	return func(c *marshalConfig) { c.withoutChildren = true }
}

// Marshal serializes the subtree rooted at n.
func (c *Codec) Marshal(n catalog.Node, opts ...MarshalOption) ([]byte, error) {
	var cfg marshalConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	doc, err := c.encodeNode(n, !cfg.withoutChildren)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}

func (c *Codec) encodeNode(n catalog.Node, withChildren bool) (nodeDoc, error) {
	doc := nodeDoc{ID: n.ID().String()}

	switch t := n.(type) {
	case *catalog.Catalog:
		doc.Kind = kindCatalog
		doc.Name = t.Name()
	case *catalog.FieldNode:
		doc.Kind = kindNode
		doc.Type = t.TypeName()
		var s *schema.Schema
		if t.TypeName() != "" && c.registry != nil {
			s, _ = c.registry.Get(t.TypeName())
		}
		for _, f := range t.Fields() {
			fd, err := c.encodeField(f, s)
			if err != nil {
				return nodeDoc{}, err
			}
			doc.Fields = append(doc.Fields, fd)
		}
	default:
		return nodeDoc{}, fmt.Errorf("%w: %T", ErrUnknownKind, n)
	}

	if withChildren {
		for _, child := range n.Children() {
			childDoc, err := c.encodeNode(child, true)
			if err != nil {
				return nodeDoc{}, err
			}
			doc.Children = append(doc.Children, childDoc)
		}
	}
	return doc, nil
}

func (c *Codec) encodeField(f *catalog.Field, s *schema.Schema) (fieldDoc, error) {
	fd := fieldDoc{Name: f.Name(), Values: []valueDoc{}}
	declared := s != nil && s.IsDerived(f.Name())

	for i := 0; i < f.Len(); i++ {
		fv, err := f.At(i)
		if err != nil {
			return fieldDoc{}, err
		}
		if _, ok := fv.(*catalog.DerivedValue); ok {
			if declared {
				fd.DerivedAt = append(fd.DerivedAt, i)
				continue
			}
			if c.policy == DerivedDrop {
				log.Warn(log.CatSnapshot, "dropping underivable derived value",
					"field", f.Name(), "source", fv.Source().Name())
				continue
			}
			return fieldDoc{}, fmt.Errorf("field %q value %d: %w", f.Name(), i, ErrDerivedNotStorable)
		}

		vd, err := encodeValue(fv)
		if err != nil {
			return fieldDoc{}, fmt.Errorf("field %q value %d: %w", f.Name(), i, err)
		}
		fd.Values = append(fd.Values, vd)
	}
	return fd, nil
}

func encodeValue(fv catalog.FieldValue) (valueDoc, error) {
	v, err := fv.Value()
	if err != nil {
		return valueDoc{}, err
	}
	ty := v.Type()
	rawType, err := ctyjson.MarshalType(ty)
	if err != nil {
		return valueDoc{}, err
	}
	rawValue, err := ctyjson.Marshal(v, ty)
	if err != nil {
		return valueDoc{}, err
	}
	return valueDoc{Source: fv.Source().Name(), Type: rawType, Value: rawValue}, nil
}

// Restore rebuilds the tree a document describes. The returned root is
// detached; derived fields of typed nodes are rebuilt from their schema
// recipes at their stored positions, clamped when the stored index is
// stale.
func (c *Codec) Restore(data []byte) (catalog.Node, error) {
	var doc nodeDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	return c.decodeNode(&doc, nil)
}

func (c *Codec) decodeNode(doc *nodeDoc, parent catalog.Node) (catalog.Node, error) {
	var node catalog.Node

	switch doc.Kind {
	case kindCatalog:
		if parent != nil {
			return nil, fmt.Errorf("catalog %q appears below the document root", doc.Name)
		}
		node = catalog.NewCatalog(doc.Name)

	case kindNode:
		fn := catalog.NewFieldNode(parent)
		var s *schema.Schema
		if doc.Type != "" && c.registry != nil {
			s, _ = c.registry.Get(doc.Type)
			if s == nil {
				log.Warn(log.CatSnapshot, "restoring node of unregistered type", "type", doc.Type)
			}
		}
		for i := range doc.Fields {
			if err := c.decodeField(fn, &doc.Fields[i], s); err != nil {
				return nil, err
			}
		}
		fn.SetTypeName(doc.Type)
		node = fn

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, doc.Kind)
	}

	for i := range doc.Children {
		if _, err := c.decodeNode(&doc.Children[i], node); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (c *Codec) decodeField(fn *catalog.FieldNode, fd *fieldDoc, s *schema.Schema) error {
	var constraint catalog.Constraint
	if s != nil {
		constraint = s.Constraint(fd.Name)
	}
	f := catalog.NewField(fd.Name, catalog.WithConstraint(constraint))
	if err := fn.AddField(f); err != nil {
		return err
	}

	for _, vd := range fd.Values {
		v, err := decodeValue(&vd)
		if err != nil {
			return fmt.Errorf("field %q source %q: %w", fd.Name, vd.Source, err)
		}
		if err := f.Add(catalog.NewObserved(v, catalog.NewSource(vd.Source))); err != nil {
			return fmt.Errorf("field %q source %q: %w", fd.Name, vd.Source, err)
		}
	}

	var recipe *schema.Recipe
	if s != nil {
		recipe = s.Recipe(fd.Name)
	}
	for _, at := range fd.DerivedAt {
		if recipe == nil {
			log.Warn(log.CatSnapshot, "stored derived entry has no recipe, skipping",
				"field", fd.Name)
			continue
		}
		dv, err := schema.BuildDerived(recipe, nil)
		if err != nil {
			return fmt.Errorf("field %q recipe: %w", fd.Name, err)
		}
		// Clamp a stale stored position to the end of the list.
		if at < 0 || at > f.Len() {
			at = f.Len()
		}
		if err := f.Insert(at, dv); err != nil {
			return fmt.Errorf("field %q recipe: %w", fd.Name, err)
		}
	}
	return nil
}

func decodeValue(vd *valueDoc) (cty.Value, error) {
	ty, err := ctyjson.UnmarshalType(vd.Type)
	if err != nil {
		return cty.NilVal, err
	}
	return ctyjson.Unmarshal(vd.Value, ty)
}
