package catalog

import (
	"errors"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/zjrosen/fieldcat/internal/log"
)

// FieldNode is a tree node owning a named, ordered set of Fields. Insertion
// order is significant: positional access and cross-tree extraction follow
// it.
type FieldNode struct {
	treeNode
	fieldNames []string
	fields     map[string]*Field
	typeName   string
	altered    bool
}

// NewFieldNode creates a container attached under parent; a nil parent
// leaves it detached.
func NewFieldNode(parent Node) *FieldNode {
	n := &FieldNode{fields: make(map[string]*Field)}
	n.init(n)
	if parent != nil {
		// A fresh node has no descendants, so attachment cannot cycle.
		_ = SetParent(n, parent)
	}
	return n
}

// TypeName returns the schema type this node was instantiated from, or ""
// for an ad hoc container.
func (n *FieldNode) TypeName() string { return n.typeName }

// SetTypeName records the schema type of the node. Used by schema
// instantiation and snapshot restore.
func (n *FieldNode) SetTypeName(name string) { n.typeName = name }

// Altered reports whether the field set no longer matches the node's schema
// declaration. It stays set even if the offending fields are restored by
// hand.
func (n *FieldNode) Altered() bool { return n.altered }

// ResetAltered clears the altered flag after a schema revert.
func (n *FieldNode) ResetAltered() { n.altered = false }

// AddField attaches a detached field to this container. Fails when the
// field is owned elsewhere or its name collides.
func (n *FieldNode) AddField(f *Field) error {
	if f.node != nil {
		return fmt.Errorf("field %q owned by another node: %w", f.name, ErrDuplicateOwner)
	}
	if _, exists := n.fields[f.name]; exists {
		return fmt.Errorf("field name %q already present: %w", f.name, ErrDuplicateOwner)
	}
	n.fields[f.name] = f
	n.fieldNames = append(n.fieldNames, f.name)
	f.setNode(n)
	if n.typeName != "" {
		n.altered = true
	}
	log.Debug(log.CatField, "field attached", "field", f.name, "node", n.ID())
	return nil
}

// DelField detaches the named field. Its subtree of dependents sees a dead
// reference and re-resolves on the next read.
func (n *FieldNode) DelField(name string) error {
	f, ok := n.fields[name]
	if !ok {
		return fmt.Errorf("field %q: %w", name, ErrFieldNotFound)
	}
	delete(n.fields, name)
	for i, fn := range n.fieldNames {
		if fn == name {
			n.fieldNames = append(n.fieldNames[:i], n.fieldNames[i+1:]...)
			break
		}
	}
	f.setNode(nil)
	if n.typeName != "" {
		n.altered = true
	}
	return nil
}

// Field returns the named field.
func (n *FieldNode) Field(name string) (*Field, error) {
	f, ok := n.fields[name]
	if !ok {
		return nil, fmt.Errorf("field %q: %w", name, ErrFieldNotFound)
	}
	return f, nil
}

// FieldAt returns the field at position i in insertion order.
func (n *FieldNode) FieldAt(i int) (*Field, error) {
	if i < 0 || i >= len(n.fieldNames) {
		return nil, fmt.Errorf("field position %d: %w", i, ErrFieldNotFound)
	}
	return n.fields[n.fieldNames[i]], nil
}

// HasField reports whether the named field exists.
func (n *FieldNode) HasField(name string) bool {
	_, ok := n.fields[name]
	return ok
}

// NumFields returns the number of fields.
func (n *FieldNode) NumFields() int { return len(n.fieldNames) }

// FieldNames returns the field names in insertion order.
func (n *FieldNode) FieldNames() []string {
	out := make([]string, len(n.fieldNames))
	copy(out, n.fieldNames)
	return out
}

// Fields returns the Field objects themselves in insertion order, for
// introspection; value access goes through Value / ValueAt.
func (n *FieldNode) Fields() []*Field {
	out := make([]*Field, len(n.fieldNames))
	for i, name := range n.fieldNames {
		out[i] = n.fields[name]
	}
	return out
}

// Value returns the named field's current value. An empty field yields
// cty.NilVal rather than an error; a missing field fails.
func (n *FieldNode) Value(name string) (cty.Value, error) {
	f, err := n.Field(name)
	if err != nil {
		return cty.NilVal, err
	}
	v, err := f.CurrentValue()
	if errors.Is(err, ErrEmptyField) {
		return cty.NilVal, nil
	}
	return v, err
}

// ValueAt returns the current value of the field at position i, with the
// same empty-field behavior as Value.
func (n *FieldNode) ValueAt(i int) (cty.Value, error) {
	f, err := n.FieldAt(i)
	if err != nil {
		return cty.NilVal, err
	}
	v, err := f.CurrentValue()
	if errors.Is(err, ErrEmptyField) {
		return cty.NilVal, nil
	}
	return v, err
}

// StrictValue returns the named field's current value, propagating the
// empty-field error.
func (n *FieldNode) StrictValue(name string) (cty.Value, error) {
	f, err := n.Field(name)
	if err != nil {
		return cty.NilVal, err
	}
	return f.CurrentValue()
}

func (n *FieldNode) String() string {
	return fmt.Sprintf("FieldNode with fields %v", n.fieldNames)
}

// MissingPolicy selects extraction behavior at nodes lacking the field, or
// that are not field containers at all.
type MissingPolicy int

const (
	// MissingFail aborts extraction at the first node without the field.
	MissingFail MissingPolicy = iota
	// MissingSkip drops such nodes from the result.
	MissingSkip
	// MissingNull substitutes a null value.
	MissingNull
)

// ExtractField walks the subtree rooted at n in the given order, collecting
// each visited container's current value for the named field. When this
// node's field declares a concrete type, collected values are converted to
// it so the result is homogeneous.
func (n *FieldNode) ExtractField(name string, order Order, missing MissingPolicy) ([]cty.Value, error) {
	elemTy := cty.DynamicPseudoType
	if f, ok := n.fields[name]; ok {
		if tc, ok := f.constraint.(typeConstraint); ok {
			elemTy = tc.ty
		}
	}

	type extracted struct {
		val  cty.Value
		err  error
		skip bool
	}

	visit := func(node Node) any {
		fn, ok := node.(*FieldNode)
		if !ok || !fn.HasField(name) {
			switch missing {
			case MissingSkip:
				return extracted{skip: true}
			case MissingNull:
				return extracted{val: cty.NullVal(elemTy)}
			default:
				return extracted{err: fmt.Errorf("node %v: field %q: %w", node.ID(), name, ErrFieldNotFound)}
			}
		}
		f := fn.fields[name]
		v, err := f.CurrentValue()
		if errors.Is(err, ErrEmptyField) {
			return extracted{val: cty.NullVal(elemTy)}
		}
		if err != nil {
			return extracted{err: fmt.Errorf("node %v: %w", node.ID(), err)}
		}
		return extracted{val: v}
	}

	results, err := Walk(n, order, visit)
	if err != nil {
		return nil, err
	}

	out := make([]cty.Value, 0, len(results))
	for _, r := range results {
		ex := r.(extracted)
		if ex.err != nil {
			return nil, ex.err
		}
		if ex.skip {
			continue
		}
		v := ex.val
		if !elemTy.Equals(cty.DynamicPseudoType) && !v.IsNull() && !v.Type().Equals(elemTy) {
			conv, err := convert.Convert(v, elemTy)
			if err != nil {
				return nil, fmt.Errorf("field %q: converting extracted value: %w", name, err)
			}
			v = conv
		}
		out = append(out, v)
	}
	return out, nil
}
