// Package testutil builds catalog trees for tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/zjrosen/fieldcat/internal/catalog"
)

// TreeBuilder assembles a catalog tree with fatal-on-error helpers. Sources
// created through it are released when the test completes, so interned
// identities do not leak across tests.
type TreeBuilder struct {
	t    *testing.T
	root *catalog.Catalog
}

// NewTree creates a builder rooted at a fresh catalog.
func NewTree(t *testing.T, name string) *TreeBuilder {
	t.Helper()
	return &TreeBuilder{t: t, root: catalog.NewCatalog(name)}
}

// Root returns the catalog root.
func (b *TreeBuilder) Root() *catalog.Catalog { return b.root }

// Node attaches a fresh container under parent. An empty typeName leaves
// the node ad hoc.
func (b *TreeBuilder) Node(parent catalog.Node, typeName string) *catalog.FieldNode {
	b.t.Helper()
	n := catalog.NewFieldNode(parent)
	if typeName != "" {
		n.SetTypeName(typeName)
	}
	return n
}

// Observe records a value on the named field of n, creating the field on
// first use. The source is released at test cleanup.
func (b *TreeBuilder) Observe(n *catalog.FieldNode, field, sourceKey string, v cty.Value) *catalog.Field {
	b.t.Helper()
	f := b.FieldOf(n, field)
	require.NoError(b.t, f.Record(sourceKey, v))
	b.t.Cleanup(func() { catalog.ReleaseSource(sourceKey) })
	return f
}

// Derive attaches a derived value computing fn over the given dependency
// paths to the named field of n.
func (b *TreeBuilder) Derive(n *catalog.FieldNode, field string, fn catalog.DeriveFunc, paths ...string) *catalog.DerivedValue {
	b.t.Helper()
	deps := make([]catalog.Dep, len(paths))
	for i, p := range paths {
		deps[i] = catalog.DepPath(p)
	}
	dv, err := catalog.NewDerived(fn, deps)
	require.NoError(b.t, err)
	require.NoError(b.t, b.FieldOf(n, field).Add(dv))
	return dv
}

// FieldOf returns the named field of n, creating it if missing.
func (b *TreeBuilder) FieldOf(n *catalog.FieldNode, name string) *catalog.Field {
	b.t.Helper()
	if n.HasField(name) {
		f, err := n.Field(name)
		require.NoError(b.t, err)
		return f
	}
	f := catalog.NewField(name)
	require.NoError(b.t, n.AddField(f))
	return f
}

// CurrentNumber reads the named field's current value as a float.
func (b *TreeBuilder) CurrentNumber(n *catalog.FieldNode, field string) float64 {
	b.t.Helper()
	v, err := n.StrictValue(field)
	require.NoError(b.t, err)
	f, _ := v.AsBigFloat().Float64()
	return f
}
