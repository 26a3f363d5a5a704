package viz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/zjrosen/fieldcat/internal/catalog"
	"github.com/zjrosen/fieldcat/internal/testutil"
)

func sampleTree(t *testing.T) *catalog.Catalog {
	t.Helper()
	b := testutil.NewTree(t, "survey")

	galaxy := b.Node(b.Root(), "galaxy")
	b.Observe(galaxy, "name", "viz-a", cty.StringVal("M87"))

	star := b.Node(galaxy, "")
	b.Observe(star, "mass", "viz-a", cty.NumberFloatVal(2.5))
	b.FieldOf(star, "radius")

	return b.Root()
}

func TestNodeLabel(t *testing.T) {
	root := sampleTree(t)
	galaxy := root.Children()[0].(*catalog.FieldNode)
	star := galaxy.Children()[0].(*catalog.FieldNode)

	assert.Equal(t, "catalog survey", NodeLabel(root))
	assert.Equal(t, `galaxy {name="M87"}`, NodeLabel(galaxy))
	assert.Equal(t, "node {mass=2.5, radius=?}", NodeLabel(star))
}

func TestIsFieldContainer(t *testing.T) {
	root := sampleTree(t)
	assert.False(t, IsFieldContainer(root))
	assert.True(t, IsFieldContainer(root.Children()[0]))
}

func TestRender(t *testing.T) {
	out := Render(sampleTree(t))

	assert.Contains(t, out, "catalog survey")
	assert.Contains(t, out, `galaxy {name="M87"}`)
	assert.Contains(t, out, "mass=2.5")
	// Every node appears exactly once.
	assert.Equal(t, 1, strings.Count(out, "galaxy {"))
}

func TestWriteDOT(t *testing.T) {
	root := sampleTree(t)
	var buf strings.Builder
	require.NoError(t, WriteDOT(&buf, root, "survey"))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, `digraph "survey" {`))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "}"))

	// One declaration per node, keyed by ID, and one edge per child link.
	galaxy := root.Children()[0]
	star := galaxy.Children()[0]
	assert.Contains(t, out, root.ID().String())
	assert.Contains(t, out, galaxy.ID().String())
	assert.Contains(t, out, star.ID().String())
	assert.Equal(t, 2, strings.Count(out, "->"))
	assert.Contains(t, out, "shape=ellipse", "catalog roots are ellipses")
	assert.Contains(t, out, "shape=box")
}

func TestWriteDOT_DefaultName(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, WriteDOT(&buf, catalog.NewCatalog("x"), ""))
	assert.Contains(t, buf.String(), `digraph "catalog"`)
}
