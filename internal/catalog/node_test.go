package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// buildChain creates root -> a -> b -> c and returns all four.
func buildChain(t *testing.T) (*Catalog, *FieldNode, *FieldNode, *FieldNode) {
	t.Helper()
	root := NewCatalog("main")
	a := NewFieldNode(root)
	b := NewFieldNode(a)
	c := NewFieldNode(b)
	return root, a, b, c
}

func TestSetParent_Reparent(t *testing.T) {
	root, a, b, c := buildChain(t)

	require.NoError(t, SetParent(c, a))

	assert.Same(t, a, c.Parent().(*FieldNode))
	assert.Len(t, a.Children(), 2)
	assert.Empty(t, b.Children())
	assert.Equal(t, 4, root.Count())
}

func TestSetParent_Detach(t *testing.T) {
	root, a, b, _ := buildChain(t)

	require.NoError(t, SetParent(b, nil))

	assert.Nil(t, b.Parent())
	assert.Empty(t, a.Children())
	assert.Equal(t, 2, root.Count(), "detached subtree no longer counted")
	assert.Equal(t, 2, b.Count(), "orphan keeps its own subtree")
}

func TestSetParent_CycleRejected(t *testing.T) {
	_, a, _, c := buildChain(t)

	err := SetParent(a, c)
	require.ErrorIs(t, err, ErrCycle)

	// Tree unchanged after the failure.
	assert.Same(t, c.Parent().(*FieldNode), c.Parent().(*FieldNode))
	assert.Len(t, a.Children(), 1)
	assert.NotNil(t, a.Parent())
}

func TestSetParent_SelfCycleRejected(t *testing.T) {
	_, a, _, _ := buildChain(t)
	require.ErrorIs(t, SetParent(a, a), ErrCycle)
}

func TestSetParent_RootOnly(t *testing.T) {
	root := NewCatalog("main")
	other := NewCatalog("other")
	require.Error(t, SetParent(root, other))
}

func TestCount_LeafIsOne(t *testing.T) {
	n := NewFieldNode(nil)
	assert.Equal(t, 1, n.Count())
}

func TestReorderChildren(t *testing.T) {
	root := NewCatalog("main")
	a := NewFieldNode(root)
	b := NewFieldNode(root)
	c := NewFieldNode(root)

	tests := []struct {
		name    string
		perm    []int
		wantErr bool
		want    []Node
	}{
		{"reverse", []int{2, 1, 0}, false, []Node{c, b, a}},
		{"identity", []int{0, 1, 2}, false, []Node{a, b, c}},
		{"wrong length", []int{0, 1}, true, nil},
		{"repeat", []int{0, 0, 1}, true, nil},
		{"out of range", []int{0, 1, 3}, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset to a known order first.
			require.NoError(t, root.ReorderChildren(identityOf(root, a, b, c)))
			before := root.Children()

			err := root.ReorderChildren(tt.perm)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, before, root.Children(), "failed permutation must not partially apply")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, root.Children())
		})
	}
}

func identityOf(root *Catalog, want ...Node) []int {
	kids := root.Children()
	perm := make([]int, len(want))
	for i, w := range want {
		for j, k := range kids {
			if k == w {
				perm[i] = j
			}
		}
	}
	return perm
}

func TestReverseChildren(t *testing.T) {
	root := NewCatalog("main")
	a := NewFieldNode(root)
	b := NewFieldNode(root)
	c := NewFieldNode(root)

	root.ReverseChildren()
	assert.Equal(t, []Node{c, b, a}, root.Children())
}

func TestSortChildren_Stable(t *testing.T) {
	root := NewCatalog("main")
	a := NewFieldNode(root)
	a.SetTypeName("z")
	b := NewFieldNode(root)
	b.SetTypeName("a")
	c := NewFieldNode(root)
	c.SetTypeName("a")

	root.SortChildren(func(x, y Node) int {
		xn, yn := x.(*FieldNode).TypeName(), y.(*FieldNode).TypeName()
		switch {
		case xn < yn:
			return -1
		case xn > yn:
			return 1
		default:
			return 0
		}
	})
	assert.Equal(t, []Node{b, c, a}, root.Children(), "equal keys keep insertion order")
}

func TestChildren_IsACopy(t *testing.T) {
	root := NewCatalog("main")
	NewFieldNode(root)
	kids := root.Children()
	kids[0] = nil
	assert.NotNil(t, root.Children()[0])
}

func TestCount_MatchesRecursiveSum(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		root := NewCatalog("main")
		nodes := []Node{root}

		n := rapid.IntRange(0, 30).Draw(t, "n")
		for i := 0; i < n; i++ {
			parent := nodes[rapid.IntRange(0, len(nodes)-1).Draw(t, "parent")]
			nodes = append(nodes, NewFieldNode(parent))
		}

		for _, node := range nodes {
			want := 1
			for _, c := range node.Children() {
				want += c.Count()
			}
			if node.Count() != want {
				t.Fatalf("Count %d != 1 + children %d", node.Count(), want-1)
			}
		}
		if root.Count() != len(nodes) {
			t.Fatalf("root.Count %d != %d nodes built", root.Count(), len(nodes))
		}
	})
}
