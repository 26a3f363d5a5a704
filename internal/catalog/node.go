package catalog

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Node is a tree element: an ordered sequence of owned children and one
// non-owning reference to a parent. Concrete implementations are Catalog
// (a named root) and FieldNode (a field container).
type Node interface {
	// ID is a stable identity for the node, used by snapshots and exports.
	ID() uuid.UUID
	// Parent returns the owning node, or nil at a root.
	Parent() Node
	// Children returns the ordered children as a copy.
	Children() []Node
	// Count returns the number of nodes in the subtree including the
	// receiver; a leaf counts 1.
	Count() int

	base() *treeNode
}

// treeNode carries the tree structure shared by all node kinds. The self
// reference holds the outer Node so the base can place the full value in
// parent child lists.
type treeNode struct {
	id       uuid.UUID
	self     Node
	parent   Node
	children []Node
	rootOnly bool
}

func (t *treeNode) init(self Node) {
	t.id = uuid.New()
	t.self = self
}

func (t *treeNode) base() *treeNode { return t }

// ID returns the node's stable identity.
func (t *treeNode) ID() uuid.UUID { return t.id }

// Parent returns the owning node, or nil at a root.
func (t *treeNode) Parent() Node { return t.parent }

// Children returns the ordered children as a copy.
func (t *treeNode) Children() []Node {
	return slices.Clone(t.children)
}

// NumChildren returns the number of direct children.
func (t *treeNode) NumChildren() int { return len(t.children) }

// Count returns the subtree size including the receiver.
func (t *treeNode) Count() int {
	n := 1
	for _, c := range t.children {
		n += c.Count()
	}
	return n
}

// SetParent moves node under newParent, appending it to the new parent's
// child list. A nil newParent detaches the node, orphaning its subtree under
// the caller's control. Fails with ErrCycle when newParent is node itself or
// one of its descendants; on any failure the tree is unchanged.
func SetParent(node, newParent Node) error {
	b := node.base()

	if newParent != nil {
		if b.rootOnly {
			return fmt.Errorf("catalog root cannot be given a parent")
		}
		for anc := newParent; anc != nil; anc = anc.Parent() {
			if anc == node {
				return fmt.Errorf("%w: %v is a descendant of the node being moved", ErrCycle, newParent.ID())
			}
		}
	}

	if b.parent != nil {
		pb := b.parent.base()
		for i, c := range pb.children {
			if c == node {
				pb.children = slices.Delete(pb.children, i, i+1)
				break
			}
		}
	}
	b.parent = newParent
	if newParent != nil {
		nb := newParent.base()
		nb.children = append(nb.children, node)
	}
	return nil
}

// ReorderChildren permutes the child list. perm must contain each index in
// [0, len) exactly once; a malformed permutation fails without partially
// applying.
func (t *treeNode) ReorderChildren(perm []int) error {
	if len(perm) != len(t.children) {
		return fmt.Errorf("permutation has %d entries for %d children", len(perm), len(t.children))
	}
	seen := make([]bool, len(perm))
	ordered := make([]Node, 0, len(perm))
	for _, i := range perm {
		if i < 0 || i >= len(t.children) {
			return fmt.Errorf("permutation index %d out of range", i)
		}
		if seen[i] {
			return fmt.Errorf("permutation repeats index %d", i)
		}
		seen[i] = true
		ordered = append(ordered, t.children[i])
	}
	t.children = ordered
	return nil
}

// ReverseChildren reverses the child order in place.
func (t *treeNode) ReverseChildren() {
	slices.Reverse(t.children)
}

// SortChildren reorders the children by a three-way comparator. The sort is
// stable.
func (t *treeNode) SortChildren(cmp func(a, b Node) int) {
	slices.SortStableFunc(t.children, cmp)
}
