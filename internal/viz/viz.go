// Package viz renders catalog trees for humans: an ASCII tree for the
// terminal and DOT output for graph tooling. Rendering reads the tree
// through the public node surface only; it never mutates.
package viz

import (
	"fmt"
	"io"
	"strings"

	"github.com/xlab/treeprint"
	"github.com/zclconf/go-cty/cty"

	"github.com/zjrosen/fieldcat/internal/catalog"
)

// NodeLabel renders the display label of a node: a catalog by name, a field
// container by its type name (or "node") with a record of its current field
// values.
func NodeLabel(n catalog.Node) string {
	switch t := n.(type) {
	case *catalog.Catalog:
		return "catalog " + t.Name()
	case *catalog.FieldNode:
		head := t.TypeName()
		if head == "" {
			head = "node"
		}
		fields := fieldSummary(t)
		if fields == "" {
			return head
		}
		return head + " {" + fields + "}"
	default:
		return fmt.Sprintf("%T", n)
	}
}

// IsFieldContainer reports whether the node holds fields.
func IsFieldContainer(n catalog.Node) bool {
	_, ok := n.(*catalog.FieldNode)
	return ok
}

func fieldSummary(n *catalog.FieldNode) string {
	parts := make([]string, 0, n.NumFields())
	for _, name := range n.FieldNames() {
		v, err := n.StrictValue(name)
		switch {
		case err != nil:
			parts = append(parts, name+"=?")
		case v.IsNull():
			parts = append(parts, name+"=null")
		default:
			parts = append(parts, name+"="+valueText(v))
		}
	}
	return strings.Join(parts, ", ")
}

func valueText(v cty.Value) string {
	ty := v.Type()
	switch {
	case ty.Equals(cty.String):
		return fmt.Sprintf("%q", v.AsString())
	case ty.Equals(cty.Number):
		return v.AsBigFloat().Text('g', 6)
	case ty.Equals(cty.Bool):
		if v.True() {
			return "true"
		}
		return "false"
	case ty.IsListType() || ty.IsSetType() || ty.IsTupleType():
		return fmt.Sprintf("[%d]", v.LengthInt())
	default:
		return ty.FriendlyName()
	}
}

// Render returns an ASCII tree of the subtree rooted at n.
func Render(n catalog.Node) string {
	tree := treeprint.NewWithRoot(NodeLabel(n))
	addChildren(tree, n)
	return tree.String()
}

func addChildren(branch treeprint.Tree, n catalog.Node) {
	for _, child := range n.Children() {
		if child.Count() == 1 {
			branch.AddNode(NodeLabel(child))
			continue
		}
		addChildren(branch.AddBranch(NodeLabel(child)), child)
	}
}

// WriteDOT writes the subtree rooted at n as a DOT digraph. Nodes are keyed
// by their stable IDs, so repeated exports of the same tree diff cleanly.
func WriteDOT(w io.Writer, n catalog.Node, graphName string) error {
	if graphName == "" {
		graphName = "catalog"
	}
	if _, err := fmt.Fprintf(w, "digraph %q {\n  rankdir=TB;\n", graphName); err != nil {
		return err
	}

	var writeErr error
	emit := func(format string, args ...any) {
		if writeErr != nil {
			return
		}
		_, writeErr = fmt.Fprintf(w, format, args...)
	}

	_, err := catalog.Walk(n, catalog.Preorder, func(node catalog.Node) any {
		shape := "ellipse"
		if IsFieldContainer(node) {
			shape = "box"
		}
		emit("  %q [label=%q, shape=%s];\n", node.ID().String(), NodeLabel(node), shape)
		for _, child := range node.Children() {
			emit("  %q -> %q;\n", node.ID().String(), child.ID().String())
		}
		return nil
	})
	if err != nil {
		return err
	}
	if writeErr != nil {
		return writeErr
	}

	_, err = fmt.Fprintln(w, "}")
	return err
}
