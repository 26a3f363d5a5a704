package catalog

import "fmt"

type orderKind int

const (
	orderAt orderKind = iota
	orderFraction
	orderLevel
)

// Order selects the traversal order for Walk.
type Order struct {
	kind orderKind
	at   int
	frac float64
}

// Preorder visits each node before its children.
var Preorder = Order{kind: orderAt, at: 0}

// Postorder visits each node after its children.
var Postorder = Order{kind: orderAt, at: -1}

// Level visits nodes breadth-first.
var Level = Order{kind: orderLevel}

// RootAt visits each node at position k among its children; 0 is preorder
// and any k past the child count (or negative) degenerates to postorder.
func RootAt(k int) Order {
	return Order{kind: orderAt, at: k}
}

// RootFraction visits each node at the fractional position f in [-1, 1]
// scaled to its child count; 0 and -1 are the pre/post special cases.
func RootFraction(f float64) Order {
	return Order{kind: orderFraction, frac: f}
}

// VisitFunc produces a result for one visited node.
type VisitFunc func(Node) any

type walkConfig struct {
	pred    func(Node) bool
	drop    any
	hasDrop bool
	hasPred bool
}

// WalkOption configures filtering for Walk.
type WalkOption func(*walkConfig)

// WithFilter suppresses visiting nodes for which pred returns false: the
// visit function is not called and no result is collected, but the node's
// subtree is still traversed.
func WithFilter(pred func(Node) bool) WalkOption {
	return func(c *walkConfig) {
		c.pred = pred
		c.hasPred = true
	}
}

// WithDrop removes results equal to sentinel from the returned sequence.
// The sentinel must be comparable.
func WithDrop(sentinel any) WalkOption {
	return func(c *walkConfig) {
		c.drop = sentinel
		c.hasDrop = true
	}
}

// Walk traverses the subtree rooted at n in the given order, collecting
// visit results.
func Walk(n Node, order Order, visit VisitFunc, opts ...WalkOption) ([]any, error) {
	var cfg walkConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if order.kind == orderFraction && (order.frac < -1 || order.frac > 1) {
		return nil, fmt.Errorf("root fraction %v outside [-1, 1]", order.frac)
	}

	apply := func(results []any, node Node) []any {
		if cfg.hasPred && !cfg.pred(node) {
			return results
		}
		return append(results, visit(node))
	}

	var results []any
	if order.kind == orderLevel {
		queue := []Node{n}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			results = apply(results, cur)
			queue = append(queue, cur.base().children...)
		}
	} else {
		results = walkOrdered(n, order, apply, nil)
	}

	if cfg.hasDrop {
		kept := results[:0]
		for _, r := range results {
			if r != cfg.drop {
				kept = append(kept, r)
			}
		}
		results = kept
	}
	return results, nil
}

// walkOrdered handles the root-at-position family, which covers pre- and
// postorder as its 0 and -1 cases.
func walkOrdered(n Node, order Order, apply func([]any, Node) []any, results []any) []any {
	children := n.base().children

	at := order.at
	if order.kind == orderFraction {
		at = int(order.frac * float64(len(children)))
		if order.frac < 0 {
			at = -1
		}
	}

	visited := false
	for i, c := range children {
		if i == at {
			results = apply(results, n)
			visited = true
		}
		results = walkOrdered(c, order, apply, results)
	}
	if !visited {
		results = apply(results, n)
	}
	return results
}
