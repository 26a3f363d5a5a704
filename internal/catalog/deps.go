package catalog

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/zjrosen/fieldcat/internal/fieldpath"
	"github.com/zjrosen/fieldcat/internal/log"
	"github.com/zjrosen/fieldcat/internal/notify"
)

// Dep declares one input of a derived value: either a direct field handle or
// a path expression resolved lazily against the owner's tree location.
type Dep struct {
	field *Field
	path  string
}

// DepField declares a dependency on a field held by handle.
func DepField(f *Field) Dep { return Dep{field: f} }

// DepPath declares a dependency on the field a path expression names.
func DepPath(path string) Dep { return Dep{path: path} }

// depSlot is the live state of one declared dependency.
type depSlot struct {
	raw  string
	path *fieldpath.Path

	field *Field
	gen   uint64
	sub   *notify.Subscription
}

// resolved reports whether the slot currently holds a live field reference.
// A generation bump on the target means the field left its container since
// resolution, which kills the reference.
func (s *depSlot) resolved() bool {
	return s.field != nil && s.field.generation == s.gen
}

// drop releases the slot's field reference and change subscription.
func (s *depSlot) drop() {
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
	}
	s.field = nil
	s.gen = 0
}

// DependencySet tracks the declared dependencies of a derived value and
// their current resolution state.
type DependencySet struct {
	slots    []depSlot
	pathNode Node
	onChange func(Change) error
}

func newDependencySet(deps []Dep, pathNode Node, onChange func(Change) error) (*DependencySet, error) {
	ds := &DependencySet{
		slots:    make([]depSlot, 0, len(deps)),
		pathNode: pathNode,
		onChange: onChange,
	}
	for i, d := range deps {
		switch {
		case d.field != nil:
			ds.slots = append(ds.slots, depSlot{field: d.field, gen: d.field.generation})
		case d.path != "":
			p, err := fieldpath.Parse(d.path)
			if err != nil {
				return nil, fmt.Errorf("dependency %d: %w", i, err)
			}
			ds.slots = append(ds.slots, depSlot{raw: d.path, path: p})
		default:
			return nil, fmt.Errorf("dependency %d: empty declaration", i)
		}
	}
	return ds, nil
}

// Len returns the number of declared dependencies.
func (ds *DependencySet) Len() int { return len(ds.slots) }

// Paths returns the raw path expressions of path-declared slots, in
// declaration order, with empty strings for handle-declared slots.
func (ds *DependencySet) Paths() []string {
	out := make([]string, len(ds.slots))
	for i := range ds.slots {
		out[i] = ds.slots[i].raw
	}
	return out
}

// PathNode returns the tree location path expressions resolve against.
func (ds *DependencySet) PathNode() Node { return ds.pathNode }

// SetPathNode changes the resolution origin. Path-declared slots drop their
// resolved references so the next read resolves against the new location;
// handle-declared slots are unaffected.
func (ds *DependencySet) SetPathNode(n Node) {
	ds.pathNode = n
	for i := range ds.slots {
		if ds.slots[i].path != nil {
			ds.slots[i].drop()
		}
	}
}

// PopulateReferences resolves every stale slot. Slots that cannot be
// resolved are reported together in an UnresolvedError; slots that did
// resolve keep their references.
func (ds *DependencySet) PopulateReferences() error {
	var failed []int
	var reasons []string
	for i := range ds.slots {
		if err := ds.resolveSlot(i); err != nil {
			failed = append(failed, i)
			reasons = append(reasons, err.Error())
		}
	}
	if len(failed) > 0 {
		return &UnresolvedError{Indices: failed, Reason: strings.Join(reasons, "; ")}
	}
	return nil
}

func (ds *DependencySet) resolveSlot(i int) error {
	s := &ds.slots[i]
	if s.resolved() {
		if s.sub == nil || s.sub.Closed() {
			s.sub = s.field.OnChange(ds.onChange)
		}
		return nil
	}
	if s.path == nil {
		// Handle-declared slot whose target left its container. There is
		// no path to re-resolve from.
		return fmt.Errorf("field %s detached from its container", s.field.name)
	}
	s.drop()
	f, err := resolvePath(ds.pathNode, s.path)
	if err != nil {
		return fmt.Errorf("path %q: %w", s.raw, err)
	}
	s.field = f
	s.gen = f.generation
	s.sub = f.OnChange(ds.onChange)
	log.Debug(log.CatPath, "resolved dependency path", "path", s.raw, "field", f.name)
	return nil
}

// DependencyValues resolves all slots and returns their current values in
// declaration order.
func (ds *DependencySet) DependencyValues() ([]cty.Value, error) {
	if err := ds.PopulateReferences(); err != nil {
		return nil, err
	}
	vals := make([]cty.Value, len(ds.slots))
	for i := range ds.slots {
		v, err := ds.slots[i].field.CurrentValue()
		if err != nil {
			return nil, fmt.Errorf("dependency %d (%s): %w", i, ds.slots[i].field.name, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// resolvePath walks a parsed path from origin and returns the field it
// names.
func resolvePath(origin Node, p *fieldpath.Path) (*Field, error) {
	if origin == nil {
		return nil, fmt.Errorf("no tree location to resolve from")
	}
	cur := origin
	for _, step := range p.Steps {
		next, err := applyStep(cur, step)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	fn, ok := cur.(*FieldNode)
	if !ok {
		return nil, fmt.Errorf("path target %s holds no fields", describeNode(cur))
	}
	f, ok := fn.fields[p.Field]
	if !ok {
		return nil, fmt.Errorf("field %q: %w", p.Field, ErrFieldNotFound)
	}
	return f, nil
}

func applyStep(n Node, step fieldpath.Step) (Node, error) {
	switch step.Kind {
	case fieldpath.StepUp:
		p := n.Parent()
		if p == nil {
			return nil, fmt.Errorf("no parent above %s", describeNode(n))
		}
		return p, nil
	case fieldpath.StepUpUntil:
		for cur := n.Parent(); cur != nil; cur = cur.Parent() {
			if matchNode(cur, step.Name) {
				return cur, nil
			}
		}
		return nil, fmt.Errorf("no ancestor of %s matches %q", describeNode(n), step.Name)
	case fieldpath.StepChildFirst:
		kids := n.Children()
		if len(kids) == 0 {
			return nil, fmt.Errorf("%s has no children", describeNode(n))
		}
		return kids[0], nil
	case fieldpath.StepChildIndex:
		kids := n.Children()
		if step.Index < 0 || step.Index >= len(kids) {
			return nil, fmt.Errorf("child index %d out of range for %s", step.Index, describeNode(n))
		}
		return kids[step.Index], nil
	case fieldpath.StepChildNamed:
		for _, kid := range n.Children() {
			if matchNode(kid, step.Name) {
				return kid, nil
			}
		}
		return nil, fmt.Errorf("no child of %s matches %q", describeNode(n), step.Name)
	default:
		return nil, fmt.Errorf("unknown path step kind %d", step.Kind)
	}
}

// matchNode reports whether a node answers to name: a catalog root by its
// name, a field container by its registered type name or by the current
// string value of its "name" field.
func matchNode(n Node, name string) bool {
	switch t := n.(type) {
	case *Catalog:
		return t.Name() == name
	case *FieldNode:
		if t.typeName == name {
			return true
		}
		f, ok := t.fields["name"]
		if !ok {
			return false
		}
		v, err := f.CurrentValue()
		if err != nil || !v.Type().Equals(cty.String) || v.IsNull() {
			return false
		}
		return v.AsString() == name
	default:
		return false
	}
}

func describeNode(n Node) string {
	switch t := n.(type) {
	case *Catalog:
		return fmt.Sprintf("catalog %q", t.Name())
	case *FieldNode:
		if t.typeName != "" {
			return fmt.Sprintf("node %q", t.typeName)
		}
		return fmt.Sprintf("node %s", t.ID())
	default:
		return fmt.Sprintf("node %s", n.ID())
	}
}
