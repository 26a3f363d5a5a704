package catalog

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/zjrosen/fieldcat/internal/log"
	"github.com/zjrosen/fieldcat/internal/notify"
)

// Change describes a pending write to a field's current slot. Subscribers
// run synchronously before the write commits, so reading the field inside a
// callback still observes the old state. Old is nil when the field was
// empty; New is nil when the last value is being removed.
type Change struct {
	Field *Field
	Old   FieldValue
	New   FieldValue

	guard *cycleGuard
}

// Field is an ordered, source-keyed set of values for one attribute of a
// FieldNode. Index 0 is the "current" value. At most one value per distinct
// Source is held unless a mutation explicitly bypasses the check.
type Field struct {
	name       string
	constraint Constraint
	vals       []FieldValue
	node       *FieldNode
	generation uint64
	signal     notify.Signal[Change]
}

// FieldOption configures a new Field.
type FieldOption func(*Field)

// WithConstraint sets the field's type constraint.
func WithConstraint(c Constraint) FieldOption {
	return func(f *Field) { f.constraint = c }
}

// NewField creates a detached field. Attach it to a container with AddField.
func NewField(name string, opts ...FieldOption) *Field {
	f := &Field{name: name}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns the field name.
func (f *Field) Name() string { return f.name }

// Node returns the owning container, or nil while detached.
func (f *Field) Node() *FieldNode { return f.node }

// Len returns the number of stored values.
func (f *Field) Len() int { return len(f.vals) }

// Constraint returns the type constraint, or nil.
func (f *Field) Constraint() Constraint { return f.constraint }

// SetConstraint replaces the type constraint after validating every stored
// value against it. Derived values without a cached result are exempt until
// computed.
func (f *Field) SetConstraint(c Constraint) error {
	if c != nil {
		for _, v := range f.vals {
			if err := checkConstraint(c, v); err != nil {
				return fmt.Errorf("field %q: %w", f.name, err)
			}
		}
	}
	f.constraint = c
	return nil
}

// OnChange registers fn to run on every current-slot write, in registration
// order, before the write commits. Close the returned subscription to
// detach; closed handles are pruned on the next notification round.
func (f *Field) OnChange(fn func(Change) error) *notify.Subscription {
	return f.signal.Subscribe(fn)
}

func (f *Field) notifyChange(old, new FieldValue, g *cycleGuard) error {
	return f.signal.Publish(Change{Field: f, Old: old, New: new, guard: g})
}

// At returns the value at position i.
func (f *Field) At(i int) (FieldValue, error) {
	if i < 0 || i >= len(f.vals) {
		return nil, fmt.Errorf("field %q: position %d: %w", f.name, i, ErrValueNotFound)
	}
	return f.vals[i], nil
}

// BySource returns the value carrying src.
func (f *Field) BySource(src *Source) (FieldValue, error) {
	if i := f.findSource(src); i >= 0 {
		return f.vals[i], nil
	}
	return nil, fmt.Errorf("field %q: %s: %w", f.name, src, ErrValueNotFound)
}

// BySourceName interns name and returns the value carrying that source.
func (f *Field) BySourceName(name string) (FieldValue, error) {
	return f.BySource(NewSource(name))
}

// DerivedAt returns the nth derived value held by the field.
func (f *Field) DerivedAt(n int) (*DerivedValue, error) {
	seen := 0
	for _, v := range f.vals {
		if dv, ok := v.(*DerivedValue); ok {
			if seen == n {
				return dv, nil
			}
			seen++
		}
	}
	return nil, fmt.Errorf("field %q has only %d derived values: %w", f.name, seen, ErrValueNotFound)
}

// Current returns the value at index 0, failing with ErrEmptyField when the
// field holds nothing.
func (f *Field) Current() (FieldValue, error) {
	if len(f.vals) == 0 {
		return nil, fmt.Errorf("field %q: %w", f.name, ErrEmptyField)
	}
	return f.vals[0], nil
}

// CurrentValue returns the payload of the current value.
func (f *Field) CurrentValue() (cty.Value, error) {
	cur, err := f.Current()
	if err != nil {
		return cty.NilVal, err
	}
	return cur.Value()
}

// Set replaces the value at position i in place. The incoming value must
// carry the source of the slot it replaces; replacing index 0 notifies
// subscribers before committing.
func (f *Field) Set(i int, v FieldValue) error {
	if i < 0 || i >= len(f.vals) {
		return fmt.Errorf("field %q: position %d: %w", f.name, i, ErrValueNotFound)
	}
	if err := f.checkIncoming(v, f.vals[i].Source()); err != nil {
		return err
	}
	if i == 0 {
		if err := f.notifyChange(f.vals[0], v, nil); err != nil {
			return fmt.Errorf("field %q: subscriber rejected change: %w", f.name, err)
		}
	}
	f.adopt(v)
	f.vals[i] = v
	return nil
}

// SetBySource replaces the value carrying src in place.
func (f *Field) SetBySource(src *Source, v FieldValue) error {
	i := f.findSource(src)
	if i < 0 {
		return fmt.Errorf("field %q: %s: %w", f.name, src, ErrValueNotFound)
	}
	return f.Set(i, v)
}

// Add appends a value after source and type validation.
func (f *Field) Add(v FieldValue) error {
	if err := f.checkIncoming(v, nil); err != nil {
		return err
	}
	f.adopt(v)
	f.vals = append(f.vals, v)
	return nil
}

// Record wraps a bare literal and a source key into an ObservedValue. An
// existing value with the same source is replaced in place; otherwise the
// observation is appended.
func (f *Field) Record(sourceKey string, literal cty.Value) error {
	src := NewSource(sourceKey)
	ov := NewObserved(literal, src)
	if i := f.findSource(src); i >= 0 {
		return f.Set(i, ov)
	}
	return f.Add(ov)
}

// Insert places v at position i, shifting later values down. Inserting at 0
// notifies (old current, v) before committing.
func (f *Field) Insert(i int, v FieldValue) error {
	if i < 0 || i > len(f.vals) {
		return fmt.Errorf("field %q: position %d: %w", f.name, i, ErrValueNotFound)
	}
	if err := f.checkIncoming(v, nil); err != nil {
		return err
	}
	if i == 0 {
		var old FieldValue
		if len(f.vals) > 0 {
			old = f.vals[0]
		}
		if err := f.notifyChange(old, v, nil); err != nil {
			return fmt.Errorf("field %q: subscriber rejected change: %w", f.name, err)
		}
	}
	f.adopt(v)
	f.vals = append(f.vals, nil)
	copy(f.vals[i+1:], f.vals[i:])
	f.vals[i] = v
	return nil
}

// Delete removes the value at position i. Removing index 0 notifies
// (removed, promoted-or-nil) before removal.
func (f *Field) Delete(i int) error {
	if i < 0 || i >= len(f.vals) {
		return fmt.Errorf("field %q: position %d: %w", f.name, i, ErrValueNotFound)
	}
	if i == 0 {
		var promoted FieldValue
		if len(f.vals) > 1 {
			promoted = f.vals[1]
		}
		if err := f.notifyChange(f.vals[0], promoted, nil); err != nil {
			return fmt.Errorf("field %q: subscriber rejected change: %w", f.name, err)
		}
	}
	removed := f.vals[i]
	f.vals = append(f.vals[:i], f.vals[i+1:]...)
	if dv, ok := removed.(*DerivedValue); ok && dv.field == f {
		dv.field = nil
	}
	return nil
}

// DeleteBySource removes the value carrying src.
func (f *Field) DeleteBySource(src *Source) error {
	i := f.findSource(src)
	if i < 0 {
		return fmt.Errorf("field %q: %s: %w", f.name, src, ErrValueNotFound)
	}
	return f.Delete(i)
}

// SetCurrent makes v the current value, notifying (old current, new
// current) before committing. When v's source is already present the stored
// entry is promoted; otherwise v is validated and inserted at 0.
func (f *Field) SetCurrent(v FieldValue) error {
	if v == nil {
		return fmt.Errorf("field %q: nil value", f.name)
	}
	if src := v.Source(); src != nil && f.findSource(src) >= 0 {
		return f.Promote(src)
	}
	return f.Insert(0, v)
}

// Promote moves the value carrying src to the current slot, notifying
// (old current, promoted) before committing. Promoting the source that is
// already current is a no-op.
func (f *Field) Promote(src *Source) error {
	i := f.findSource(src)
	if i < 0 {
		return fmt.Errorf("field %q: %s: %w", f.name, src, ErrValueNotFound)
	}
	if i == 0 {
		return nil
	}
	val := f.vals[i]
	if err := f.notifyChange(f.vals[0], val, nil); err != nil {
		return fmt.Errorf("field %q: subscriber rejected change: %w", f.name, err)
	}
	f.vals = append(f.vals[:i], f.vals[i+1:]...)
	f.vals = append([]FieldValue{val}, f.vals...)
	return nil
}

// SetDefault records v under the reserved default source.
func (f *Field) SetDefault(v cty.Value) error {
	ov := NewObserved(v, DefaultSource())
	if i := f.findSource(DefaultSource()); i >= 0 {
		return f.Set(i, ov)
	}
	return f.Add(ov)
}

// Default returns the value recorded under the reserved default source.
func (f *Field) Default() (cty.Value, error) {
	fv, err := f.BySource(DefaultSource())
	if err != nil {
		return cty.NilVal, err
	}
	return fv.Value()
}

// HasDefault reports whether a default value is recorded.
func (f *Field) HasDefault() bool {
	return f.findSource(DefaultSource()) >= 0
}

// Values evaluates and returns every stored value's payload in order.
func (f *Field) Values() ([]cty.Value, error) {
	out := make([]cty.Value, len(f.vals))
	for i, v := range f.vals {
		val, err := v.Value()
		if err != nil {
			return nil, fmt.Errorf("field %q value %d: %w", f.name, i, err)
		}
		out[i] = val
	}
	return out, nil
}

// Sources returns the provenance of every stored value in order.
func (f *Field) Sources() []*Source {
	out := make([]*Source, len(f.vals))
	for i, v := range f.vals {
		out[i] = v.Source()
	}
	return out
}

// Observed returns the observed values, excluding the default entry.
func (f *Field) Observed() []*ObservedValue {
	var out []*ObservedValue
	for _, v := range f.vals {
		if ov, ok := v.(*ObservedValue); ok && !ov.Source().IsDefault() {
			out = append(out, ov)
		}
	}
	return out
}

// Derived returns the derived values in order.
func (f *Field) Derived() []*DerivedValue {
	var out []*DerivedValue
	for _, v := range f.vals {
		if dv, ok := v.(*DerivedValue); ok {
			out = append(out, dv)
		}
	}
	return out
}

// checkIncoming validates a value before it enters the field: it must be a
// FieldValue with an acceptable source (matching expect when replacing a
// slot, not duplicating an existing source when appending) and must satisfy
// the type constraint. Validation has no side effects; ownership and the
// unusable marking happen in adopt, on the commit path, so a mutation
// vetoed by a subscriber leaves the incoming value untouched.
func (f *Field) checkIncoming(v FieldValue, expect *Source) error {
	if v == nil {
		return fmt.Errorf("field %q: nil value", f.name)
	}
	src := v.Source()
	if src == nil {
		return fmt.Errorf("field %q: value has no source", f.name)
	}

	if expect != nil {
		if src != expect {
			return fmt.Errorf("field %q: %s vs %s: %w", f.name, src, expect, ErrSourceMismatch)
		}
	} else {
		if f.findSource(src) >= 0 {
			return fmt.Errorf("field %q: %s: %w", f.name, src, ErrDuplicateSource)
		}
	}

	if dv, ok := v.(*DerivedValue); ok {
		if dv.field != nil && dv.field != f {
			return fmt.Errorf("field %q: derived value owned by field %q: %w",
				f.name, dv.field.name, ErrDuplicateOwner)
		}
		return nil
	}

	if err := checkConstraint(f.constraint, v); err != nil {
		return fmt.Errorf("field %q: %w", f.name, err)
	}
	return nil
}

// adopt takes ownership of an incoming derived value once the mutation is
// committing. A derived value failing the constraint is marked unusable
// instead of rejected, since its payload is unknown until computed.
func (f *Field) adopt(v FieldValue) {
	dv, ok := v.(*DerivedValue)
	if !ok {
		return
	}
	if err := checkConstraint(f.constraint, dv); err != nil {
		dv.unusable = true
		log.Warn(log.CatField, "derived value failed type constraint, marked unusable",
			"field", f.name, "error", err.Error())
	}
	dv.field = f
	if dv.deps.pathNode == nil && f.node != nil {
		dv.deps.SetPathNode(f.node)
	}
}

func (f *Field) findSource(src *Source) int {
	for i, v := range f.vals {
		if v.Source() == src {
			return i
		}
	}
	return -1
}

// setNode attaches or detaches the field's container backref. Detaching
// bumps the generation so outstanding dependency references see a dead
// handle and re-resolve; derived values follow the container as their path
// origin.
func (f *Field) setNode(n *FieldNode) {
	if n == nil {
		f.generation++
	}
	f.node = n
	for _, dv := range f.Derived() {
		dv.deps.SetPathNode(nodeOrNil(n))
	}
}

func nodeOrNil(n *FieldNode) Node {
	if n == nil {
		return nil
	}
	return n
}

// String renders the field with all values.
func (f *Field) String() string {
	parts := make([]string, len(f.vals))
	for i, v := range f.vals {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return fmt.Sprintf("Field %s:[%s]", f.name, strings.Join(parts, ", "))
}

// StringCurrent renders the field with only its current value.
func (f *Field) StringCurrent() string {
	v, err := f.CurrentValue()
	if err != nil {
		return fmt.Sprintf("Field %s empty", f.name)
	}
	return fmt.Sprintf("Field %s: %v", f.name, v)
}
