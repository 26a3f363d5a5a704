package catalog

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/zjrosen/fieldcat/internal/log"
)

// DeriveFunc is a pure function of the current values of a derived value's
// dependencies, in declaration order.
type DeriveFunc func(args []cty.Value) (cty.Value, error)

// FailurePolicy selects what a DerivedValue read does when dependency
// resolution or computation fails.
type FailurePolicy int

const (
	// PolicyRaise propagates the failure to the reader.
	PolicyRaise FailurePolicy = iota
	// PolicyWarn logs a diagnostic and returns null; the value stays
	// invalid so the next read retries.
	PolicyWarn
	// PolicySkip returns null and stays invalid, silently.
	PolicySkip
	// PolicyIgnore returns null and marks the value valid: the failure is
	// permanently absorbed until the next invalidation.
	PolicyIgnore
)

// String returns the config-file spelling of the policy.
func (p FailurePolicy) String() string {
	switch p {
	case PolicyRaise:
		return "raise"
	case PolicyWarn:
		return "warn"
	case PolicySkip:
		return "skip"
	case PolicyIgnore:
		return "ignore"
	default:
		return "unknown"
	}
}

// ParseFailurePolicy converts a config-file spelling into a policy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "raise":
		return PolicyRaise, nil
	case "warn":
		return PolicyWarn, nil
	case "skip":
		return PolicySkip, nil
	case "ignore":
		return PolicyIgnore, nil
	default:
		return PolicyRaise, fmt.Errorf("unknown failure policy %q", s)
	}
}

// DerivedValue lazily computes its payload from the current values of other
// fields and caches the result until an upstream change invalidates it. A
// DerivedValue is owned by at most one Field.
type DerivedValue struct {
	fn     DeriveFunc
	deps   *DependencySet
	src    *Source
	cached cty.Value
	valid  bool

	// unusable is set when the value fails its field's type constraint at
	// attach time.
	unusable bool

	policy FailurePolicy
	field  *Field
}

// DerivedOption configures a new DerivedValue.
type DerivedOption func(*DerivedValue)

// WithPathNode sets the tree location used to resolve path dependencies.
// Attaching the owning field to a container sets this implicitly if unset.
func WithPathNode(n Node) DerivedOption {
	return func(dv *DerivedValue) { dv.deps.pathNode = n }
}

// WithPolicy sets the failure policy for this value's reads.
func WithPolicy(p FailurePolicy) DerivedOption {
	return func(dv *DerivedValue) { dv.policy = p }
}

// NewDerived creates a derived value computing fn over deps. Path
// dependencies are syntax-checked here; resolution happens on first read.
func NewDerived(fn DeriveFunc, deps []Dep, opts ...DerivedOption) (*DerivedValue, error) {
	if fn == nil {
		return nil, fmt.Errorf("derived value requires a function")
	}
	dv := &DerivedValue{
		fn:     fn,
		src:    newDependentSource(),
		policy: PolicyRaise,
	}
	ds, err := newDependencySet(deps, nil, dv.onUpstreamChange)
	if err != nil {
		return nil, err
	}
	dv.deps = ds
	for _, opt := range opts {
		opt(dv)
	}
	return dv, nil
}

// Source returns the minted dependent identity of this value.
func (dv *DerivedValue) Source() *Source { return dv.src }

// Field returns the owning field, or nil while unattached.
func (dv *DerivedValue) Field() *Field { return dv.field }

// Valid reports whether a cached result is current.
func (dv *DerivedValue) Valid() bool { return dv.valid }

// Deps exposes the dependency set for introspection.
func (dv *DerivedValue) Deps() *DependencySet { return dv.deps }

// PathNode returns the tree location used to resolve path dependencies.
func (dv *DerivedValue) PathNode() Node { return dv.deps.pathNode }

// SetPathNode changes the resolution origin, dropping resolved references
// for path-declared slots so they re-resolve against the new location.
func (dv *DerivedValue) SetPathNode(n Node) { dv.deps.SetPathNode(n) }

// Value returns the cached result, or resolves dependencies and recomputes
// when stale. Failures follow the value's FailurePolicy.
func (dv *DerivedValue) Value() (cty.Value, error) {
	if dv.unusable {
		return cty.NilVal, fmt.Errorf("derived value %s: %w", dv.src.Name(), ErrUnusable)
	}
	if dv.valid {
		return dv.cached, nil
	}

	args, err := dv.deps.DependencyValues()
	if err != nil {
		return dv.fail(err)
	}
	result, err := dv.fn(args)
	if err != nil {
		return dv.fail(fmt.Errorf("computing derived value: %w", err))
	}

	dv.cached = result
	dv.valid = true
	return result, nil
}

// fail applies the failure policy to a resolution or computation error.
func (dv *DerivedValue) fail(err error) (cty.Value, error) {
	switch dv.policy {
	case PolicyWarn:
		log.Warn(log.CatDerive, "derived value failed", "source", dv.src.Name(), "error", err.Error())
		dv.cached = cty.NilVal
		dv.valid = false
		return cty.NilVal, nil
	case PolicySkip:
		dv.cached = cty.NilVal
		dv.valid = false
		return cty.NilVal, nil
	case PolicyIgnore:
		dv.cached = cty.NilVal
		dv.valid = true
		return cty.NilVal, nil
	default:
		return cty.NilVal, err
	}
}

// Invalidate marks the cached result stale and, when attached to a field,
// re-fires that field's change notification with the derived value standing
// in as both old and new so downstream dependents invalidate too. If the
// invalidation reaches back into a value already being invalidated, it fails
// with ErrCycle instead of recursing.
func (dv *DerivedValue) Invalidate() error {
	return dv.invalidate(newCycleGuard())
}

func (dv *DerivedValue) invalidate(g *cycleGuard) error {
	if g.seen(dv) {
		return fmt.Errorf("invalidation of %s reached itself: %w", dv.src.Name(), ErrCycle)
	}
	g.add(dv)
	dv.valid = false
	if dv.field != nil {
		return dv.field.notifyChange(dv, dv, g)
	}
	return nil
}

// onUpstreamChange is registered on every resolved dependency field.
func (dv *DerivedValue) onUpstreamChange(ch Change) error {
	g := ch.guard
	if g == nil {
		g = newCycleGuard()
	}
	return dv.invalidate(g)
}

func (dv *DerivedValue) String() string {
	if dv.valid {
		return fmt.Sprintf("Derived value: %v", dv.cached)
	}
	return "Derived value: stale"
}

// cycleGuard is the explicit token threaded through an invalidation chain.
// Each derived value is entered at most once per chain.
type cycleGuard struct {
	entered map[*DerivedValue]struct{}
}

func newCycleGuard() *cycleGuard {
	return &cycleGuard{entered: make(map[*DerivedValue]struct{})}
}

func (g *cycleGuard) seen(dv *DerivedValue) bool {
	_, ok := g.entered[dv]
	return ok
}

func (g *cycleGuard) add(dv *DerivedValue) {
	g.entered[dv] = struct{}{}
}
