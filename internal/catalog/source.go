package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/zjrosen/fieldcat/internal/log"
)

// CodeResolver turns a free-form citation locator (arXiv id, DOI, URL, raw
// bibcode) into a canonical bibliographic code. Implemented by internal/ads;
// the core knows nothing beyond this contract.
type CodeResolver interface {
	ResolveCode(ctx context.Context, locator string) (string, error)
}

// Source is an interned identity representing the provenance of a value.
// Two sources constructed with the same key string are the same instance, so
// sources compare by pointer.
//
// The constructor key can carry a location: "name/loc" attaches loc as a
// locator to be resolved into a canonical code on demand, and "name//code"
// attaches code verbatim with no validation.
type Source struct {
	name    string
	locator string // free-form location, resolved lazily
	code    string // canonical bibliographic code once resolved
}

type sourceRegistry struct {
	mu       sync.Mutex
	byName   map[string]*Source
	resolver CodeResolver
}

var registry = &sourceRegistry{byName: make(map[string]*Source)}

// defaultSourceName keys field default values.
const defaultSourceName = "default"

// NewSource interns and returns the Source for key. Re-interning a name with
// a different location overwrites the stored location with a warning, but
// the identity is preserved.
func NewSource(key string) *Source {
	name, locator, code := splitSourceKey(key)

	registry.mu.Lock()
	defer registry.mu.Unlock()

	s, ok := registry.byName[name]
	if !ok {
		s = &Source{name: name, locator: locator, code: code}
		registry.byName[name] = s
		log.Debug(log.CatSource, "interned source", "name", name)
		return s
	}

	if locator != "" && locator != s.locator {
		if s.locator != "" {
			log.Warn(log.CatSource, "overwriting source location",
				"name", name, "old", s.locator, "new", locator)
		}
		s.locator = locator
		s.code = ""
	}
	if code != "" {
		s.code = code
	}
	return s
}

// LookupSource returns the interned Source for name without creating one.
func LookupSource(name string) (*Source, bool) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	s, ok := registry.byName[name]
	return s, ok
}

// ReleaseSource drops the interned entry for name. A later NewSource with
// the same name yields a fresh identity.
func ReleaseSource(name string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	delete(registry.byName, name)
}

// SetCodeResolver installs the bibliographic collaborator used to resolve
// source locators. Passing nil disables resolution.
func SetCodeResolver(r CodeResolver) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.resolver = r
}

// DefaultSource returns the reserved source that keys field default values.
func DefaultSource() *Source {
	return NewSource(defaultSourceName)
}

// splitSourceKey implements the "name/loc" and "name//code" constructor
// grammar.
func splitSourceKey(key string) (name, locator, code string) {
	if !strings.Contains(key, "/") {
		return key, "", ""
	}
	parts := strings.Split(key, "/")
	if len(parts) >= 3 && parts[len(parts)-2] == "" {
		name = strings.TrimSpace(strings.Join(parts[:len(parts)-2], "/"))
		code = strings.TrimSpace(parts[len(parts)-1])
		return name, "", code
	}
	name = strings.TrimSpace(strings.Join(parts[:len(parts)-1], "/"))
	locator = strings.TrimSpace(parts[len(parts)-1])
	return name, locator, ""
}

// Name returns the interned identifier.
func (s *Source) Name() string {
	return s.name
}

// IsDefault reports whether this is the reserved default source.
func (s *Source) IsDefault() bool {
	return s.name == defaultSourceName
}

// HasLocation reports whether the source carries a locator or resolved code.
func (s *Source) HasLocation() bool {
	return s.locator != "" || s.code != ""
}

// Code returns the canonical bibliographic code for this source, resolving
// the locator through the installed CodeResolver on first use.
func (s *Source) Code(ctx context.Context) (string, error) {
	registry.mu.Lock()
	code, locator, resolver := s.code, s.locator, registry.resolver
	registry.mu.Unlock()

	if code != "" {
		return code, nil
	}
	if locator == "" {
		return "", fmt.Errorf("source %q has no location", s.name)
	}
	if resolver == nil {
		return "", fmt.Errorf("source %q: no code resolver installed", s.name)
	}

	resolved, err := resolver.ResolveCode(ctx, locator)
	if err != nil {
		return "", fmt.Errorf("resolving location %q for source %q: %w", locator, s.name, err)
	}

	registry.mu.Lock()
	s.code = resolved
	registry.mu.Unlock()
	log.Debug(log.CatSource, "resolved source location", "name", s.name, "code", resolved)
	return resolved, nil
}

// String renders "Source name" or "Source name @code".
func (s *Source) String() string {
	if s.code != "" {
		return "Source " + s.name + " @" + s.code
	}
	return "Source " + s.name
}

var dependentCount atomic.Int64

// newDependentSource mints a unique, uninterned identity for a derived
// value's dependency set.
func newDependentSource() *Source {
	n := dependentCount.Add(1)
	return &Source{name: fmt.Sprintf("dependent%d", n)}
}
