// Package catalog implements a tree of nodes whose fields carry multiple
// provenance-tagged values. A field's first value is its "current" value;
// values are either observed (a literal paired with a Source) or derived
// (lazily computed from other fields' current values, located by direct
// reference or by a path expression, and cached until an upstream change
// invalidates them).
//
// Evaluation is single-threaded, synchronous, and demand-driven: writing a
// field's current slot notifies subscribers before the write commits,
// dependent derived values mark themselves stale, and the next read
// re-resolves and recomputes. Callers needing concurrent access must
// serialize externally; only the Source registry is internally locked.
package catalog
