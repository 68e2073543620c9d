// Package selector evaluates declarative clip filters against a timeline.
// Matching is deterministic and stable; empty criteria deliberately match
// nothing so pipeline runs require explicit opt-in.
package selector
