// Package dialect defines the adapter contract between the timeline model
// and the two supported XML wire dialects, plus a registry keyed by dialect
// name. Concrete adapters live in the mlt and fcpxml subpackages and
// register themselves on import.
package dialect
