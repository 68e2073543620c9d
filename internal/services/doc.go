// Package services defines the shared error taxonomy and context annotation
// helpers used across the pipeline. Errors are tagged with sentinel markers
// so callers can classify a failure (fatal vs. per-clip) without inspecting
// message text.
package services
