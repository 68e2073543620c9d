// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect executes ffprobe and returns a parsed Result; helper methods
// expose stream counts, frame size, and the container duration as an
// exact rational for frame-accurate comparisons.
package ffprobe
