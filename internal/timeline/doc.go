// Package timeline holds the in-memory model shared by both supported XML
// dialects: an ordered set of tracks, each a contiguous sequence of clips
// and gaps timestamped with exact rational times. Element start times are
// derived from prior durations, which makes the contiguity invariant
// structural rather than something to repair after edits.
package timeline
