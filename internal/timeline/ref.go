package timeline

import (
	"fmt"

	"loom/internal/services"
	"loom/internal/timecode"
)

// ClipRef addresses one clip inside a timeline by position. Positional
// addressing keeps references stable across a run: splices replace elements
// in place and never reorder tracks.
type ClipRef struct {
	Track   int
	Element int
}

// String renders the reference in the compact form used by logs and reports.
func (r ClipRef) String() string {
	return fmt.Sprintf("t%de%d", r.Track, r.Element)
}

// Resolve returns the referenced clip or an error when the reference does
// not point at a clip.
func (r ClipRef) Resolve(tl *Timeline) (*Clip, error) {
	if tl == nil || r.Track < 0 || r.Track >= len(tl.Tracks) {
		return nil, services.Wrap(services.ErrSplice, "timeline", "resolve",
			fmt.Sprintf("track %d out of range", r.Track), nil)
	}
	track := tl.Tracks[r.Track]
	if r.Element < 0 || r.Element >= len(track.Elements) {
		return nil, services.Wrap(services.ErrSplice, "timeline", "resolve",
			fmt.Sprintf("element %d out of range on track %d", r.Element, r.Track), nil)
	}
	clip, ok := track.Elements[r.Element].(*Clip)
	if !ok {
		return nil, services.Wrap(services.ErrSplice, "timeline", "resolve",
			fmt.Sprintf("%s is a gap, not a clip", r), nil)
	}
	return clip, nil
}

// Start returns the derived start time of the referenced element.
func (r ClipRef) Start(tl *Timeline) timecode.Rational {
	if tl == nil || r.Track < 0 || r.Track >= len(tl.Tracks) {
		return timecode.Zero
	}
	return tl.Tracks[r.Track].StartOf(r.Element)
}
