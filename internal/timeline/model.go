package timeline

import (
	"loom/internal/timecode"
)

// TrackKind distinguishes video and audio tracks.
type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// MediaRef points at a span within a source media file.
type MediaRef struct {
	Path string
	In   timecode.Rational
	Out  timecode.Rational
}

// SpanDuration returns the length of the referenced span.
func (m MediaRef) SpanDuration() timecode.Rational {
	return m.Out.Sub(m.In)
}

// EffectRecord documents one applied effect stage on a clip.
type EffectRecord struct {
	Stage      string
	Params     map[string]string
	OutputHash string
}

// RawElement preserves an XML fragment the adapter does not model so that
// unrelated structure survives a round-trip intact.
type RawElement struct {
	XML string
}

// RawAttr preserves an attribute of a modeled dialect element that the
// model has no field for. Element names the construct that carried it so
// the owning dialect can re-attach it on serialize.
type RawAttr struct {
	Element string
	Name    string
	Value   string
}

// Element is a placed span on a track: a Clip or a Gap. The union is closed.
type Element interface {
	Length() timecode.Rational
	element()
}

// Clip is a placed media reference.
type Clip struct {
	ID       string
	Name     string
	Source   MediaRef
	Duration timecode.Rational
	Effects  []EffectRecord
	Extras   []RawElement

	// ExtraAttrs holds unmodeled attributes of the dialect element this
	// clip was parsed from.
	ExtraAttrs []RawAttr
}

// Length returns the clip's placed duration.
func (c *Clip) Length() timecode.Rational { return c.Duration }

func (c *Clip) element() {}

// Gap is an empty placeholder span.
type Gap struct {
	Duration timecode.Rational
}

// Length returns the gap's duration.
func (g *Gap) Length() timecode.Rational { return g.Duration }

func (g *Gap) element() {}

// Track is an ordered, contiguous sequence of clips and gaps. Element starts
// are derived: element N begins where element N-1 ends and the first element
// begins at zero, so contiguity holds by construction.
type Track struct {
	Kind     TrackKind
	Name     string
	Elements []Element
	Extras   []RawElement

	// ExtraAttrs holds unmodeled attributes of the dialect element this
	// track was parsed from.
	ExtraAttrs []RawAttr
}

// StartOf returns the derived start time of the element at index i.
func (t *Track) StartOf(i int) timecode.Rational {
	start := timecode.Zero
	for j := 0; j < i && j < len(t.Elements); j++ {
		start = start.Add(t.Elements[j].Length())
	}
	return start
}

// Duration returns the end time of the track's last element.
func (t *Track) Duration() timecode.Rational {
	return t.StartOf(len(t.Elements))
}

// Timeline is the in-memory representation both dialects map onto. Frame
// rate and resolution are project-level metadata; overall duration is
// derived, never stored.
type Timeline struct {
	Name      string
	FrameRate timecode.Rational
	Width     int
	Height    int
	Tracks    []*Track
	Extras    []RawElement

	// ExtraAttrs holds unmodeled attributes of the document-level dialect
	// elements the timeline was parsed from.
	ExtraAttrs []RawAttr
}

// Duration returns the maximum track end time.
func (tl *Timeline) Duration() timecode.Rational {
	max := timecode.Zero
	for _, track := range tl.Tracks {
		if end := track.Duration(); max.Less(end) {
			max = end
		}
	}
	return max
}

// Clone returns a deep copy sharing no mutable state with the original.
func (tl *Timeline) Clone() *Timeline {
	if tl == nil {
		return nil
	}
	out := &Timeline{
		Name:      tl.Name,
		FrameRate: tl.FrameRate,
		Width:     tl.Width,
		Height:    tl.Height,
		Extras:    append([]RawElement(nil), tl.Extras...),
	}
	out.ExtraAttrs = append([]RawAttr(nil), tl.ExtraAttrs...)
	out.Tracks = make([]*Track, len(tl.Tracks))
	for i, track := range tl.Tracks {
		out.Tracks[i] = track.clone()
	}
	return out
}

func (t *Track) clone() *Track {
	out := &Track{
		Kind:       t.Kind,
		Name:       t.Name,
		Extras:     append([]RawElement(nil), t.Extras...),
		ExtraAttrs: append([]RawAttr(nil), t.ExtraAttrs...),
	}
	out.Elements = make([]Element, len(t.Elements))
	for i, el := range t.Elements {
		switch v := el.(type) {
		case *Clip:
			out.Elements[i] = v.clone()
		case *Gap:
			gap := *v
			out.Elements[i] = &gap
		}
	}
	return out
}

func (c *Clip) clone() *Clip {
	out := &Clip{
		ID:         c.ID,
		Name:       c.Name,
		Source:     c.Source,
		Duration:   c.Duration,
		Extras:     append([]RawElement(nil), c.Extras...),
		ExtraAttrs: append([]RawAttr(nil), c.ExtraAttrs...),
	}
	if len(c.Effects) > 0 {
		out.Effects = make([]EffectRecord, len(c.Effects))
		for i, rec := range c.Effects {
			cp := rec
			if rec.Params != nil {
				cp.Params = make(map[string]string, len(rec.Params))
				for k, v := range rec.Params {
					cp.Params[k] = v
				}
			}
			out.Effects[i] = cp
		}
	}
	return out
}
