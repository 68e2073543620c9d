package mlt

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"loom/internal/dialect"
	"loom/internal/services"
	"loom/internal/timecode"
	"loom/internal/timeline"
)

// Parse decodes a track dialect document into the timeline model.
func (a *adapter) Parse(data []byte) (*timeline.Timeline, error) {
	var doc document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, services.Wrap(services.ErrParse, "mlt", "parse", "malformed document", err)
	}
	if doc.Profile == nil {
		return nil, services.Wrap(services.ErrParse, "mlt", "parse", "missing profile element", nil)
	}
	fps, err := timecode.New(doc.Profile.FrameRateNum, doc.Profile.FrameRateDen)
	if err != nil || fps.Sign() <= 0 {
		return nil, services.Wrap(services.ErrParse, "mlt", "parse",
			fmt.Sprintf("invalid frame rate %d/%d", doc.Profile.FrameRateNum, doc.Profile.FrameRateDen), err)
	}

	tl := &timeline.Timeline{
		Name:      doc.Title,
		FrameRate: fps,
		Width:     doc.Profile.Width,
		Height:    doc.Profile.Height,
		Extras:    dialect.FragmentsToRaw(doc.Extras),
	}
	tl.ExtraAttrs = append(tl.ExtraAttrs, dialect.AttrsToRaw("mlt", dialect.NormalizeAttrs(doc.ExtraAttrs))...)
	tl.ExtraAttrs = append(tl.ExtraAttrs, dialect.AttrsToRaw("profile", dialect.NormalizeAttrs(doc.Profile.ExtraAttrs))...)
	if doc.Tractor != nil {
		tl.ExtraAttrs = append(tl.ExtraAttrs, dialect.AttrsToRaw("tractor", dialect.NormalizeAttrs(doc.Tractor.ExtraAttrs))...)
	}

	producers := make(map[string]producer, len(doc.Producers))
	for i := range doc.Producers {
		doc.Producers[i].ExtraAttrs = dialect.NormalizeAttrs(doc.Producers[i].ExtraAttrs)
		producers[doc.Producers[i].ID] = doc.Producers[i]
	}

	trackPlaylists, unreferenced := a.orderPlaylists(doc)
	referenced := map[string]bool{}
	for _, pl := range trackPlaylists {
		track := &timeline.Track{Kind: timeline.TrackAudio, Name: pl.Name}
		if pl.Video {
			track.Kind = timeline.TrackVideo
		}
		track.Extras = dialect.FragmentsToRaw(pl.Extras)
		track.ExtraAttrs = dialect.AttrsToRaw("playlist", pl.ExtraAttrs)
		for _, item := range pl.Items {
			switch {
			case item.Entry != nil:
				clip, err := a.parseEntry(*item.Entry, producers, referenced)
				if err != nil {
					return nil, err
				}
				track.Elements = append(track.Elements, clip)
			case item.Blank != nil:
				length, err := timecode.ParseClock(item.Blank.Length)
				if err != nil {
					return nil, err
				}
				track.Elements = append(track.Elements, &timeline.Gap{Duration: length})
			}
		}
		tl.Tracks = append(tl.Tracks, track)
	}

	// Playlists and producers the tracks never touch survive as opaque
	// extras so a round-trip leaves them intact.
	for _, pl := range unreferenced {
		raw, err := marshalFragment(pl)
		if err != nil {
			return nil, err
		}
		tl.Extras = append(tl.Extras, raw)
	}
	for _, p := range doc.Producers {
		if referenced[p.ID] {
			continue
		}
		raw, err := marshalFragment(p)
		if err != nil {
			return nil, err
		}
		tl.Extras = append(tl.Extras, raw)
	}
	if doc.Tractor != nil && len(doc.Tractor.Extras) > 0 {
		tl.Extras = append(tl.Extras, dialect.FragmentsToRaw(doc.Tractor.Extras)...)
	}

	if err := tl.Validate(); err != nil {
		return nil, err
	}
	return tl, nil
}

// orderPlaylists selects the playlists that form tracks. A tractor's
// multitrack defines both membership and order; without one, every playlist
// is a track in document order.
func (a *adapter) orderPlaylists(doc document) (tracks []playlist, unreferenced []playlist) {
	if doc.Tractor == nil || doc.Tractor.Multitrack == nil {
		return doc.Playlists, nil
	}
	byID := make(map[string]playlist, len(doc.Playlists))
	for _, pl := range doc.Playlists {
		byID[pl.ID] = pl
	}
	used := map[string]bool{}
	for _, ref := range doc.Tractor.Multitrack.Tracks {
		if pl, ok := byID[ref.Producer]; ok {
			tracks = append(tracks, pl)
			used[ref.Producer] = true
		}
	}
	for _, pl := range doc.Playlists {
		if !used[pl.ID] {
			unreferenced = append(unreferenced, pl)
		}
	}
	return tracks, unreferenced
}

func (a *adapter) parseEntry(e entry, producers map[string]producer, referenced map[string]bool) (*timeline.Clip, error) {
	p, ok := producers[e.Producer]
	if !ok {
		return nil, services.Wrap(services.ErrParse, "mlt", "parse",
			fmt.Sprintf("entry references unknown producer %q", e.Producer), nil)
	}
	referenced[p.ID] = true

	in, err := timecode.ParseClock(e.In)
	if err != nil {
		return nil, err
	}
	out, err := timecode.ParseClock(e.Out)
	if err != nil {
		return nil, err
	}
	if out.Cmp(in) <= 0 {
		return nil, services.Wrap(services.ErrParse, "mlt", "parse",
			fmt.Sprintf("entry for producer %q: out %s not after in %s", e.Producer, e.Out, e.In), nil)
	}

	clip := &timeline.Clip{
		ID:   p.ID,
		Name: p.property(propCaption),
		Source: timeline.MediaRef{
			Path: p.property(propResource),
			In:   in,
			Out:  out,
		},
		Duration:   out.Sub(in),
		Extras:     dialect.FragmentsToRaw(p.Extras),
		ExtraAttrs: dialect.AttrsToRaw("producer", p.ExtraAttrs),
	}
	for _, f := range p.Filters {
		clip.Effects = append(clip.Effects, parseFilter(f))
	}
	return clip, nil
}

func parseFilter(f filter) timeline.EffectRecord {
	record := timeline.EffectRecord{Stage: f.Service}
	for _, prop := range f.Properties {
		if prop.Name == propOutputHash {
			record.OutputHash = prop.Value
			continue
		}
		if record.Params == nil {
			record.Params = map[string]string{}
		}
		record.Params[prop.Name] = prop.Value
	}
	return record
}

func marshalFragment(v any) (timeline.RawElement, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return timeline.RawElement{}, services.Wrap(services.ErrParse, "mlt", "parse", "re-encode opaque element", err)
	}
	return timeline.RawElement{XML: buf.String()}, nil
}
