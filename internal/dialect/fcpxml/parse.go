package fcpxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"loom/internal/dialect"
	"loom/internal/services"
	"loom/internal/timecode"
	"loom/internal/timeline"
)

// Parse decodes a sequence dialect document into the timeline model.
func (a *adapter) Parse(data []byte) (*timeline.Timeline, error) {
	var doc document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, services.Wrap(services.ErrParse, "fcpxml", "parse", "malformed document", err)
	}
	if doc.Resources == nil {
		return nil, services.Wrap(services.ErrParse, "fcpxml", "parse", "missing resources element", nil)
	}
	if doc.Library == nil {
		return nil, services.Wrap(services.ErrParse, "fcpxml", "parse", "missing library element", nil)
	}

	seq, proj, ev, extras, err := locateSequence(doc.Library)
	if err != nil {
		return nil, err
	}

	fmtEl := findFormat(doc.Resources.Formats, seq.Format)
	if fmtEl == nil {
		return nil, services.Wrap(services.ErrParse, "fcpxml", "parse",
			fmt.Sprintf("sequence references unknown format %q", seq.Format), nil)
	}
	frame, err := timecode.Parse(fmtEl.FrameDuration)
	if err != nil {
		return nil, err
	}
	if frame.Sign() <= 0 {
		return nil, services.Wrap(services.ErrParse, "fcpxml", "parse",
			fmt.Sprintf("invalid frame duration %q", fmtEl.FrameDuration), nil)
	}
	fps := timecode.MustNew(frame.Den(), frame.Num())

	tl := &timeline.Timeline{
		Name:      proj.Name,
		FrameRate: fps,
		Width:     fmtEl.Width,
		Height:    fmtEl.Height,
		Extras:    dialect.FragmentsToRaw(doc.Extras),
	}
	tl.ExtraAttrs = append(tl.ExtraAttrs, dialect.AttrsToRaw("fcpxml", dialect.NormalizeAttrs(doc.ExtraAttrs))...)
	tl.ExtraAttrs = append(tl.ExtraAttrs, dialect.AttrsToRaw("format", dialect.NormalizeAttrs(fmtEl.ExtraAttrs))...)
	tl.ExtraAttrs = append(tl.ExtraAttrs, dialect.AttrsToRaw("library", dialect.NormalizeAttrs(doc.Library.ExtraAttrs))...)
	tl.ExtraAttrs = append(tl.ExtraAttrs, dialect.AttrsToRaw("event", dialect.NormalizeAttrs(ev.ExtraAttrs))...)
	tl.ExtraAttrs = append(tl.ExtraAttrs, dialect.AttrsToRaw("project", dialect.NormalizeAttrs(proj.ExtraAttrs))...)
	tl.ExtraAttrs = append(tl.ExtraAttrs, dialect.AttrsToRaw("sequence", dialect.NormalizeAttrs(seq.ExtraAttrs))...)

	origin := timecode.Zero
	if seq.TCStart != "" {
		if origin, err = timecode.Parse(seq.TCStart); err != nil {
			return nil, err
		}
	}
	// Default timing attributes are regenerated on serialize; only a
	// nonzero origin or an unusual format needs carrying through.
	if origin.Sign() != 0 {
		tl.ExtraAttrs = append(tl.ExtraAttrs, timeline.RawAttr{Element: "sequence", Name: "tcStart", Value: seq.TCStart})
	}
	if seq.TCFormat != "" && seq.TCFormat != "NDF" {
		tl.ExtraAttrs = append(tl.ExtraAttrs, timeline.RawAttr{Element: "sequence", Name: "tcFormat", Value: seq.TCFormat})
	}

	assets := make(map[string]asset, len(doc.Resources.Assets))
	for i := range doc.Resources.Assets {
		doc.Resources.Assets[i].ExtraAttrs = dialect.NormalizeAttrs(doc.Resources.Assets[i].ExtraAttrs)
		assets[doc.Resources.Assets[i].ID] = doc.Resources.Assets[i]
	}
	referenced := map[string]bool{}

	for _, sp := range seq.Spines {
		track, err := a.parseSpine(sp, origin, assets, referenced)
		if err != nil {
			return nil, err
		}
		tl.Tracks = append(tl.Tracks, track)
	}

	// Resources the spines never touch survive as opaque extras so a
	// round-trip leaves them intact.
	for _, f := range doc.Resources.Formats {
		if f.ID == seq.Format {
			continue
		}
		f.ExtraAttrs = dialect.NormalizeAttrs(f.ExtraAttrs)
		raw, err := marshalFragment(f)
		if err != nil {
			return nil, err
		}
		tl.Extras = append(tl.Extras, raw)
	}
	for _, as := range doc.Resources.Assets {
		if referenced[as.ID] {
			continue
		}
		raw, err := marshalFragment(as)
		if err != nil {
			return nil, err
		}
		tl.Extras = append(tl.Extras, raw)
	}
	tl.Extras = append(tl.Extras, extras...)
	tl.Extras = append(tl.Extras, dialect.FragmentsToRaw(doc.Resources.Extras)...)
	tl.Extras = append(tl.Extras, dialect.FragmentsToRaw(seq.Extras)...)

	if err := tl.Validate(); err != nil {
		return nil, err
	}
	return tl, nil
}

// locateSequence walks the library to the first project carrying a
// sequence. Sibling events, projects, and sequences are preserved as
// opaque extras.
func locateSequence(lib *library) (*sequence, *project, *event, []timeline.RawElement, error) {
	var extras []timeline.RawElement
	var seq *sequence
	var proj *project
	var home *event
	for ei := range lib.Events {
		ev := &lib.Events[ei]
		for pi := range ev.Projects {
			p := &ev.Projects[pi]
			p.ExtraAttrs = dialect.NormalizeAttrs(p.ExtraAttrs)
			for si := range p.Sequences {
				p.Sequences[si].ExtraAttrs = dialect.NormalizeAttrs(p.Sequences[si].ExtraAttrs)
			}
			if seq == nil && len(p.Sequences) > 0 {
				seq = &p.Sequences[0]
				proj = p
				home = ev
				for si := 1; si < len(p.Sequences); si++ {
					raw, err := marshalFragment(p.Sequences[si])
					if err != nil {
						return nil, nil, nil, nil, err
					}
					extras = append(extras, raw)
				}
				continue
			}
			raw, err := marshalFragment(*p)
			if err != nil {
				return nil, nil, nil, nil, err
			}
			extras = append(extras, raw)
		}
		extras = append(extras, dialect.FragmentsToRaw(ev.Extras)...)
	}
	extras = append(extras, dialect.FragmentsToRaw(lib.Extras)...)
	if seq == nil {
		return nil, nil, nil, nil, services.Wrap(services.ErrParse, "fcpxml", "parse", "library holds no sequence", nil)
	}
	extras = append(extras, dialect.FragmentsToRaw(proj.Extras)...)
	return seq, proj, home, extras, nil
}

func findFormat(formats []format, id string) *format {
	for i := range formats {
		if formats[i].ID == id {
			return &formats[i]
		}
	}
	return nil
}

func (a *adapter) parseSpine(sp spine, origin timecode.Rational, assets map[string]asset, referenced map[string]bool) (*timeline.Track, error) {
	track := &timeline.Track{Kind: timeline.TrackVideo, Name: sp.Name}
	if sp.Role == "audio" {
		track.Kind = timeline.TrackAudio
	}
	track.Extras = dialect.FragmentsToRaw(sp.Extras)
	track.ExtraAttrs = dialect.AttrsToRaw("spine", sp.ExtraAttrs)

	pos := origin
	for _, item := range sp.Items {
		switch {
		case item.Clip != nil:
			clip, length, err := a.parseClip(*item.Clip, pos, assets, referenced)
			if err != nil {
				return nil, err
			}
			track.Elements = append(track.Elements, clip)
			pos = pos.Add(length)
		case item.Gap != nil:
			length, err := a.parseGap(*item.Gap, pos)
			if err != nil {
				return nil, err
			}
			track.Elements = append(track.Elements, &timeline.Gap{Duration: length})
			pos = pos.Add(length)
		}
	}
	return track, nil
}

func (a *adapter) parseClip(c clipEl, pos timecode.Rational, assets map[string]asset, referenced map[string]bool) (*timeline.Clip, timecode.Rational, error) {
	as, ok := assets[c.Ref]
	if !ok {
		return nil, timecode.Zero, services.Wrap(services.ErrParse, "fcpxml", "parse",
			fmt.Sprintf("clip references unknown asset %q", c.Ref), nil)
	}
	referenced[as.ID] = true

	path, err := assetPath(as)
	if err != nil {
		return nil, timecode.Zero, err
	}
	start, err := timecode.Parse(c.Start)
	if err != nil {
		return nil, timecode.Zero, err
	}
	duration, err := timecode.Parse(c.Duration)
	if err != nil {
		return nil, timecode.Zero, err
	}
	if duration.Sign() <= 0 {
		return nil, timecode.Zero, services.Wrap(services.ErrParse, "fcpxml", "parse",
			fmt.Sprintf("clip %q has non-positive duration %s", c.Ref, c.Duration), nil)
	}
	if err := checkOffset(c.Offset, pos, c.Ref); err != nil {
		return nil, timecode.Zero, err
	}

	clip := &timeline.Clip{
		ID:   c.ID,
		Name: c.Name,
		Source: timeline.MediaRef{
			Path: path,
			In:   start,
			Out:  start.Add(duration),
		},
		Duration:   duration,
		Extras:     dialect.FragmentsToRaw(c.Extras),
		ExtraAttrs: dialect.AttrsToRaw("clip", c.ExtraAttrs),
	}
	clip.ExtraAttrs = append(clip.ExtraAttrs, dialect.AttrsToRaw("asset", as.ExtraAttrs)...)
	for _, f := range c.Filters {
		clip.Effects = append(clip.Effects, parseFilter(f))
	}
	return clip, duration, nil
}

func (a *adapter) parseGap(g gapEl, pos timecode.Rational) (timecode.Rational, error) {
	duration, err := timecode.Parse(g.Duration)
	if err != nil {
		return timecode.Zero, err
	}
	if duration.Sign() <= 0 {
		return timecode.Zero, services.Wrap(services.ErrParse, "fcpxml", "parse",
			fmt.Sprintf("gap has non-positive duration %s", g.Duration), nil)
	}
	if err := checkOffset(g.Offset, pos, "gap"); err != nil {
		return timecode.Zero, err
	}
	return duration, nil
}

// checkOffset verifies spine contiguity: a child's offset must equal the
// position the preceding children add up to.
func checkOffset(offset string, pos timecode.Rational, what string) error {
	if offset == "" {
		return nil
	}
	got, err := timecode.Parse(offset)
	if err != nil {
		return err
	}
	if !got.Equal(pos) {
		return services.Wrap(services.ErrParse, "fcpxml", "parse",
			fmt.Sprintf("%s offset %s does not follow previous element end %s", what, offset, timecode.Format(pos)), nil)
	}
	return nil
}

func parseFilter(f filterEl) timeline.EffectRecord {
	record := timeline.EffectRecord{Stage: f.Name}
	for _, p := range f.Params {
		if p.Name == paramOutputHash {
			record.OutputHash = p.Value
			continue
		}
		if record.Params == nil {
			record.Params = map[string]string{}
		}
		record.Params[p.Name] = p.Value
	}
	return record
}

func assetPath(as asset) (string, error) {
	if as.MediaRep == nil || as.MediaRep.Src == "" {
		return "", services.Wrap(services.ErrParse, "fcpxml", "parse",
			fmt.Sprintf("asset %q has no media representation", as.ID), nil)
	}
	src := as.MediaRep.Src
	if !strings.Contains(src, "://") {
		return src, nil
	}
	u, err := url.Parse(src)
	if err != nil {
		return "", services.Wrap(services.ErrParse, "fcpxml", "parse",
			fmt.Sprintf("asset %q has unparseable source %q", as.ID, src), err)
	}
	return u.Path, nil
}

func marshalFragment(v any) (timeline.RawElement, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return timeline.RawElement{}, services.Wrap(services.ErrParse, "fcpxml", "parse", "re-encode opaque element", err)
	}
	return timeline.RawElement{XML: buf.String()}, nil
}
