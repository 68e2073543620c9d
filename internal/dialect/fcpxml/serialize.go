package fcpxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"loom/internal/dialect"
	"loom/internal/services"
	"loom/internal/timecode"
	"loom/internal/timeline"
)

const headerLine = "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<!DOCTYPE fcpxml>\n"

// Serialize encodes the timeline model as a sequence dialect document.
// Rational seconds carry any exact time, so this direction never loses
// precision.
func (a *adapter) Serialize(tl *timeline.Timeline) ([]byte, error) {
	if err := tl.Validate(); err != nil {
		return nil, err
	}

	res := &resources{
		Formats: []format{{
			ID:            formatID,
			FrameDuration: timecode.Format(frameDuration(tl.FrameRate)),
			Width:         tl.Width,
			Height:        tl.Height,
			ExtraAttrs:    dialect.RawAttrsFor("format", tl.ExtraAttrs),
		}},
	}
	assetIDs := map[string]string{}

	seq := sequence{
		Format:   formatID,
		Duration: timecode.Format(tl.Duration()),
		TCStart:  "0s",
		TCFormat: "NDF",
	}
	// A nonzero timecode origin shifts every spine offset, so it has to be
	// restored before placement starts.
	origin := timecode.Zero
	for _, attr := range dialect.RawAttrsFor("sequence", tl.ExtraAttrs) {
		switch attr.Name.Local {
		case "tcStart":
			start, err := timecode.Parse(attr.Value)
			if err != nil {
				return nil, err
			}
			origin = start
			seq.TCStart = attr.Value
		case "tcFormat":
			seq.TCFormat = attr.Value
		default:
			seq.ExtraAttrs = append(seq.ExtraAttrs, attr)
		}
	}

	usedIDs := map[string]bool{}
	for ti, track := range tl.Tracks {
		sp := spine{Name: track.Name, Role: "video"}
		if track.Kind == timeline.TrackAudio {
			sp.Role = "audio"
		}
		sp.Extras = dialect.RawToFragments(track.Extras)
		sp.ExtraAttrs = dialect.RawAttrsFor("spine", track.ExtraAttrs)
		pos := origin
		for ei, el := range track.Elements {
			switch v := el.(type) {
			case *timeline.Clip:
				ref := internAsset(res, assetIDs, v.Source.Path, track.Kind, dialect.RawAttrsFor("asset", v.ExtraAttrs))
				c := serializeClip(v, ref, pos, sp.Role, ti, ei, usedIDs)
				sp.Items = append(sp.Items, spineItem{Clip: &c})
			case *timeline.Gap:
				sp.Items = append(sp.Items, spineItem{Gap: &gapEl{
					Offset:   timecode.Format(pos),
					Duration: timecode.Format(v.Duration),
				}})
			}
			pos = pos.Add(el.Length())
		}
		seq.Spines = append(seq.Spines, sp)
	}

	doc := document{
		Version:   documentVersion,
		Resources: res,
		Library: &library{
			Events: []event{{
				Projects: []project{{
					Name:       tl.Name,
					Sequences:  []sequence{seq},
					ExtraAttrs: dialect.RawAttrsFor("project", tl.ExtraAttrs),
				}},
				ExtraAttrs: dialect.RawAttrsFor("event", tl.ExtraAttrs),
			}},
			ExtraAttrs: dialect.RawAttrsFor("library", tl.ExtraAttrs),
		},
		Extras:     dialect.RawToFragments(tl.Extras),
		ExtraAttrs: dialect.RawAttrsFor("fcpxml", tl.ExtraAttrs),
	}

	var buf bytes.Buffer
	buf.WriteString(headerLine)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, services.Wrap(services.ErrParse, "fcpxml", "serialize", "encode document", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// internAsset returns the resource id for a media path, registering the
// asset on first use. A path shared by several clips maps to one asset.
func internAsset(res *resources, ids map[string]string, path string, kind timeline.TrackKind, extra []xml.Attr) string {
	if id, ok := ids[path]; ok {
		markAssetKind(res, id, kind)
		return id
	}
	id := fmt.Sprintf("r%d", len(ids)+2)
	ids[path] = id
	as := asset{
		ID:         id,
		Name:       baseName(path),
		MediaRep:   &mediaRep{Kind: "original-media", Src: assetSrc(path)},
		ExtraAttrs: extra,
	}
	res.Assets = append(res.Assets, as)
	markAssetKind(res, id, kind)
	return id
}

func markAssetKind(res *resources, id string, kind timeline.TrackKind) {
	for i := range res.Assets {
		if res.Assets[i].ID != id {
			continue
		}
		if kind == timeline.TrackAudio {
			res.Assets[i].HasAudio = "1"
		} else {
			res.Assets[i].HasVideo = "1"
		}
		return
	}
}

func serializeClip(clip *timeline.Clip, ref string, pos timecode.Rational, role string, ti, ei int, usedIDs map[string]bool) clipEl {
	id := clip.ID
	if id == "" {
		id = fmt.Sprintf("clip_t%d_%d", ti, ei)
	}
	for usedIDs[id] {
		id += "_"
	}
	usedIDs[id] = true

	c := clipEl{
		Kind:       "video",
		ID:         id,
		Name:       clip.Name,
		Ref:        ref,
		Offset:     timecode.Format(pos),
		Start:      timecode.Format(clip.Source.In),
		Duration:   timecode.Format(clip.Duration),
		Extras:     dialect.RawToFragments(clip.Extras),
		ExtraAttrs: dialect.RawAttrsFor("clip", clip.ExtraAttrs),
	}
	if role == "audio" {
		c.Kind = "audio"
	}
	for _, record := range clip.Effects {
		c.Filters = append(c.Filters, serializeFilter(record))
	}
	return c
}

func serializeFilter(record timeline.EffectRecord) filterEl {
	f := filterEl{Name: record.Stage}
	for _, name := range sortedKeys(record.Params) {
		f.Params = append(f.Params, param{Name: name, Value: record.Params[name]})
	}
	if record.OutputHash != "" {
		f.Params = append(f.Params, param{Name: paramOutputHash, Value: record.OutputHash})
	}
	return f
}

func assetSrc(path string) string {
	if !strings.HasPrefix(path, "/") {
		return path
	}
	u := url.URL{Scheme: "file", Path: path}
	return u.String()
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
