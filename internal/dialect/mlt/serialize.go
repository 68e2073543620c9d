package mlt

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"

	"loom/internal/dialect"
	"loom/internal/services"
	"loom/internal/timeline"
)

const (
	documentVersion = "7.22.0"
	headerLine      = "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n"
)

// Serialize encodes the timeline model as a track dialect document.
func (a *adapter) Serialize(tl *timeline.Timeline) ([]byte, error) {
	if err := tl.Validate(); err != nil {
		return nil, err
	}

	doc := document{
		LCNumeric: "C",
		Version:   documentVersion,
		Title:     tl.Name,
		Profile: &profile{
			Description:  fmt.Sprintf("%dx%d %.6f", tl.Width, tl.Height, tl.FrameRate.Seconds()),
			Width:        tl.Width,
			Height:       tl.Height,
			Progressive:  "1",
			FrameRateNum: tl.FrameRate.Num(),
			FrameRateDen: tl.FrameRate.Den(),
			Colorspace:   "709",
		},
	}
	doc.ExtraAttrs = dialect.RawAttrsFor("mlt", tl.ExtraAttrs)
	doc.Profile.ExtraAttrs = dialect.RawAttrsFor("profile", tl.ExtraAttrs)

	usedIDs := map[string]bool{}
	refs := multitrack{}
	for ti, track := range tl.Tracks {
		pl := playlist{
			ID:    fmt.Sprintf("playlist%d", ti),
			Video: track.Kind == timeline.TrackVideo,
			Name:  track.Name,
		}
		pl.Extras = dialect.RawToFragments(track.Extras)
		pl.ExtraAttrs = dialect.RawAttrsFor("playlist", track.ExtraAttrs)
		for ei, el := range track.Elements {
			switch v := el.(type) {
			case *timeline.Clip:
				p, e, err := a.serializeClip(v, ti, ei, usedIDs)
				if err != nil {
					return nil, err
				}
				doc.Producers = append(doc.Producers, p)
				pl.Items = append(pl.Items, playlistItem{Entry: &e})
			case *timeline.Gap:
				length, err := a.clock(v.Duration)
				if err != nil {
					return nil, err
				}
				pl.Items = append(pl.Items, playlistItem{Blank: &blank{Length: length}})
			}
		}
		doc.Playlists = append(doc.Playlists, pl)
		refs.Tracks = append(refs.Tracks, trackRef{Producer: pl.ID})
	}

	end, err := a.clock(tl.Duration())
	if err != nil {
		return nil, err
	}
	doc.Tractor = &tractor{
		ID:         "tractor0",
		Title:      tl.Name,
		In:         "00:00:00.000",
		Out:        end,
		Multitrack: &refs,
	}
	doc.Tractor.ExtraAttrs = dialect.RawAttrsFor("tractor", tl.ExtraAttrs)
	doc.Extras = dialect.RawToFragments(tl.Extras)

	var buf bytes.Buffer
	buf.WriteString(headerLine)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, services.Wrap(services.ErrParse, "mlt", "serialize", "encode document", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func (a *adapter) serializeClip(clip *timeline.Clip, ti, ei int, usedIDs map[string]bool) (producer, entry, error) {
	id := clip.ID
	if id == "" {
		id = fmt.Sprintf("producer_t%d_%d", ti, ei)
	}
	for usedIDs[id] {
		id += "_"
	}
	usedIDs[id] = true

	in := clip.Source.In
	out := clip.Source.Out
	if out.Cmp(in) <= 0 {
		out = in.Add(clip.Duration)
	}

	inClock, err := a.clock(in)
	if err != nil {
		return producer{}, entry{}, err
	}
	outClock, err := a.clock(out)
	if err != nil {
		return producer{}, entry{}, err
	}

	p := producer{
		ID: id,
		Properties: []property{
			{Name: propResource, Value: clip.Source.Path},
			{Name: propService, Value: "avformat"},
		},
		Extras:     dialect.RawToFragments(clip.Extras),
		ExtraAttrs: dialect.RawAttrsFor("producer", clip.ExtraAttrs),
	}
	if clip.Name != "" {
		p.Properties = append(p.Properties, property{Name: propCaption, Value: clip.Name})
	}
	for i, record := range clip.Effects {
		p.Filters = append(p.Filters, serializeFilter(record, id, i))
	}

	return p, entry{Producer: id, In: inClock, Out: outClock}, nil
}

func serializeFilter(record timeline.EffectRecord, producerID string, index int) filter {
	f := filter{
		ID:      fmt.Sprintf("%s_fx%d", producerID, index),
		Service: record.Stage,
	}
	for _, name := range sortedKeys(record.Params) {
		f.Properties = append(f.Properties, property{Name: name, Value: record.Params[name]})
	}
	if record.OutputHash != "" {
		f.Properties = append(f.Properties, property{Name: propOutputHash, Value: record.OutputHash})
	}
	return f
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
