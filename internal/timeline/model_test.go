package timeline_test

import (
	"errors"
	"testing"

	"loom/internal/services"
	"loom/internal/timecode"
	"loom/internal/timeline"
)

func sampleTimeline() *timeline.Timeline {
	sec := timecode.FromInt
	return &timeline.Timeline{
		Name:      "sample",
		FrameRate: timecode.MustNew(30, 1),
		Width:     1920,
		Height:    1080,
		Tracks: []*timeline.Track{
			{
				Kind: timeline.TrackVideo,
				Name: "V1",
				Elements: []timeline.Element{
					&timeline.Clip{
						ID:       "c1",
						Name:     "intro",
						Source:   timeline.MediaRef{Path: "/media/a.mov", In: sec(0), Out: sec(2)},
						Duration: sec(2),
					},
					&timeline.Gap{Duration: sec(1)},
					&timeline.Clip{
						ID:       "c2",
						Name:     "hoodie",
						Source:   timeline.MediaRef{Path: "/media/b.mov", In: sec(4), Out: sec(7)},
						Duration: sec(3),
					},
				},
			},
			{
				Kind: timeline.TrackAudio,
				Name: "A1",
				Elements: []timeline.Element{
					&timeline.Clip{
						ID:       "c3",
						Name:     "music",
						Source:   timeline.MediaRef{Path: "/media/m.wav", In: sec(0), Out: sec(4)},
						Duration: sec(4),
					},
				},
			},
		},
	}
}

func TestDerivedStartsAndDuration(t *testing.T) {
	tl := sampleTimeline()
	track := tl.Tracks[0]

	if start := track.StartOf(0); !start.IsZero() {
		t.Fatalf("first element starts at %s, want 0", start)
	}
	if start := track.StartOf(2); !start.Equal(timecode.FromInt(3)) {
		t.Fatalf("third element starts at %s, want 3", start)
	}
	if end := track.Duration(); !end.Equal(timecode.FromInt(6)) {
		t.Fatalf("track duration %s, want 6", end)
	}
	if total := tl.Duration(); !total.Equal(timecode.FromInt(6)) {
		t.Fatalf("timeline duration %s, want 6", total)
	}
}

func TestValidateAcceptsSample(t *testing.T) {
	if err := sampleTimeline().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*timeline.Timeline)
	}{
		{"zero frame rate", func(tl *timeline.Timeline) { tl.FrameRate = timecode.Zero }},
		{"unknown track kind", func(tl *timeline.Timeline) { tl.Tracks[0].Kind = "subtitle" }},
		{"zero duration element", func(tl *timeline.Timeline) {
			tl.Tracks[0].Elements[1] = &timeline.Gap{}
		}},
		{"clip without media", func(tl *timeline.Timeline) {
			tl.Tracks[0].Elements[0].(*timeline.Clip).Source.Path = ""
		}},
		{"inverted source range", func(tl *timeline.Timeline) {
			clip := tl.Tracks[0].Elements[0].(*timeline.Clip)
			clip.Source.In, clip.Source.Out = clip.Source.Out, clip.Source.In
		}},
		{"span duration mismatch", func(tl *timeline.Timeline) {
			tl.Tracks[0].Elements[2].(*timeline.Clip).Duration = timecode.FromInt(5)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tl := sampleTimeline()
			tc.mutate(tl)
			err := tl.Validate()
			if err == nil {
				t.Fatal("expected validation failure")
			}
			if !errors.Is(err, services.ErrParse) {
				t.Fatalf("expected parse error, got %v", err)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	tl := sampleTimeline()
	tl.Tracks[0].Elements[0].(*timeline.Clip).Effects = []timeline.EffectRecord{
		{Stage: "keying", Params: map[string]string{"key_color": "#505191"}},
	}

	clone := tl.Clone()
	clone.Tracks[0].Elements[0].(*timeline.Clip).Name = "changed"
	clone.Tracks[0].Elements[0].(*timeline.Clip).Effects[0].Params["key_color"] = "#000000"
	clone.Tracks[1].Elements[0].(*timeline.Clip).Duration = timecode.FromInt(9)

	if tl.Tracks[0].Elements[0].(*timeline.Clip).Name != "intro" {
		t.Fatal("clone shares clip with original")
	}
	if tl.Tracks[0].Elements[0].(*timeline.Clip).Effects[0].Params["key_color"] != "#505191" {
		t.Fatal("clone shares effect params with original")
	}
	if !tl.Tracks[1].Elements[0].Length().Equal(timecode.FromInt(4)) {
		t.Fatal("clone shares audio clip with original")
	}
}

func TestClipRefResolve(t *testing.T) {
	tl := sampleTimeline()

	clip, err := (timeline.ClipRef{Track: 0, Element: 2}).Resolve(tl)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if clip.Name != "hoodie" {
		t.Fatalf("resolved %q, want hoodie", clip.Name)
	}

	if start := (timeline.ClipRef{Track: 0, Element: 2}).Start(tl); !start.Equal(timecode.FromInt(3)) {
		t.Fatalf("ref start %s, want 3", start)
	}

	for _, bad := range []timeline.ClipRef{
		{Track: 5, Element: 0},
		{Track: 0, Element: 9},
		{Track: 0, Element: 1}, // gap
	} {
		if _, err := bad.Resolve(tl); err == nil {
			t.Fatalf("Resolve(%s) should fail", bad)
		} else if !errors.Is(err, services.ErrSplice) {
			t.Fatalf("Resolve(%s): expected splice error, got %v", bad, err)
		}
	}
}
