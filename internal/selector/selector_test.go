package selector_test

import (
	"errors"
	"reflect"
	"testing"

	"loom/internal/selector"
	"loom/internal/services"
	"loom/internal/timecode"
	"loom/internal/timeline"
)

func buildTimeline() *timeline.Timeline {
	sec := timecode.FromInt
	clip := func(id, name, path string, dur int64) *timeline.Clip {
		return &timeline.Clip{
			ID:       id,
			Name:     name,
			Source:   timeline.MediaRef{Path: path, In: sec(0), Out: sec(dur)},
			Duration: sec(dur),
		}
	}
	return &timeline.Timeline{
		FrameRate: timecode.MustNew(30, 1),
		Width:     1920,
		Height:    1080,
		Tracks: []*timeline.Track{
			{
				Kind: timeline.TrackVideo,
				Elements: []timeline.Element{
					clip("v1", "intro", "/media/intro.mov", 2),
					clip("v2", "hoodie take 1", "/media/hoodie.m4v", 3),
					&timeline.Gap{Duration: sec(1)},
					clip("v3", "hoodie take 2", "/media/hoodie.m4v", 2),
				},
			},
			{
				Kind: timeline.TrackAudio,
				Elements: []timeline.Element{
					clip("a1", "hoodie mix", "/media/mix.wav", 8),
				},
			},
		},
	}
}

func refs(pairs ...[2]int) []timeline.ClipRef {
	out := make([]timeline.ClipRef, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, timeline.ClipRef{Track: p[0], Element: p[1]})
	}
	return out
}

func TestMatchCombinations(t *testing.T) {
	tl := buildTimeline()
	cases := []struct {
		name     string
		criteria selector.Criteria
		want     []timeline.ClipRef
	}{
		{
			"substring name",
			selector.Criteria{NamePattern: "hoodie"},
			refs([2]int{0, 1}, [2]int{0, 3}, [2]int{1, 0}),
		},
		{
			"regex name",
			selector.Criteria{NamePattern: "/take \\d+$/"},
			refs([2]int{0, 1}, [2]int{0, 3}),
		},
		{
			"name and kind",
			selector.Criteria{NamePattern: "hoodie", TrackKind: timeline.TrackVideo},
			refs([2]int{0, 1}, [2]int{0, 3}),
		},
		{
			"source pattern",
			selector.Criteria{SourcePathPattern: ".m4v"},
			refs([2]int{0, 1}, [2]int{0, 3}),
		},
		{
			"time range overlap",
			selector.Criteria{
				NamePattern: "hoodie",
				TimeRange:   &selector.TimeRange{Start: timecode.FromInt(6), End: timecode.FromInt(7)},
			},
			refs([2]int{0, 3}, [2]int{1, 0}),
		},
		{
			"range boundary is half open",
			selector.Criteria{
				NamePattern: "intro",
				TimeRange:   &selector.TimeRange{Start: timecode.FromInt(2), End: timecode.FromInt(3)},
			},
			nil,
		},
		{
			"all criteria together",
			selector.Criteria{
				NamePattern:       "hoodie",
				TrackKind:         timeline.TrackVideo,
				SourcePathPattern: "hoodie.m4v",
				TimeRange:         &selector.TimeRange{Start: timecode.FromInt(0), End: timecode.FromInt(4)},
			},
			refs([2]int{0, 1}),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := selector.Match(tl, tc.criteria)
			if err != nil {
				t.Fatalf("Match: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Match = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEmptyCriteriaMatchNothing(t *testing.T) {
	got, err := selector.Match(buildTimeline(), selector.Criteria{})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("empty criteria matched %d clips", len(got))
	}
}

func TestMatchIsDeterministic(t *testing.T) {
	tl := buildTimeline()
	criteria := selector.Criteria{NamePattern: "hoodie"}
	first, err := selector.Match(tl, criteria)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := selector.Match(tl, criteria)
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("iteration %d produced different order: %v vs %v", i, again, first)
		}
	}
}

func TestCompileRejections(t *testing.T) {
	cases := []selector.Criteria{
		{NamePattern: "/[unclosed/"},
		{TrackKind: "subtitle"},
		{TimeRange: &selector.TimeRange{Start: timecode.FromInt(5), End: timecode.FromInt(5)}},
		{TimeRange: &selector.TimeRange{Start: timecode.FromInt(5), End: timecode.FromInt(2)}},
	}
	for _, criteria := range cases {
		if _, err := criteria.Compile(); err == nil {
			t.Fatalf("Compile(%+v) should fail", criteria)
		} else if !errors.Is(err, services.ErrSelector) {
			t.Fatalf("expected selector error, got %v", err)
		}
	}
}

func TestParseExpr(t *testing.T) {
	criteria, err := selector.ParseExpr("name=hoodie, kind=video, range=2s..7/2s, source=.m4v")
	if err != nil {
		t.Fatalf("ParseExpr: %v", err)
	}
	if criteria.NamePattern != "hoodie" || criteria.TrackKind != timeline.TrackVideo {
		t.Fatalf("unexpected criteria %+v", criteria)
	}
	if criteria.SourcePathPattern != ".m4v" {
		t.Fatalf("source pattern %q", criteria.SourcePathPattern)
	}
	if criteria.TimeRange == nil ||
		!criteria.TimeRange.Start.Equal(timecode.FromInt(2)) ||
		!criteria.TimeRange.End.Equal(timecode.MustNew(7, 2)) {
		t.Fatalf("unexpected range %+v", criteria.TimeRange)
	}

	clocked, err := selector.ParseExpr("range=00:00:02.000..00:00:05.000")
	if err != nil {
		t.Fatalf("ParseExpr: %v", err)
	}
	if !clocked.TimeRange.Start.Equal(timecode.FromInt(2)) || !clocked.TimeRange.End.Equal(timecode.FromInt(5)) {
		t.Fatalf("unexpected clock range %+v", clocked.TimeRange)
	}

	for _, bad := range []string{"bogus", "verb=x", "range=1s", "range=x..y"} {
		if _, err := selector.ParseExpr(bad); err == nil {
			t.Fatalf("ParseExpr(%q) should fail", bad)
		} else if !errors.Is(err, services.ErrSelector) {
			t.Fatalf("ParseExpr(%q): expected selector error, got %v", bad, err)
		}
	}
}
