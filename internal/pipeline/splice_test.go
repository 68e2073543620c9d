package pipeline

import (
	"errors"
	"testing"

	"loom/internal/services"
	"loom/internal/timecode"
	"loom/internal/timeline"
)

func spliceTimeline() *timeline.Timeline {
	return &timeline.Timeline{
		Name:      "demo",
		FrameRate: timecode.MustNew(30, 1),
		Width:     1920,
		Height:    1080,
		Tracks: []*timeline.Track{
			{
				Kind: timeline.TrackVideo,
				Name: "V1",
				Elements: []timeline.Element{
					&timeline.Clip{
						ID:   "clip0",
						Name: "intro",
						Source: timeline.MediaRef{
							Path: "/media/intro.mov",
							In:   timecode.Zero,
							Out:  timecode.FromInt(2),
						},
						Duration: timecode.FromInt(2),
					},
					&timeline.Gap{Duration: timecode.FromInt(1)},
					&timeline.Clip{
						ID:   "clip1",
						Name: "hoodie",
						Source: timeline.MediaRef{
							Path: "/media/hoodie.m4v",
							In:   timecode.FromInt(4),
							Out:  timecode.FromInt(7),
						},
						Duration: timecode.FromInt(3),
					},
				},
			},
		},
	}
}

func TestSpliceReplacesSourceInPlace(t *testing.T) {
	tl := spliceTimeline()
	ref := timeline.ClipRef{Track: 0, Element: 2}
	before := tl.Duration()

	err := Splice(tl, Replacement{
		Ref:      ref,
		Path:     "/work/clip1_out.mp4",
		Duration: timecode.FromInt(3),
		Effects: []timeline.EffectRecord{
			{Stage: "keying", Params: map[string]string{"key_color": "#505191"}, OutputHash: "abc"},
		},
	})
	if err != nil {
		t.Fatalf("Splice: %v", err)
	}

	clip, err := ref.Resolve(tl)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if clip.Source.Path != "/work/clip1_out.mp4" {
		t.Fatalf("source not replaced: %+v", clip.Source)
	}
	if !clip.Source.In.IsZero() || clip.Source.Out.Cmp(timecode.FromInt(3)) != 0 {
		t.Fatalf("replacement span not rebased: %+v", clip.Source)
	}
	if len(clip.Effects) != 1 || clip.Effects[0].Stage != "keying" {
		t.Fatalf("effects not recorded: %+v", clip.Effects)
	}
	if tl.Duration().Cmp(before) != 0 {
		t.Fatalf("timeline duration changed: %s", timecode.Format(tl.Duration()))
	}
}

func TestSpliceRejectsDurationMismatch(t *testing.T) {
	tl := spliceTimeline()
	err := Splice(tl, Replacement{
		Ref:      timeline.ClipRef{Track: 0, Element: 2},
		Path:     "/work/clip1_out.mp4",
		Duration: timecode.MustNew(31, 10),
	})
	if !errors.Is(err, services.ErrSplice) {
		t.Fatalf("Splice = %v, want splice error", err)
	}

	// The clip must be untouched after a rejected splice.
	clip, resolveErr := (timeline.ClipRef{Track: 0, Element: 2}).Resolve(tl)
	if resolveErr != nil {
		t.Fatalf("Resolve: %v", resolveErr)
	}
	if clip.Source.Path != "/media/hoodie.m4v" {
		t.Fatalf("clip mutated by failed splice: %+v", clip.Source)
	}
}

func TestSpliceRejectsGapTarget(t *testing.T) {
	tl := spliceTimeline()
	err := Splice(tl, Replacement{
		Ref:      timeline.ClipRef{Track: 0, Element: 1},
		Path:     "/work/out.mp4",
		Duration: timecode.FromInt(1),
	})
	if !errors.Is(err, services.ErrSplice) {
		t.Fatalf("Splice = %v, want splice error", err)
	}
}

func TestSpliceAllAppliesInStartOrder(t *testing.T) {
	tl := spliceTimeline()
	failed, err := SpliceAll(tl, []Replacement{
		{Ref: timeline.ClipRef{Track: 0, Element: 2}, Path: "/work/b.mp4", Duration: timecode.FromInt(3)},
		{Ref: timeline.ClipRef{Track: 0, Element: 0}, Path: "/work/a.mp4", Duration: timecode.FromInt(2)},
	})
	if err != nil {
		t.Fatalf("SpliceAll: %v", err)
	}
	if len(failed) != 0 {
		t.Fatalf("unexpected failures: %v", failed)
	}
	first, _ := (timeline.ClipRef{Track: 0, Element: 0}).Resolve(tl)
	second, _ := (timeline.ClipRef{Track: 0, Element: 2}).Resolve(tl)
	if first.Source.Path != "/work/a.mp4" || second.Source.Path != "/work/b.mp4" {
		t.Fatalf("replacements misapplied: %q, %q", first.Source.Path, second.Source.Path)
	}
}

func TestSpliceAllKeepsGoingPastFailedReplacement(t *testing.T) {
	tl := spliceTimeline()
	failed, err := SpliceAll(tl, []Replacement{
		{Ref: timeline.ClipRef{Track: 0, Element: 0}, Path: "/work/a.mp4", Duration: timecode.MustNew(5, 2)},
		{Ref: timeline.ClipRef{Track: 0, Element: 2}, Path: "/work/b.mp4", Duration: timecode.FromInt(3)},
	})
	if err != nil {
		t.Fatalf("SpliceAll: %v", err)
	}
	if len(failed) != 1 || !errors.Is(failed[0], services.ErrSplice) {
		t.Fatalf("failures = %v, want splice error for index 0", failed)
	}

	// The mismatched replacement leaves its clip alone; the good one
	// still lands.
	first, _ := (timeline.ClipRef{Track: 0, Element: 0}).Resolve(tl)
	second, _ := (timeline.ClipRef{Track: 0, Element: 2}).Resolve(tl)
	if first.Source.Path != "/media/intro.mov" {
		t.Fatalf("failed replacement mutated clip: %q", first.Source.Path)
	}
	if second.Source.Path != "/work/b.mp4" {
		t.Fatalf("good replacement not applied: %q", second.Source.Path)
	}
	if tl.Duration().Cmp(timecode.FromInt(6)) != 0 {
		t.Fatalf("timeline duration changed: %s", timecode.Format(tl.Duration()))
	}
}
