package pipeline

import (
	"fmt"
	"sort"

	"loom/internal/services"
	"loom/internal/timecode"
	"loom/internal/timeline"
)

// Replacement pairs a clip reference with its processed artifact.
type Replacement struct {
	Ref      timeline.ClipRef
	Path     string
	Duration timecode.Rational
	Effects  []timeline.EffectRecord
}

// Splice swaps a clip's source for its processed artifact. The artifact
// must match the clip's placed duration exactly: the new source is
// consumed from zero for the full clip length, so every other element's
// derived start is untouched.
func Splice(tl *timeline.Timeline, r Replacement) error {
	clip, err := r.Ref.Resolve(tl)
	if err != nil {
		return err
	}
	if r.Duration.Cmp(clip.Duration) != 0 {
		return services.Wrap(services.ErrSplice, "splice", r.Ref.String(),
			fmt.Sprintf("artifact duration %s does not match clip duration %s",
				timecode.Format(r.Duration), timecode.Format(clip.Duration)), nil)
	}
	if r.Path == "" {
		return services.Wrap(services.ErrSplice, "splice", r.Ref.String(), "artifact has no path", nil)
	}

	clip.Source = timeline.MediaRef{
		Path: r.Path,
		In:   timecode.Zero,
		Out:  clip.Duration,
	}
	clip.Effects = append(clip.Effects, r.Effects...)
	return nil
}

// SpliceAll applies replacements in ascending start-time order. A failed
// replacement leaves its clip untouched and does not stop the rest; the
// returned map keys failures by index into replacements. The timeline's
// total duration is checked before and after so a faulty replacement
// cannot slip through.
func SpliceAll(tl *timeline.Timeline, replacements []Replacement) (map[int]error, error) {
	before := tl.Duration()

	order := make([]int, len(replacements))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return replacements[order[i]].Ref.Start(tl).Less(replacements[order[j]].Ref.Start(tl))
	})

	var failed map[int]error
	for _, i := range order {
		if err := Splice(tl, replacements[i]); err != nil {
			if failed == nil {
				failed = map[int]error{}
			}
			failed[i] = err
		}
	}

	if after := tl.Duration(); after.Cmp(before) != 0 {
		return failed, services.Wrap(services.ErrSplice, "splice", "all",
			fmt.Sprintf("timeline duration changed from %s to %s",
				timecode.Format(before), timecode.Format(after)), nil)
	}
	return failed, nil
}
