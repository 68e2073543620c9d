package timeline

import (
	"fmt"

	"loom/internal/services"
)

// Validate checks the structural invariants the pipeline depends on: every
// element has a positive duration, clip source ranges are ordered, and a
// clip that carries a source range covers exactly its placed duration.
// Contiguity needs no check because starts are derived from prior durations.
func (tl *Timeline) Validate() error {
	if tl == nil {
		return services.Wrap(services.ErrParse, "timeline", "validate", "nil timeline", nil)
	}
	if tl.FrameRate.Sign() <= 0 {
		return services.Wrap(services.ErrParse, "timeline", "validate", "frame rate must be positive", nil)
	}
	for ti, track := range tl.Tracks {
		if track.Kind != TrackVideo && track.Kind != TrackAudio {
			return services.Wrap(services.ErrParse, "timeline", "validate",
				fmt.Sprintf("track %d: unknown kind %q", ti, track.Kind), nil)
		}
		for ei, el := range track.Elements {
			if el.Length().Sign() <= 0 {
				return services.Wrap(services.ErrParse, "timeline", "validate",
					fmt.Sprintf("track %d element %d: non-positive duration %s", ti, ei, el.Length()), nil)
			}
			clip, ok := el.(*Clip)
			if !ok {
				continue
			}
			if clip.Source.Path == "" {
				return services.Wrap(services.ErrParse, "timeline", "validate",
					fmt.Sprintf("track %d element %d: clip without media reference", ti, ei), nil)
			}
			if clip.Source.Out.Less(clip.Source.In) {
				return services.Wrap(services.ErrParse, "timeline", "validate",
					fmt.Sprintf("track %d element %d: source out %s precedes in %s",
						ti, ei, clip.Source.Out, clip.Source.In), nil)
			}
			if !clip.Source.Out.IsZero() && !clip.Source.SpanDuration().Equal(clip.Duration) {
				return services.Wrap(services.ErrParse, "timeline", "validate",
					fmt.Sprintf("track %d element %d: source span %s does not match duration %s",
						ti, ei, clip.Source.SpanDuration(), clip.Duration), nil)
			}
		}
	}
	return nil
}
