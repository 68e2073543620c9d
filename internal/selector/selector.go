package selector

import (
	"fmt"
	"regexp"
	"strings"

	"loom/internal/services"
	"loom/internal/timecode"
	"loom/internal/timeline"
)

// TimeRange is a half-open [Start, End) interval on the timeline.
type TimeRange struct {
	Start timecode.Rational
	End   timecode.Rational
}

// Criteria filters clips. All supplied fields are AND-combined. Empty
// criteria match nothing so a run never mutates a whole timeline by
// accident.
type Criteria struct {
	// NamePattern matches the clip label: a plain substring, or a regular
	// expression when written as /expr/.
	NamePattern string
	// TrackKind restricts matches to video or audio tracks when set.
	TrackKind timeline.TrackKind
	// TimeRange keeps clips whose placed span overlaps the interval.
	TimeRange *TimeRange
	// SourcePathPattern is a substring match on the source media path.
	SourcePathPattern string
}

// IsEmpty reports whether no criteria fields are set.
func (c Criteria) IsEmpty() bool {
	return strings.TrimSpace(c.NamePattern) == "" &&
		c.TrackKind == "" &&
		c.TimeRange == nil &&
		strings.TrimSpace(c.SourcePathPattern) == ""
}

type compiled struct {
	criteria Criteria
	nameRe   *regexp.Regexp
}

// Compile validates the criteria ahead of dispatch. Invalid expressions are
// selector errors, caught before any clip is touched.
func (c Criteria) Compile() (Matcher, error) {
	out := compiled{criteria: c}
	name := strings.TrimSpace(c.NamePattern)
	if strings.HasPrefix(name, "/") && strings.HasSuffix(name, "/") && len(name) > 1 {
		re, err := regexp.Compile(name[1 : len(name)-1])
		if err != nil {
			return nil, services.Wrap(services.ErrSelector, "selector", "compile",
				fmt.Sprintf("invalid name pattern %q", name), err)
		}
		out.nameRe = re
	}
	if c.TrackKind != "" && c.TrackKind != timeline.TrackVideo && c.TrackKind != timeline.TrackAudio {
		return nil, services.Wrap(services.ErrSelector, "selector", "compile",
			fmt.Sprintf("unknown track kind %q", c.TrackKind), nil)
	}
	if c.TimeRange != nil && !c.TimeRange.Start.Less(c.TimeRange.End) {
		return nil, services.Wrap(services.ErrSelector, "selector", "compile",
			fmt.Sprintf("empty time range [%s, %s)", c.TimeRange.Start, c.TimeRange.End), nil)
	}
	return out, nil
}

// Matcher is a validated, reusable clip filter.
type Matcher interface {
	// Match returns references to every matching clip, ordered by track
	// index ascending then start time ascending. The same criteria against
	// the same timeline always yield the same ordered result.
	Match(*timeline.Timeline) []timeline.ClipRef
}

// Match compiles the criteria and evaluates them in one step.
func Match(tl *timeline.Timeline, c Criteria) ([]timeline.ClipRef, error) {
	m, err := c.Compile()
	if err != nil {
		return nil, err
	}
	return m.Match(tl), nil
}

func (m compiled) Match(tl *timeline.Timeline) []timeline.ClipRef {
	if tl == nil || m.criteria.IsEmpty() {
		return nil
	}
	var refs []timeline.ClipRef
	for ti, track := range tl.Tracks {
		if m.criteria.TrackKind != "" && track.Kind != m.criteria.TrackKind {
			continue
		}
		start := timecode.Zero
		for ei, el := range track.Elements {
			end := start.Add(el.Length())
			clip, ok := el.(*timeline.Clip)
			if ok && m.matchesClip(clip, start, end) {
				refs = append(refs, timeline.ClipRef{Track: ti, Element: ei})
			}
			start = end
		}
	}
	return refs
}

func (m compiled) matchesClip(clip *timeline.Clip, start, end timecode.Rational) bool {
	if name := strings.TrimSpace(m.criteria.NamePattern); name != "" {
		if m.nameRe != nil {
			if !m.nameRe.MatchString(clip.Name) {
				return false
			}
		} else if !strings.Contains(clip.Name, name) {
			return false
		}
	}
	if source := strings.TrimSpace(m.criteria.SourcePathPattern); source != "" {
		if !strings.Contains(clip.Source.Path, source) {
			return false
		}
	}
	if r := m.criteria.TimeRange; r != nil {
		// Half-open overlap: the clip [start, end) must intersect [r.Start, r.End).
		if !start.Less(r.End) || !r.Start.Less(end) {
			return false
		}
	}
	return true
}
