package selector

import (
	"fmt"
	"strings"

	"loom/internal/services"
	"loom/internal/timecode"
	"loom/internal/timeline"
)

// ParseExpr decodes the CLI criteria expression, a comma-separated list of
// key=value pairs:
//
//	name=hoodie,kind=video,range=2s..5s,source=.m4v
//
// Recognized keys: name, kind, range, source. Range bounds accept the
// rational form ("7/2s") or a clock string ("00:00:02.000").
func ParseExpr(expr string) (Criteria, error) {
	var criteria Criteria
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return criteria, nil
	}
	for _, part := range strings.Split(trimmed, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return Criteria{}, services.Wrap(services.ErrSelector, "selector", "parse expression",
				fmt.Sprintf("expected key=value, got %q", part), nil)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "name":
			criteria.NamePattern = value
		case "kind":
			criteria.TrackKind = timeline.TrackKind(strings.ToLower(value))
		case "source":
			criteria.SourcePathPattern = value
		case "range":
			r, err := parseRange(value)
			if err != nil {
				return Criteria{}, err
			}
			criteria.TimeRange = r
		default:
			return Criteria{}, services.Wrap(services.ErrSelector, "selector", "parse expression",
				fmt.Sprintf("unknown criteria key %q", key), nil)
		}
	}
	return criteria, nil
}

func parseRange(value string) (*TimeRange, error) {
	start, end, ok := strings.Cut(value, "..")
	if !ok {
		return nil, services.Wrap(services.ErrSelector, "selector", "parse expression",
			fmt.Sprintf("range must be start..end, got %q", value), nil)
	}
	from, err := parseBound(start)
	if err != nil {
		return nil, err
	}
	to, err := parseBound(end)
	if err != nil {
		return nil, err
	}
	return &TimeRange{Start: from, End: to}, nil
}

func parseBound(value string) (timecode.Rational, error) {
	trimmed := strings.TrimSpace(value)
	if strings.Count(trimmed, ":") == 2 {
		r, err := timecode.ParseClock(trimmed)
		if err != nil {
			return timecode.Rational{}, services.Wrap(services.ErrSelector, "selector", "parse expression",
				fmt.Sprintf("bad range bound %q", value), err)
		}
		return r, nil
	}
	r, err := timecode.Parse(trimmed)
	if err != nil {
		return timecode.Rational{}, services.Wrap(services.ErrSelector, "selector", "parse expression",
			fmt.Sprintf("bad range bound %q", value), err)
	}
	return r, nil
}
