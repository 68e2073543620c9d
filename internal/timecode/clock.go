package timecode

import (
	"fmt"
	"strconv"
	"strings"

	"loom/internal/services"
)

// ParseClock decodes a track-dialect clock string ("HH:MM:SS.mmm") to an
// exact rational. Seconds may omit the fractional part; negative values are
// rejected because clock positions are absolute.
func ParseClock(value string) (Rational, error) {
	trimmed := strings.TrimSpace(value)
	parts := strings.Split(trimmed, ":")
	if len(parts) != 3 {
		return Rational{}, services.Wrap(services.ErrParse, "timecode", "parse clock",
			fmt.Sprintf("expected HH:MM:SS.mmm, got %q", value), nil)
	}

	hours, err := parseClockComponent(parts[0], value)
	if err != nil {
		return Rational{}, err
	}
	minutes, err := parseClockComponent(parts[1], value)
	if err != nil {
		return Rational{}, err
	}
	if minutes > 59 {
		return Rational{}, services.Wrap(services.ErrParse, "timecode", "parse clock",
			fmt.Sprintf("minutes out of range in %q", value), nil)
	}

	secPart, msPart, hasFraction := strings.Cut(parts[2], ".")
	seconds, err := parseClockComponent(secPart, value)
	if err != nil {
		return Rational{}, err
	}
	if seconds > 59 {
		return Rational{}, services.Wrap(services.ErrParse, "timecode", "parse clock",
			fmt.Sprintf("seconds out of range in %q", value), nil)
	}

	var millis int64
	if hasFraction {
		if len(msPart) == 0 || len(msPart) > 3 {
			return Rational{}, services.Wrap(services.ErrParse, "timecode", "parse clock",
				fmt.Sprintf("fractional seconds must be 1-3 digits in %q", value), nil)
		}
		millis, err = parseClockComponent(msPart, value)
		if err != nil {
			return Rational{}, err
		}
		// ".5" means 500ms, ".05" means 50ms.
		for i := len(msPart); i < 3; i++ {
			millis *= 10
		}
	}

	total := ((hours*3600+minutes*60+seconds)*1000 + millis)
	return reduce(total, 1000), nil
}

// FormatClock renders an exact rational as "HH:MM:SS.mmm". Values carrying
// sub-millisecond precision cannot be represented and return a
// precision-loss error rather than rounding silently.
func FormatClock(r Rational) (string, error) {
	if r.Sign() < 0 {
		return "", services.Wrap(services.ErrPrecisionLoss, "timecode", "format clock",
			fmt.Sprintf("negative time %s has no clock representation", r), nil)
	}
	inMillis := r.MulInt(1000)
	if inMillis.Den() != 1 {
		return "", services.Wrap(services.ErrPrecisionLoss, "timecode", "format clock",
			fmt.Sprintf("%s seconds carries sub-millisecond precision", r), nil)
	}
	total := inMillis.Num()
	millis := total % 1000
	totalSeconds := total / 1000
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, seconds, millis), nil
}

func parseClockComponent(raw, original string) (int64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.IndexFunc(trimmed, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return 0, services.Wrap(services.ErrParse, "timecode", "parse clock",
			fmt.Sprintf("bad component %q in %q", raw, original), nil)
	}
	v, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, services.Wrap(services.ErrParse, "timecode", "parse clock",
			fmt.Sprintf("bad component %q in %q", raw, original), err)
	}
	return v, nil
}
