package timecode

import (
	"fmt"
	"strconv"
	"strings"

	"loom/internal/services"
)

// Rational is an exact fractional time value in seconds. The zero value is
// zero seconds. Values are always normalized: lowest terms, denominator
// positive, sign carried by the numerator.
type Rational struct {
	num int64
	den int64
}

// Zero is the zero time value.
var Zero = Rational{num: 0, den: 1}

// New constructs a normalized rational from a numerator and denominator.
func New(num, den int64) (Rational, error) {
	if den == 0 {
		return Rational{}, services.Wrap(services.ErrConfiguration, "timecode", "new", "zero denominator", nil)
	}
	return reduce(num, den), nil
}

// MustNew constructs a rational and panics on a zero denominator. Intended
// for constants and tests.
func MustNew(num, den int64) Rational {
	r, err := New(num, den)
	if err != nil {
		panic(err)
	}
	return r
}

// FromInt constructs a whole-second rational.
func FromInt(seconds int64) Rational {
	return Rational{num: seconds, den: 1}
}

// Num returns the normalized numerator.
func (r Rational) Num() int64 { return r.normalized().num }

// Den returns the normalized denominator.
func (r Rational) Den() int64 { return r.normalized().den }

func (r Rational) normalized() Rational {
	if r.den == 0 {
		return Zero
	}
	return r
}

// Add returns r + other exactly.
func (r Rational) Add(other Rational) Rational {
	a, b := r.normalized(), other.normalized()
	g := gcd(a.den, b.den)
	lhs := a.num * (b.den / g)
	rhs := b.num * (a.den / g)
	return reduce(lhs+rhs, a.den/g*b.den)
}

// Sub returns r - other exactly.
func (r Rational) Sub(other Rational) Rational {
	return r.Add(other.Neg())
}

// Neg returns the negated value.
func (r Rational) Neg() Rational {
	n := r.normalized()
	return Rational{num: -n.num, den: n.den}
}

// Mul returns r * other exactly, cross-reducing first to limit overflow.
func (r Rational) Mul(other Rational) Rational {
	a, b := r.normalized(), other.normalized()
	g1 := gcd(abs(a.num), b.den)
	g2 := gcd(abs(b.num), a.den)
	return reduce((a.num/g1)*(b.num/g2), (a.den/g2)*(b.den/g1))
}

// MulInt returns r * n exactly.
func (r Rational) MulInt(n int64) Rational {
	return r.Mul(FromInt(n))
}

// Cmp compares r against other: -1 when less, 0 when equal, 1 when greater.
func (r Rational) Cmp(other Rational) int {
	diff := r.Sub(other)
	switch {
	case diff.num < 0:
		return -1
	case diff.num > 0:
		return 1
	default:
		return 0
	}
}

// Less reports whether r < other.
func (r Rational) Less(other Rational) bool { return r.Cmp(other) < 0 }

// Equal reports whether r and other denote the same instant.
func (r Rational) Equal(other Rational) bool { return r.Cmp(other) == 0 }

// IsZero reports whether r is exactly zero.
func (r Rational) IsZero() bool { return r.normalized().num == 0 }

// Sign returns -1, 0, or 1.
func (r Rational) Sign() int {
	switch n := r.normalized(); {
	case n.num < 0:
		return -1
	case n.num > 0:
		return 1
	default:
		return 0
	}
}

// Seconds returns a float approximation for display only. Never use the
// result for timeline arithmetic.
func (r Rational) Seconds() float64 {
	n := r.normalized()
	return float64(n.num) / float64(n.den)
}

// String renders the value as "N/D" (or "N" for whole seconds).
func (r Rational) String() string {
	n := r.normalized()
	if n.den == 1 {
		return strconv.FormatInt(n.num, 10)
	}
	return fmt.Sprintf("%d/%d", n.num, n.den)
}

// Frames converts the value to a frame count at the given frame rate. The
// conversion must be exact: a value that does not land on a frame boundary
// returns a precision-loss error instead of rounding.
func (r Rational) Frames(fps Rational) (int64, error) {
	if fps.Sign() <= 0 {
		return 0, services.Wrap(services.ErrConfiguration, "timecode", "frames", "frame rate must be positive", nil)
	}
	product := r.Mul(fps)
	if product.Den() != 1 {
		return 0, services.Wrap(services.ErrPrecisionLoss, "timecode", "frames",
			fmt.Sprintf("%s seconds is not an integral frame count at %s fps", r, fps), nil)
	}
	return product.Num(), nil
}

// FromFrames converts a frame count at the given frame rate to an exact time.
func FromFrames(frames int64, fps Rational) (Rational, error) {
	if fps.Sign() <= 0 {
		return Rational{}, services.Wrap(services.ErrConfiguration, "timecode", "from frames", "frame rate must be positive", nil)
	}
	n := fps.normalized()
	return reduce(frames*n.den, n.num), nil
}

// Parse decodes a rational seconds string as used by the sequence dialect:
// "N/Ds", "Ns", with the trailing unit optional.
func Parse(value string) (Rational, error) {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimSuffix(trimmed, "s")
	if trimmed == "" {
		return Rational{}, services.Wrap(services.ErrParse, "timecode", "parse", "empty rational time", nil)
	}
	if num, den, ok := strings.Cut(trimmed, "/"); ok {
		n, err := strconv.ParseInt(num, 10, 64)
		if err != nil {
			return Rational{}, services.Wrap(services.ErrParse, "timecode", "parse", fmt.Sprintf("bad numerator %q", value), err)
		}
		d, err := strconv.ParseInt(den, 10, 64)
		if err != nil {
			return Rational{}, services.Wrap(services.ErrParse, "timecode", "parse", fmt.Sprintf("bad denominator %q", value), err)
		}
		if d == 0 {
			return Rational{}, services.Wrap(services.ErrParse, "timecode", "parse", fmt.Sprintf("zero denominator in %q", value), nil)
		}
		return reduce(n, d), nil
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return Rational{}, services.Wrap(services.ErrParse, "timecode", "parse", fmt.Sprintf("bad rational time %q", value), err)
	}
	return FromInt(n), nil
}

// Format renders the value in the sequence dialect encoding: "N/Ds" with
// whole seconds collapsing to "Ns".
func Format(r Rational) string {
	n := r.normalized()
	if n.den == 1 {
		return strconv.FormatInt(n.num, 10) + "s"
	}
	return fmt.Sprintf("%d/%ds", n.num, n.den)
}

func reduce(num, den int64) Rational {
	if den < 0 {
		num, den = -num, -den
	}
	g := gcd(abs(num), den)
	if g > 1 {
		num /= g
		den /= g
	}
	if den == 0 {
		den = 1
	}
	return Rational{num: num, den: den}
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
