package stage

import (
	"context"
	"fmt"

	"loom/internal/media/ffprobe"
	"loom/internal/services"
	"loom/internal/timecode"
)

// Expect describes the structural properties a stage output must match
// before it may replace the original clip.
type Expect struct {
	Duration  timecode.Rational
	FrameRate timecode.Rational
	Width     int
	Height    int
}

// Prober inspects a media file. Tests substitute a stub.
type Prober func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Verifier checks processed clips against their expected duration and
// frame size.
type Verifier struct {
	binary string
	probe  Prober
}

// NewVerifier constructs a verifier using the given ffprobe binary.
func NewVerifier(binary string) *Verifier {
	return &Verifier{binary: binary, probe: ffprobe.Inspect}
}

// WithProber overrides media inspection for tests.
func (v *Verifier) WithProber(probe Prober) *Verifier {
	v.probe = probe
	return v
}

// Verify probes path and confirms its duration lies within one frame of
// the expectation and its frame size matches exactly.
func (v *Verifier) Verify(ctx context.Context, path string, want Expect) error {
	result, err := v.probe(ctx, v.binary, path)
	if err != nil {
		return services.Wrap(services.ErrVerification, "verify", "probe",
			fmt.Sprintf("cannot inspect %s", path), err)
	}

	if want.Width > 0 && want.Height > 0 {
		width, height := result.Resolution()
		if width != want.Width || height != want.Height {
			return services.Wrap(services.ErrVerification, "verify", "resolution",
				fmt.Sprintf("got %dx%d, want %dx%d", width, height, want.Width, want.Height), nil)
		}
	}

	if want.Duration.Sign() > 0 {
		got, err := result.Duration()
		if err != nil {
			return services.Wrap(services.ErrVerification, "verify", "duration",
				fmt.Sprintf("no duration reported for %s", path), err)
		}
		tolerance := frameTolerance(want.FrameRate)
		diff := got.Sub(want.Duration)
		if diff.Sign() < 0 {
			diff = timecode.Zero.Sub(diff)
		}
		if tolerance.Less(diff) {
			return services.Wrap(services.ErrVerification, "verify", "duration",
				fmt.Sprintf("duration %s deviates from %s by more than one frame",
					timecode.Format(got), timecode.Format(want.Duration)), nil)
		}
	}
	return nil
}

// frameTolerance is one frame period, or an exact-match requirement when
// no frame rate is known.
func frameTolerance(fps timecode.Rational) timecode.Rational {
	if fps.Sign() <= 0 {
		return timecode.Zero
	}
	return timecode.MustNew(fps.Den(), fps.Num())
}
