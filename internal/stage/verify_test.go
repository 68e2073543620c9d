package stage

import (
	"context"
	"errors"
	"testing"

	"loom/internal/media/ffprobe"
	"loom/internal/services"
	"loom/internal/timecode"
)

func stubProbe(result ffprobe.Result, err error) Prober {
	return func(_ context.Context, _, _ string) (ffprobe.Result, error) {
		return result, err
	}
}

func probeResult(width, height int, duration string) ffprobe.Result {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "video", Width: width, Height: height}},
		Format:  ffprobe.Format{Duration: duration},
	}
}

func TestVerifyAcceptsWithinOneFrame(t *testing.T) {
	// 3s at 24000/1001 fps with a half-frame deviation.
	v := NewVerifier("ffprobe").WithProber(stubProbe(probeResult(1920, 1080, "3.020000"), nil))
	err := v.Verify(context.Background(), "out.mp4", Expect{
		Duration:  timecode.FromInt(3),
		FrameRate: timecode.MustNew(24000, 1001),
		Width:     1920,
		Height:    1080,
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsDurationDrift(t *testing.T) {
	// Two frames long.
	v := NewVerifier("ffprobe").WithProber(stubProbe(probeResult(1920, 1080, "3.083416"), nil))
	err := v.Verify(context.Background(), "out.mp4", Expect{
		Duration:  timecode.FromInt(3),
		FrameRate: timecode.MustNew(24000, 1001),
		Width:     1920,
		Height:    1080,
	})
	if !errors.Is(err, services.ErrVerification) {
		t.Fatalf("Verify = %v, want verification error", err)
	}
}

func TestVerifyRejectsResolutionMismatch(t *testing.T) {
	v := NewVerifier("ffprobe").WithProber(stubProbe(probeResult(1280, 720, "3.000000"), nil))
	err := v.Verify(context.Background(), "out.mp4", Expect{
		Duration:  timecode.FromInt(3),
		FrameRate: timecode.MustNew(24000, 1001),
		Width:     1920,
		Height:    1080,
	})
	if !errors.Is(err, services.ErrVerification) {
		t.Fatalf("Verify = %v, want verification error", err)
	}
}

func TestVerifyWrapsProbeFailure(t *testing.T) {
	v := NewVerifier("ffprobe").WithProber(stubProbe(ffprobe.Result{}, errors.New("no such file")))
	err := v.Verify(context.Background(), "missing.mp4", Expect{Duration: timecode.FromInt(1)})
	if !errors.Is(err, services.ErrVerification) {
		t.Fatalf("Verify = %v, want verification error", err)
	}
}
