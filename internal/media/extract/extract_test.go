package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loom/internal/logging"
	"loom/internal/services"
	"loom/internal/timecode"
)

func TestExtractBuildsFrameAccurateCommand(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "input.mov")
	if err := os.WriteFile(source, []byte("media"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	output := filepath.Join(dir, "spans", "clip1.mp4")

	var gotName string
	var gotArgs []string
	e := New("ffmpeg", logging.NewNop())
	e.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		gotName = name
		gotArgs = args
		return os.WriteFile(output, []byte("out"), 0o644)
	})

	err := e.Extract(context.Background(), Request{
		Source:    source,
		In:        timecode.MustNew(1001, 24000).MulInt(100),
		Duration:  timecode.FromInt(3),
		FrameRate: timecode.MustNew(24000, 1001),
		Output:    output,
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if gotName != "ffmpeg" {
		t.Fatalf("unexpected binary %q", gotName)
	}
	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{
		"-ss 4.170833",
		"-t 3.000000",
		"-r 24000/1001",
		"-pix_fmt yuv420p",
		output,
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("command missing %q: %s", want, joined)
		}
	}
}

func TestExtractFailureRemovesOutput(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "input.mov")
	if err := os.WriteFile(source, []byte("media"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	output := filepath.Join(dir, "clip1.mp4")

	e := New("ffmpeg", logging.NewNop())
	e.WithCommandRunner(func(context.Context, string, ...string) error {
		_ = os.WriteFile(output, []byte("partial"), 0o644)
		return errors.New("boom")
	})

	err := e.Extract(context.Background(), Request{
		Source:   source,
		Duration: timecode.FromInt(1),
		Output:   output,
	})
	if !errors.Is(err, services.ErrStage) {
		t.Fatalf("expected stage error, got %v", err)
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Fatal("expected partial output to be removed")
	}
}

func TestExtractValidatesRequest(t *testing.T) {
	e := New("ffmpeg", logging.NewNop())
	e.WithCommandRunner(func(context.Context, string, ...string) error { return nil })

	cases := map[string]Request{
		"missing source": {Output: "/tmp/out.mp4", Duration: timecode.FromInt(1)},
		"missing output": {Source: "/tmp/in.mov", Duration: timecode.FromInt(1)},
		"zero duration":  {Source: "/tmp/in.mov", Output: "/tmp/out.mp4"},
		"absent source":  {Source: "/nonexistent/in.mov", Output: "/tmp/out.mp4", Duration: timecode.FromInt(1)},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			if err := e.Extract(context.Background(), req); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDecimalSeconds(t *testing.T) {
	cases := []struct {
		in   timecode.Rational
		want string
	}{
		{timecode.FromInt(2), "2.000000"},
		{timecode.MustNew(5, 2), "2.500000"},
		{timecode.MustNew(1001, 24000), "0.041708"},
		{timecode.MustNew(-3, 2), "-1.500000"},
	}
	for _, tc := range cases {
		if got := DecimalSeconds(tc.in); got != tc.want {
			t.Fatalf("DecimalSeconds(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
