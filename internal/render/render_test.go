package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/services"
)

func testRenderer(t *testing.T) (*Renderer, string) {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	document := filepath.Join(dir, "timeline.mlt")
	if err := os.WriteFile(document, []byte("<mlt/>"), 0o644); err != nil {
		t.Fatalf("write document: %v", err)
	}
	return New(&cfg, logging.NewNop()), document
}

func TestRenderBuildsMeltCommand(t *testing.T) {
	r, document := testRenderer(t)
	output := filepath.Join(filepath.Dir(document), "preview.mp4")

	var gotName string
	var gotArgs []string
	r.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		gotName = name
		gotArgs = args
		return os.WriteFile(output, []byte("render"), 0o644)
	})

	if err := r.Render(context.Background(), document, output); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if gotName != "melt" {
		t.Fatalf("unexpected binary %q", gotName)
	}
	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{document, "-consumer avformat:" + output, "vcodec=libx264"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("command missing %q: %s", want, joined)
		}
	}
}

func TestRenderFailureRemovesOutput(t *testing.T) {
	r, document := testRenderer(t)
	output := filepath.Join(filepath.Dir(document), "preview.mp4")
	r.WithCommandRunner(func(_ context.Context, _ string, _ ...string) error {
		if err := os.WriteFile(output, []byte("partial"), 0o644); err != nil {
			t.Fatalf("write partial: %v", err)
		}
		return errors.New("consumer error")
	})

	err := r.Render(context.Background(), document, output)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("Render = %v, want external tool error", err)
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Fatal("partial output was not removed")
	}
}

func TestRenderRequiresDocument(t *testing.T) {
	r, _ := testRenderer(t)
	err := r.Render(context.Background(), filepath.Join(t.TempDir(), "missing.mlt"), "out.mp4")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("Render = %v, want external tool error", err)
	}
}
