package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"loom/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "keying", "execute", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"keying", "execute", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToStageMarker(t *testing.T) {
	err := services.Wrap(nil, "compositing", "execute", "", nil)
	if !errors.Is(err, services.ErrStage) {
		t.Fatalf("expected nil marker to default to ErrStage, got %v", err)
	}
}

func TestFatalClassification(t *testing.T) {
	cases := []struct {
		name   string
		marker error
		fatal  bool
	}{
		{"parse", services.ErrParse, true},
		{"precision", services.ErrPrecisionLoss, true},
		{"selector", services.ErrSelector, true},
		{"configuration", services.ErrConfiguration, true},
		{"stage", services.ErrStage, false},
		{"verification", services.ErrVerification, false},
		{"splice", services.ErrSplice, false},
		{"external", services.ErrExternalTool, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := services.Wrap(tc.marker, "adapter", "parse", "test", nil)
			if got := services.Fatal(err); got != tc.fatal {
				t.Fatalf("Fatal(%s) = %v, want %v", tc.name, got, tc.fatal)
			}
		})
	}
}

func TestKindLabels(t *testing.T) {
	if kind := services.Kind(services.Wrap(services.ErrVerification, "stage", "verify", "", nil)); kind != "verification" {
		t.Fatalf("expected verification kind, got %q", kind)
	}
	if kind := services.Kind(errors.New("plain")); kind != "stage" {
		t.Fatalf("untagged errors should classify as stage, got %q", kind)
	}
	if kind := services.Kind(nil); kind != "" {
		t.Fatalf("nil error should yield empty kind, got %q", kind)
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := services.WithRunID(context.Background(), "run-1")
	ctx = services.WithClipID(ctx, "clip-7")
	ctx = services.WithStage(ctx, "keying")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-1" {
		t.Fatalf("run id = %q, %v", id, ok)
	}
	if id, ok := services.ClipIDFromContext(ctx); !ok || id != "clip-7" {
		t.Fatalf("clip id = %q, %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "keying" {
		t.Fatalf("stage = %q, %v", stage, ok)
	}
	if _, ok := services.RunIDFromContext(context.Background()); ok {
		t.Fatal("empty context should not carry a run id")
	}
}
