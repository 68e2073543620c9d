package preflight_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"loom/internal/config"
	"loom/internal/deps"
	"loom/internal/preflight"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	result := preflight.CheckDirectoryAccess("Work directory", dir)
	if !result.Passed {
		t.Fatalf("writable directory failed: %+v", result)
	}

	missing := preflight.CheckDirectoryAccess("Work directory", filepath.Join(dir, "absent"))
	if missing.Passed {
		t.Fatal("missing directory passed")
	}

	file := filepath.Join(dir, "plain")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	notDir := preflight.CheckDirectoryAccess("Work directory", file)
	if notDir.Passed {
		t.Fatal("regular file passed as directory")
	}
}

func TestRunAllCoversConfiguredDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := preflight.RunAll(context.Background(), &cfg)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for _, result := range results {
		if !result.Passed {
			t.Fatalf("check failed: %+v", result)
		}
	}
}

func TestAllPassedRespectsOptionalDeps(t *testing.T) {
	results := []preflight.Result{{Name: "Work directory", Passed: true}}
	statuses := []deps.Status{
		{Name: "FFmpeg", Available: true},
		{Name: "Melt", Available: false, Optional: true},
	}
	if !preflight.AllPassed(results, statuses) {
		t.Fatal("optional miss failed the preflight")
	}

	statuses[0].Available = false
	if preflight.AllPassed(results, statuses) {
		t.Fatal("required miss passed the preflight")
	}
}
