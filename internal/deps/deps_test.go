package deps_test

import (
	"os"
	"path/filepath"
	"testing"

	"loom/internal/config"
	"loom/internal/deps"
)

func TestCheckBinariesReportsMissing(t *testing.T) {
	results := deps.CheckBinaries([]deps.Requirement{
		{Name: "Ghost", Command: "definitely-not-a-binary-xyz"},
		{Name: "Unset", Command: ""},
	})
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Available {
		t.Fatal("missing binary reported available")
	}
	if results[1].Available || results[1].Detail != "command not configured" {
		t.Fatalf("unexpected unset result %+v", results[1])
	}
}

func TestCheckBinariesFindsStub(t *testing.T) {
	binDir := t.TempDir()
	stub := filepath.Join(binDir, "stubtool")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	results := deps.CheckBinaries([]deps.Requirement{{Name: "Stub", Command: "stubtool"}})
	if !results[0].Available {
		t.Fatalf("stub not found: %+v", results[0])
	}
}

func TestRequirementsFollowConfiguration(t *testing.T) {
	cfg := config.Default()
	cfg.Stages.Segmentation.Command = "segtool"
	cfg.Render.Enabled = true

	var names []string
	var meltOptional bool
	for _, req := range deps.Requirements(&cfg) {
		names = append(names, req.Name)
		if req.Name == "Melt" {
			meltOptional = req.Optional
		}
	}
	want := []string{"FFmpeg", "FFprobe", "Melt", "Segmentation"}
	if len(names) != len(want) {
		t.Fatalf("got requirements %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("requirement %d is %q, want %q", i, names[i], want[i])
		}
	}
	if meltOptional {
		t.Fatal("melt optional despite render being enabled")
	}
}
