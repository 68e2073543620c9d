package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loom/internal/config"
	"loom/internal/timecode"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected resolved existing path %q, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Project.Width != 1920 || cfg.Project.Height != 1080 {
		t.Fatalf("unexpected dimensions %dx%d", cfg.Project.Width, cfg.Project.Height)
	}
	if !cfg.FrameRate().Equal(timecode.MustNew(24000, 1001)) {
		t.Fatalf("unexpected frame rate %s", cfg.FrameRate())
	}
	if cfg.Pipeline.Workers != 4 {
		t.Fatalf("unexpected workers %d", cfg.Pipeline.Workers)
	}
	if cfg.Stages.Keying.KeyColor != "#505191" {
		t.Fatalf("unexpected key color %q", cfg.Stages.Keying.KeyColor)
	}
	if cfg.FFmpegBinary() != "ffmpeg" || cfg.MeltBinary() != "melt" {
		t.Fatalf("unexpected tool binaries %q %q", cfg.FFmpegBinary(), cfg.MeltBinary())
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
[project]
width = 1280
height = 720
frame_rate = "30"

[pipeline]
workers = 2

[tools]
ffmpeg = "/opt/ffmpeg/bin/ffmpeg"

[stages.keying]
key_color = "#112233"
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Project.Width != 1280 || cfg.Project.Height != 720 {
		t.Fatalf("unexpected dimensions %dx%d", cfg.Project.Width, cfg.Project.Height)
	}
	if !cfg.FrameRate().Equal(timecode.FromInt(30)) {
		t.Fatalf("unexpected frame rate %s", cfg.FrameRate())
	}
	if cfg.Pipeline.Workers != 2 {
		t.Fatalf("unexpected workers %d", cfg.Pipeline.Workers)
	}
	if cfg.FFmpegBinary() != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("unexpected ffmpeg binary %q", cfg.FFmpegBinary())
	}
	if cfg.Stages.Keying.KeyColor != "#112233" {
		t.Fatalf("unexpected key color %q", cfg.Stages.Keying.KeyColor)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"bad frame rate":  "[project]\nframe_rate = \"zero\"\n",
		"zero dimensions": "[project]\nwidth = 0\n",
		"bad key color":   "[stages.keying]\nkey_color = \"blue\"\n",
		"bad delta":       "[stages.keying]\ndelta_h = 3.5\n",
		"bad mode":        "[stages.compositing]\nmode = \"subtract\"\n",
		"bad level":       "[logging]\nlevel = \"verbose\"\n",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			if _, _, _, err := config.Load(writeConfig(t, contents)); err == nil {
				t.Fatal("expected load failure")
			}
		})
	}
}

func TestColorPairRotation(t *testing.T) {
	cfg := config.Default()
	first, second := cfg.ColorPair(0)
	if first != "red" || second != "purple" {
		t.Fatalf("unexpected first pair %s:%s", first, second)
	}
	wrapFirst, wrapSecond := cfg.ColorPair(10)
	if wrapFirst != first || wrapSecond != second {
		t.Fatalf("expected rotation to wrap, got %s:%s", wrapFirst, wrapSecond)
	}
}

func TestMissingConfigUsesDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.toml")
	cfg, _, exists, err := config.Load(missing)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected logging format %q", cfg.Logging.Format)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[stages.keying]") {
		t.Fatalf("sample config missing keying section:\n%s", data)
	}
}
