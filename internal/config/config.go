package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"loom/internal/timecode"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir  string `toml:"work_dir"`
	CacheDir string `toml:"cache_dir"`
	LogDir   string `toml:"log_dir"`
}

// Project describes the target frame geometry and rate every processed
// clip must conform to.
type Project struct {
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	FrameRate string `toml:"frame_rate"`

	frameRate timecode.Rational
}

// Tools names the external binaries the pipeline shells out to.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
	Melt    string `toml:"melt"`
}

// Pipeline contains orchestration settings.
type Pipeline struct {
	Workers           int `toml:"workers"`
	StageTimeout      int `toml:"stage_timeout"`
	ExtractionTimeout int `toml:"extraction_timeout"`
}

// Keying contains chroma key parameters. The defaults target a blue
// screen keyed in HCI space with soft alpha shrinking.
type Keying struct {
	KeyColor    string  `toml:"key_color"`
	Invert      bool    `toml:"invert"`
	DeltaH      float64 `toml:"delta_h"`
	DeltaC      float64 `toml:"delta_c"`
	DeltaI      float64 `toml:"delta_i"`
	Slope       float64 `toml:"slope"`
	Edge        float64 `toml:"edge"`
	AlphaMode   float64 `toml:"alpha_mode"`
	AlphaAmount float64 `toml:"alpha_amount"`
}

// Generative contains gradient texture source parameters. Colors rotate
// through the listed "first:second" pairs per processed clip.
type Generative struct {
	Colors []string `toml:"colors"`
	Speed  float64  `toml:"speed"`
}

// Segmentation contains the external segmentation command.
type Segmentation struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

// Compositing contains overlay settings.
type Compositing struct {
	Mode string `toml:"mode"`
}

// Stages groups the per-stage parameter sections.
type Stages struct {
	Keying       Keying       `toml:"keying"`
	Generative   Generative   `toml:"generative"`
	Segmentation Segmentation `toml:"segmentation"`
	Compositing  Compositing  `toml:"compositing"`
}

// Render contains optional preview render settings.
type Render struct {
	Enabled bool   `toml:"enabled"`
	Output  string `toml:"output"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Loom.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Project  Project  `toml:"project"`
	Tools    Tools    `toml:"tools"`
	Pipeline Pipeline `toml:"pipeline"`
	Stages   Stages   `toml:"stages"`
	Render   Render   `toml:"render"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/loom/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("loom.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a pipeline run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.CacheDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FrameRate returns the parsed project frame rate. Load populates the
// parsed form; hand-built configs parse on first use.
func (c *Config) FrameRate() timecode.Rational {
	if c.Project.frameRate.Sign() <= 0 && c.Project.FrameRate != "" {
		if rate, err := timecode.Parse(c.Project.FrameRate); err == nil {
			c.Project.frameRate = rate
		}
	}
	return c.Project.frameRate
}

// SetProjectProfile replaces the configured frame geometry and rate,
// typically with values read from an input document's profile. Zero or
// negative values leave the corresponding setting untouched.
func (c *Config) SetProjectProfile(width, height int, rate timecode.Rational) {
	if width > 0 {
		c.Project.Width = width
	}
	if height > 0 {
		c.Project.Height = height
	}
	if rate.Sign() > 0 {
		c.Project.frameRate = rate
		c.Project.FrameRate = rate.String()
	}
}

// FFmpegBinary returns the ffmpeg executable used for extraction and
// stage processing.
func (c *Config) FFmpegBinary() string {
	if v := strings.TrimSpace(c.Tools.FFmpeg); v != "" {
		return v
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable used for media verification.
func (c *Config) FFprobeBinary() string {
	if v := strings.TrimSpace(c.Tools.FFprobe); v != "" {
		return v
	}
	return "ffprobe"
}

// MeltBinary returns the melt executable used for preview renders.
func (c *Config) MeltBinary() string {
	if v := strings.TrimSpace(c.Tools.Melt); v != "" {
		return v
	}
	return "melt"
}

// ColorPair returns the generative color pair for a clip index, rotating
// through the configured list.
func (c *Config) ColorPair(index int) (string, string) {
	colors := c.Stages.Generative.Colors
	if len(colors) == 0 {
		return "red", "purple"
	}
	pair := colors[index%len(colors)]
	first, second, ok := strings.Cut(pair, ":")
	if !ok {
		return pair, pair
	}
	return first, second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
