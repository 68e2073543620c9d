package config

import (
	"fmt"
	"strings"

	"loom/internal/timecode"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeProject(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizePipeline()
	c.normalizeStages()
	if err := c.normalizeRender(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeProject() error {
	c.Project.FrameRate = strings.TrimSpace(c.Project.FrameRate)
	if c.Project.FrameRate == "" {
		c.Project.FrameRate = defaultFrameRate
	}
	rate, err := timecode.Parse(c.Project.FrameRate)
	if err != nil {
		return fmt.Errorf("project.frame_rate: unparseable value %q", c.Project.FrameRate)
	}
	c.Project.frameRate = rate
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	c.Tools.Melt = strings.TrimSpace(c.Tools.Melt)
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = defaultWorkers
	}
	if c.Pipeline.StageTimeout <= 0 {
		c.Pipeline.StageTimeout = defaultStageTimeout
	}
	if c.Pipeline.ExtractionTimeout <= 0 {
		c.Pipeline.ExtractionTimeout = defaultExtractTime
	}
}

func (c *Config) normalizeStages() {
	c.Stages.Keying.KeyColor = strings.TrimSpace(c.Stages.Keying.KeyColor)
	if c.Stages.Keying.KeyColor == "" {
		c.Stages.Keying.KeyColor = defaultKeyColor
	}
	if c.Stages.Generative.Speed <= 0 {
		c.Stages.Generative.Speed = defaultGradientSpeed
	}
	colors := make([]string, 0, len(c.Stages.Generative.Colors))
	for _, pair := range c.Stages.Generative.Colors {
		normalized := strings.ToLower(strings.TrimSpace(pair))
		if normalized == "" {
			continue
		}
		colors = append(colors, normalized)
	}
	if len(colors) == 0 {
		colors = defaultColorPairs()
	}
	c.Stages.Generative.Colors = colors
	c.Stages.Segmentation.Command = strings.TrimSpace(c.Stages.Segmentation.Command)
	c.Stages.Compositing.Mode = strings.ToLower(strings.TrimSpace(c.Stages.Compositing.Mode))
	if c.Stages.Compositing.Mode == "" {
		c.Stages.Compositing.Mode = "overlay"
	}
}

func (c *Config) normalizeRender() error {
	c.Render.Output = strings.TrimSpace(c.Render.Output)
	if c.Render.Output == "" {
		return nil
	}
	expanded, err := expandPath(c.Render.Output)
	if err != nil {
		return fmt.Errorf("render.output: %w", err)
	}
	c.Render.Output = expanded
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
