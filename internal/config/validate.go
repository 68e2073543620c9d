package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProject(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateStages(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateProject() error {
	if c.Project.Width <= 0 || c.Project.Height <= 0 {
		return fmt.Errorf("project dimensions must be positive, got %dx%d", c.Project.Width, c.Project.Height)
	}
	if c.Project.frameRate.Sign() <= 0 {
		return fmt.Errorf("project.frame_rate must be positive, got %q", c.Project.FrameRate)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Workers <= 0 {
		return errors.New("pipeline.workers must be positive")
	}
	if c.Pipeline.StageTimeout <= 0 {
		return errors.New("pipeline.stage_timeout must be positive (seconds)")
	}
	if c.Pipeline.ExtractionTimeout <= 0 {
		return errors.New("pipeline.extraction_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateStages() error {
	if err := validateHexColor(c.Stages.Keying.KeyColor); err != nil {
		return fmt.Errorf("stages.keying.key_color: %w", err)
	}
	for name, value := range map[string]float64{
		"stages.keying.delta_h":      c.Stages.Keying.DeltaH,
		"stages.keying.delta_c":      c.Stages.Keying.DeltaC,
		"stages.keying.delta_i":      c.Stages.Keying.DeltaI,
		"stages.keying.slope":        c.Stages.Keying.Slope,
		"stages.keying.edge":         c.Stages.Keying.Edge,
		"stages.keying.alpha_mode":   c.Stages.Keying.AlphaMode,
		"stages.keying.alpha_amount": c.Stages.Keying.AlphaAmount,
	} {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	for _, pair := range c.Stages.Generative.Colors {
		if strings.TrimSpace(pair) == "" {
			return errors.New("stages.generative.colors must not contain empty entries")
		}
	}
	switch c.Stages.Compositing.Mode {
	case "overlay", "qtblend":
	default:
		return fmt.Errorf("stages.compositing.mode must be overlay or qtblend, got %q", c.Stages.Compositing.Mode)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
}

func validateHexColor(value string) error {
	trimmed := strings.TrimPrefix(value, "#")
	if len(trimmed) != 6 {
		return fmt.Errorf("expected #rrggbb, got %q", value)
	}
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return fmt.Errorf("expected #rrggbb, got %q", value)
		}
	}
	return nil
}
