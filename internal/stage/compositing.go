package stage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"loom/internal/config"
	"loom/internal/media/extract"
	"loom/internal/services"
)

// Compositing overlays the current working copy onto a background layer.
// The background is the generative stage's artifact when that stage ran
// earlier in the chain, otherwise a gradient synthesized inline.
type Compositing struct {
	binary string
	cfg    *config.Config
	logger *slog.Logger
	run    commandRunner
}

// NewCompositing constructs the compositing stage from configuration.
func NewCompositing(cfg *config.Config, logger *slog.Logger) Stage {
	return &Compositing{
		binary: cfg.FFmpegBinary(),
		cfg:    cfg,
		logger: componentLogger(logger, NameCompositing),
		run:    defaultRunner,
	}
}

func (c *Compositing) Name() string { return NameCompositing }

// WithCommandRunner overrides command execution for tests.
func (c *Compositing) WithCommandRunner(run commandRunner) *Compositing {
	c.run = run
	return c
}

func (c *Compositing) Prepare(_ context.Context, job *Job) error {
	if job.InputPath == "" {
		return services.Wrap(services.ErrStage, NameCompositing, "prepare", "job has no input", nil)
	}
	if _, err := os.Stat(job.InputPath); err != nil {
		return services.Wrap(services.ErrStage, NameCompositing, "prepare",
			fmt.Sprintf("input not accessible: %s", job.InputPath), err)
	}
	if bg, ok := job.Artifacts[NameGenerative]; ok {
		if _, err := os.Stat(bg); err != nil {
			return services.Wrap(services.ErrStage, NameCompositing, "prepare",
				fmt.Sprintf("background not accessible: %s", bg), err)
		}
	} else if job.Width <= 0 || job.Height <= 0 {
		return services.Wrap(services.ErrStage, NameCompositing, "prepare",
			"no background artifact and no frame size for inline synthesis", nil)
	}
	return nil
}

func (c *Compositing) Execute(ctx context.Context, job *Job) (Artifact, error) {
	output := artifactPath(job, NameCompositing, ".mp4")
	background, inline := c.background(job)
	args := c.buildArgs(job, background, inline, output)

	c.logger.Info("compositing clip",
		slog.String("clip_id", job.ClipID),
		slog.Bool("inline_background", inline))
	if err := c.run(ctx, c.binary, args...); err != nil {
		removeArtifact(output)
		return Artifact{}, services.Wrap(services.ErrStage, NameCompositing, "execute",
			fmt.Sprintf("overlay failed for %s", job.ClipID), err)
	}
	if _, err := os.Stat(output); err != nil {
		return Artifact{}, services.Wrap(services.ErrStage, NameCompositing, "execute",
			"ffmpeg produced no output", err)
	}
	return Artifact{Path: output, Params: map[string]string{
		"mode": c.cfg.Stages.Compositing.Mode,
	}}, nil
}

func (c *Compositing) Fingerprint(job *Job) map[string]string {
	params := map[string]string{"mode": c.cfg.Stages.Compositing.Mode}
	if _, ok := job.Artifacts[NameGenerative]; !ok {
		first, second := c.cfg.ColorPair(job.Index)
		params["c0"] = first
		params["c1"] = second
	}
	return params
}

func (c *Compositing) HealthCheck(_ context.Context) Health {
	if _, err := exec.LookPath(c.binary); err != nil {
		return Unhealthy(NameCompositing, fmt.Sprintf("%s not found in PATH", c.binary))
	}
	return Healthy(NameCompositing)
}

// background reports the background input and whether it is an inline
// lavfi source rather than a file.
func (c *Compositing) background(job *Job) (string, bool) {
	if bg, ok := job.Artifacts[NameGenerative]; ok {
		return bg, false
	}
	first, second := c.cfg.ColorPair(job.Index)
	return fmt.Sprintf("gradients=s=%dx%d:c0=%s:c1=%s:speed=%s:d=%s",
		job.Width, job.Height, first, second,
		formatParam(c.cfg.Stages.Generative.Speed),
		extract.DecimalSeconds(job.Duration)), true
}

func (c *Compositing) buildArgs(job *Job, background string, inline bool, output string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	if inline {
		args = append(args, "-f", "lavfi")
	}
	args = append(args,
		"-i", background,
		"-i", job.InputPath,
		"-filter_complex", "[0:v][1:v]overlay=format=auto:shortest=1",
	)
	if job.FrameRate.Sign() > 0 {
		args = append(args, "-r", job.FrameRate.String())
	}
	if job.Duration.Sign() > 0 {
		args = append(args, "-t", extract.DecimalSeconds(job.Duration))
	}
	return append(args,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "18",
		"-pix_fmt", "yuv420p",
		output,
	)
}
