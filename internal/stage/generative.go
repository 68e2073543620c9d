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

// Generative synthesizes an animated gradient texture matching the clip's
// duration and the project frame size. Color pairs rotate per clip so
// adjacent replacements stay visually distinct.
type Generative struct {
	binary string
	cfg    *config.Config
	logger *slog.Logger
	run    commandRunner
}

// NewGenerative constructs the generative stage from configuration.
func NewGenerative(cfg *config.Config, logger *slog.Logger) Stage {
	return &Generative{
		binary: cfg.FFmpegBinary(),
		cfg:    cfg,
		logger: componentLogger(logger, NameGenerative),
		run:    defaultRunner,
	}
}

func (g *Generative) Name() string { return NameGenerative }

// WithCommandRunner overrides command execution for tests.
func (g *Generative) WithCommandRunner(run commandRunner) *Generative {
	g.run = run
	return g
}

func (g *Generative) Prepare(_ context.Context, job *Job) error {
	if job.Duration.Sign() <= 0 {
		return services.Wrap(services.ErrStage, NameGenerative, "prepare", "job has no duration", nil)
	}
	if job.Width <= 0 || job.Height <= 0 {
		return services.Wrap(services.ErrStage, NameGenerative, "prepare", "job has no frame size", nil)
	}
	return nil
}

func (g *Generative) Execute(ctx context.Context, job *Job) (Artifact, error) {
	first, second := g.cfg.ColorPair(job.Index)
	output := artifactPath(job, NameGenerative, ".mp4")
	args := g.buildArgs(job, first, second, output)

	g.logger.Info("generating texture",
		slog.String("clip_id", job.ClipID),
		slog.String("colors", first+":"+second))
	if err := g.run(ctx, g.binary, args...); err != nil {
		removeArtifact(output)
		return Artifact{}, services.Wrap(services.ErrStage, NameGenerative, "execute",
			fmt.Sprintf("gradient synthesis failed for %s", job.ClipID), err)
	}
	if _, err := os.Stat(output); err != nil {
		return Artifact{}, services.Wrap(services.ErrStage, NameGenerative, "execute",
			"ffmpeg produced no output", err)
	}
	return Artifact{Path: output, Params: map[string]string{
		"c0":    first,
		"c1":    second,
		"speed": formatParam(g.cfg.Stages.Generative.Speed),
	}}, nil
}

// Fingerprint includes the rotated color pair, so reordering the
// selection reprocesses clips whose texture colors change.
func (g *Generative) Fingerprint(job *Job) map[string]string {
	first, second := g.cfg.ColorPair(job.Index)
	return map[string]string{
		"c0":    first,
		"c1":    second,
		"speed": formatParam(g.cfg.Stages.Generative.Speed),
	}
}

func (g *Generative) HealthCheck(_ context.Context) Health {
	if _, err := exec.LookPath(g.binary); err != nil {
		return Unhealthy(NameGenerative, fmt.Sprintf("%s not found in PATH", g.binary))
	}
	return Healthy(NameGenerative)
}

func (g *Generative) buildArgs(job *Job, first, second, output string) []string {
	source := fmt.Sprintf("gradients=s=%dx%d:c0=%s:c1=%s:speed=%s:d=%s",
		job.Width, job.Height, first, second,
		formatParam(g.cfg.Stages.Generative.Speed),
		extract.DecimalSeconds(job.Duration))
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi",
		"-i", source,
	}
	if job.FrameRate.Sign() > 0 {
		args = append(args, "-r", job.FrameRate.String())
	}
	return append(args,
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-pix_fmt", "yuv420p",
		output,
	)
}
