package stage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"loom/internal/config"
	"loom/internal/services"
)

// Segmentation delegates subject isolation to an external command, for
// setups where a learned matte beats a chroma key. The configured command
// receives its configured arguments followed by the input and output
// paths.
type Segmentation struct {
	command string
	args    []string
	logger  *slog.Logger
	run     commandRunner
}

// NewSegmentation constructs the segmentation stage from configuration.
func NewSegmentation(cfg *config.Config, logger *slog.Logger) Stage {
	return &Segmentation{
		command: cfg.Stages.Segmentation.Command,
		args:    cfg.Stages.Segmentation.Args,
		logger:  componentLogger(logger, NameSegmentation),
		run:     defaultRunner,
	}
}

func (s *Segmentation) Name() string { return NameSegmentation }

// WithCommandRunner overrides command execution for tests.
func (s *Segmentation) WithCommandRunner(run commandRunner) *Segmentation {
	s.run = run
	return s
}

func (s *Segmentation) Prepare(_ context.Context, job *Job) error {
	if s.command == "" {
		return services.Wrap(services.ErrConfiguration, NameSegmentation, "prepare",
			"no segmentation command configured", nil)
	}
	if job.InputPath == "" {
		return services.Wrap(services.ErrStage, NameSegmentation, "prepare", "job has no input", nil)
	}
	if _, err := os.Stat(job.InputPath); err != nil {
		return services.Wrap(services.ErrStage, NameSegmentation, "prepare",
			fmt.Sprintf("input not accessible: %s", job.InputPath), err)
	}
	return nil
}

func (s *Segmentation) Execute(ctx context.Context, job *Job) (Artifact, error) {
	output := artifactPath(job, NameSegmentation, ".mov")
	args := append(append([]string{}, s.args...), job.InputPath, output)

	s.logger.Info("segmenting clip",
		slog.String("clip_id", job.ClipID),
		slog.String("command", s.command))
	if err := s.run(ctx, s.command, args...); err != nil {
		removeArtifact(output)
		return Artifact{}, services.Wrap(services.ErrStage, NameSegmentation, "execute",
			fmt.Sprintf("segmentation command failed for %s", job.ClipID), err)
	}
	if _, err := os.Stat(output); err != nil {
		return Artifact{}, services.Wrap(services.ErrStage, NameSegmentation, "execute",
			"segmentation command produced no output", err)
	}
	return Artifact{Path: output, Params: map[string]string{
		"command": s.command,
	}}, nil
}

func (s *Segmentation) Fingerprint(_ *Job) map[string]string {
	return map[string]string{
		"command": s.command,
		"args":    strings.Join(s.args, " "),
	}
}

func (s *Segmentation) HealthCheck(_ context.Context) Health {
	if s.command == "" {
		return Unhealthy(NameSegmentation, "no segmentation command configured")
	}
	if _, err := exec.LookPath(s.command); err != nil {
		return Unhealthy(NameSegmentation, fmt.Sprintf("%s not found in PATH", s.command))
	}
	return Healthy(NameSegmentation)
}
