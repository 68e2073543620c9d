package stage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"loom/internal/config"
	"loom/internal/services"
)

// Keying removes the configured key color from a clip, producing an
// alpha-carrying intermediate for later compositing. The output uses
// ProRes 4444 because the pipeline's delivery codec cannot hold alpha.
type Keying struct {
	binary string
	params config.Keying
	logger *slog.Logger
	run    commandRunner
}

// NewKeying constructs the keying stage from configuration.
func NewKeying(cfg *config.Config, logger *slog.Logger) Stage {
	return &Keying{
		binary: cfg.FFmpegBinary(),
		params: cfg.Stages.Keying,
		logger: componentLogger(logger, NameKeying),
		run:    defaultRunner,
	}
}

func (k *Keying) Name() string { return NameKeying }

// WithCommandRunner overrides command execution for tests.
func (k *Keying) WithCommandRunner(run commandRunner) *Keying {
	k.run = run
	return k
}

func (k *Keying) Prepare(_ context.Context, job *Job) error {
	if job.InputPath == "" {
		return services.Wrap(services.ErrStage, NameKeying, "prepare", "job has no input", nil)
	}
	if _, err := os.Stat(job.InputPath); err != nil {
		return services.Wrap(services.ErrStage, NameKeying, "prepare",
			fmt.Sprintf("input not accessible: %s", job.InputPath), err)
	}
	return nil
}

func (k *Keying) Execute(ctx context.Context, job *Job) (Artifact, error) {
	output := artifactPath(job, NameKeying, ".mov")
	args := k.buildArgs(job.InputPath, output)

	k.logger.Info("keying clip",
		slog.String("clip_id", job.ClipID),
		slog.String("key_color", k.params.KeyColor))
	if err := k.run(ctx, k.binary, args...); err != nil {
		removeArtifact(output)
		return Artifact{}, services.Wrap(services.ErrStage, NameKeying, "execute",
			fmt.Sprintf("ffmpeg chroma key failed for %s", job.ClipID), err)
	}
	if _, err := os.Stat(output); err != nil {
		return Artifact{}, services.Wrap(services.ErrStage, NameKeying, "execute",
			"ffmpeg produced no output", err)
	}
	return Artifact{Path: output, Params: k.recordedParams()}, nil
}

// Fingerprint covers the full key configuration; any knob change forces
// reprocessing.
func (k *Keying) Fingerprint(_ *Job) map[string]string {
	return k.recordedParams()
}

func (k *Keying) HealthCheck(_ context.Context) Health {
	if _, err := exec.LookPath(k.binary); err != nil {
		return Unhealthy(NameKeying, fmt.Sprintf("%s not found in PATH", k.binary))
	}
	return Healthy(NameKeying)
}

func (k *Keying) buildArgs(input, output string) []string {
	filter := fmt.Sprintf("chromakey=%s:%s:%s,format=yuva444p10le",
		ffmpegColor(k.params.KeyColor),
		formatParam(k.params.DeltaC),
		formatParam(k.params.Slope))
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", input,
		"-vf", filter,
		"-c:v", "prores_ks",
		"-profile:v", "4444",
		"-pix_fmt", "yuva444p10le",
		"-an",
		output,
	}
}

// recordedParams reports the full key configuration, not just the knobs
// the key filter consumes, so the timeline annotation stays editable in
// hosts that expose the extra channels.
func (k *Keying) recordedParams() map[string]string {
	return map[string]string{
		"key_color":    k.params.KeyColor,
		"invert":       fmt.Sprintf("%t", k.params.Invert),
		"delta_h":      formatParam(k.params.DeltaH),
		"delta_c":      formatParam(k.params.DeltaC),
		"delta_i":      formatParam(k.params.DeltaI),
		"slope":        formatParam(k.params.Slope),
		"edge":         formatParam(k.params.Edge),
		"alpha_mode":   formatParam(k.params.AlphaMode),
		"alpha_amount": formatParam(k.params.AlphaAmount),
	}
}

// ffmpegColor converts "#rrggbb" to ffmpeg's 0xRRGGBB form.
func ffmpegColor(hex string) string {
	return "0x" + strings.ToUpper(strings.TrimPrefix(hex, "#"))
}

func formatParam(v float64) string {
	return fmt.Sprintf("%g", v)
}

func artifactPath(job *Job, stage, ext string) string {
	return filepath.Join(job.WorkDir, fmt.Sprintf("%s_%s%s", job.ClipID, stage, ext))
}

func removeArtifact(path string) {
	_ = os.Remove(path)
}
