package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"loom/internal/logging"
	"loom/internal/services"
	"loom/internal/timecode"
)

// Request describes a source span to pull into a standalone file.
type Request struct {
	Source    string
	In        timecode.Rational
	Duration  timecode.Rational
	FrameRate timecode.Rational
	Output    string
}

// commandRunner executes an external command. Swappable for tests.
type commandRunner func(ctx context.Context, name string, args ...string) error

// Extractor cuts exact spans out of source media with ffmpeg, re-encoding
// so the result is frame-accurate rather than keyframe-aligned.
type Extractor struct {
	binary string
	logger *slog.Logger
	run    commandRunner
}

// New constructs a span extractor around the given ffmpeg binary.
func New(binary string, logger *slog.Logger) *Extractor {
	return &Extractor{
		binary: binary,
		logger: logging.NewComponentLogger(logger, "extract"),
		run:    defaultCommandRunner,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (e *Extractor) WithCommandRunner(r commandRunner) {
	if e != nil && r != nil {
		e.run = r
	}
}

// Extract writes the requested span to req.Output.
func (e *Extractor) Extract(ctx context.Context, req Request) error {
	if e == nil {
		return services.Wrap(services.ErrStage, "extract", "extract", "extractor not initialized", nil)
	}
	if strings.TrimSpace(req.Source) == "" {
		return services.Wrap(services.ErrStage, "extract", "extract", "source path is required", nil)
	}
	if strings.TrimSpace(req.Output) == "" {
		return services.Wrap(services.ErrStage, "extract", "extract", "output path is required", nil)
	}
	if req.Duration.Sign() <= 0 {
		return services.Wrap(services.ErrStage, "extract", "extract",
			fmt.Sprintf("non-positive span duration %s", req.Duration), nil)
	}
	if _, err := os.Stat(req.Source); err != nil {
		return services.Wrap(services.ErrStage, "extract", "extract", "source media not found", err)
	}
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return services.Wrap(services.ErrStage, "extract", "extract", "create output directory", err)
	}

	args := e.buildArgs(req)
	e.logger.Debug("extracting span",
		logging.String("source", req.Source),
		logging.String("in", req.In.String()),
		logging.String("duration", req.Duration.String()),
		logging.String("output", req.Output),
	)

	if err := e.run(ctx, e.binary, args...); err != nil {
		_ = os.Remove(req.Output)
		return services.Wrap(services.ErrStage, "extract", "extract", "ffmpeg failed", err)
	}
	if _, err := os.Stat(req.Output); err != nil {
		return services.Wrap(services.ErrStage, "extract", "extract", "ffmpeg produced no output", err)
	}
	return nil
}

func (e *Extractor) buildArgs(req Request) []string {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", DecimalSeconds(req.In),
		"-i", req.Source,
		"-t", DecimalSeconds(req.Duration),
	}
	if req.FrameRate.Sign() > 0 {
		args = append(args, "-r", req.FrameRate.String())
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "18",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		req.Output,
	)
	return args
}

// DecimalSeconds renders a rational time as decimal seconds with
// microsecond precision, the form ffmpeg accepts for -ss and -t.
func DecimalSeconds(r timecode.Rational) string {
	num, den := r.Num(), r.Den()
	negative := num < 0
	if negative {
		num = -num
	}
	whole := num / den
	micros := ((num%den)*1_000_000 + den/2) / den
	if micros == 1_000_000 {
		whole++
		micros = 0
	}
	value := fmt.Sprintf("%d.%06d", whole, micros)
	if negative {
		value = "-" + value
	}
	return value
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
