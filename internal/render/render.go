// Package render drives melt to produce an optional preview of the
// finished timeline. Rendering is best effort: the timeline document is
// the deliverable, so render failures warn instead of failing the run.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/services"
)

type commandRunner func(ctx context.Context, name string, args ...string) error

// Renderer shells out to melt for preview renders.
type Renderer struct {
	binary string
	logger *slog.Logger
	run    commandRunner
}

// New constructs a renderer using the configured melt binary.
func New(cfg *config.Config, logger *slog.Logger) *Renderer {
	return &Renderer{
		binary: cfg.MeltBinary(),
		logger: logging.NewComponentLogger(logger, "render"),
		run:    defaultRunner,
	}
}

// WithCommandRunner overrides command execution for tests.
func (r *Renderer) WithCommandRunner(run commandRunner) *Renderer {
	r.run = run
	return r
}

// Render renders a timeline document to the output video. The returned
// error is informational; callers log it and carry on.
func (r *Renderer) Render(ctx context.Context, documentPath, outputPath string) error {
	if documentPath == "" || outputPath == "" {
		return services.Wrap(services.ErrExternalTool, "render", "render",
			"document and output paths are required", nil)
	}
	if _, err := os.Stat(documentPath); err != nil {
		return services.Wrap(services.ErrExternalTool, "render", "render",
			fmt.Sprintf("document not accessible: %s", documentPath), err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return services.Wrap(services.ErrExternalTool, "render", "render",
			"cannot create output directory", err)
	}

	args := []string{
		documentPath,
		"-progress2",
		"-consumer", "avformat:" + outputPath,
		"vcodec=libx264",
		"preset=fast",
		"crf=18",
		"pix_fmt=yuv420p",
	}
	r.logger.Info("rendering preview",
		slog.String("document", documentPath),
		slog.String("output", outputPath))
	if err := r.run(ctx, r.binary, args...); err != nil {
		_ = os.Remove(outputPath)
		return services.Wrap(services.ErrExternalTool, "render", "render",
			"melt render failed", err)
	}
	if _, err := os.Stat(outputPath); err != nil {
		return services.Wrap(services.ErrExternalTool, "render", "render",
			"melt produced no output", err)
	}
	return nil
}

// Available reports whether melt can be found.
func (r *Renderer) Available() bool {
	_, err := exec.LookPath(r.binary)
	return err == nil
}

func defaultRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run()
}
