package stage

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"

	"loom/internal/logging"
)

// commandRunner executes an external tool. Stages swap it out in tests.
type commandRunner func(ctx context.Context, name string, args ...string) error

func defaultRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return &toolError{err: err, stderr: msg}
		}
		return err
	}
	return nil
}

// toolError keeps the tool's stderr tail attached to the exec failure.
type toolError struct {
	err    error
	stderr string
}

func (e *toolError) Error() string {
	return e.err.Error() + ": " + e.stderr
}

func (e *toolError) Unwrap() error { return e.err }

func componentLogger(logger *slog.Logger, component string) *slog.Logger {
	return logging.NewComponentLogger(logger, component)
}
