// Package deps reports the availability of the external tools the
// pipeline shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"loom/internal/config"
)

// Requirement defines an external dependency Loom relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the tools the current configuration needs.
func Requirements(cfg *config.Config) []Requirement {
	requirements := []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for extraction, keying, and compositing",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for media verification",
		},
		{
			Name:        "Melt",
			Command:     cfg.MeltBinary(),
			Description: "Renders preview output",
			Optional:    !cfg.Render.Enabled,
		},
	}
	if cfg.Stages.Segmentation.Command != "" {
		requirements = append(requirements, Requirement{
			Name:        "Segmentation",
			Command:     cfg.Stages.Segmentation.Command,
			Description: "External subject isolation command",
			Optional:    true,
		})
	}
	return requirements
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
