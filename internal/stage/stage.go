package stage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"loom/internal/config"
	"loom/internal/services"
	"loom/internal/timecode"
)

// Job carries one selected clip through the stage chain. InputPath always
// names the current working copy: the extracted span before the first
// stage, then each stage's output in turn.
type Job struct {
	ClipID    string
	ClipName  string
	Index     int
	InputPath string
	WorkDir   string
	Width     int
	Height    int
	FrameRate timecode.Rational
	Duration  timecode.Rational

	// Artifacts records each completed stage's output path by stage name.
	Artifacts map[string]string
}

// Artifact is a stage's output: the produced file plus the parameters
// that should be recorded on the timeline.
type Artifact struct {
	Path   string
	Params map[string]string
}

// Stage processes one clip job. Prepare validates inputs without side
// effects; Execute produces the artifact; Fingerprint reports the
// parameters that determine the output so identical work can be cached;
// HealthCheck reports whether the stage's external tooling is available.
type Stage interface {
	Name() string
	Prepare(ctx context.Context, job *Job) error
	Execute(ctx context.Context, job *Job) (Artifact, error)
	Fingerprint(job *Job) map[string]string
	HealthCheck(ctx context.Context) Health
}

// Health summarizes the readiness of a stage.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// Factory constructs a stage from configuration.
type Factory func(cfg *config.Config, logger *slog.Logger) Stage

// The stage set is closed: these four names are the only valid chain
// members.
const (
	NameKeying       = "keying"
	NameSegmentation = "segmentation"
	NameCompositing  = "compositing"
	NameGenerative   = "generative"
)

func factories() map[string]Factory {
	return map[string]Factory{
		NameKeying:       NewKeying,
		NameSegmentation: NewSegmentation,
		NameCompositing:  NewCompositing,
		NameGenerative:   NewGenerative,
	}
}

// New constructs a stage by name.
func New(name string, cfg *config.Config, logger *slog.Logger) (Stage, error) {
	factory, ok := factories()[name]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "stage", "new",
			fmt.Sprintf("unknown stage %q", name), nil)
	}
	return factory(cfg, logger), nil
}

// ParseChain splits a comma-separated stage list, rejecting unknown names
// and duplicates.
func ParseChain(raw string) ([]string, error) {
	known := factories()
	seen := map[string]bool{}
	var names []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if _, ok := known[name]; !ok {
			return nil, services.Wrap(services.ErrConfiguration, "stage", "parse chain",
				fmt.Sprintf("unknown stage %q", name), nil)
		}
		if seen[name] {
			return nil, services.Wrap(services.ErrConfiguration, "stage", "parse chain",
				fmt.Sprintf("stage %q listed twice", name), nil)
		}
		seen[name] = true
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "stage", "parse chain", "empty stage chain", nil)
	}
	return names, nil
}

// Chain constructs the stages for an ordered name list.
func Chain(names []string, cfg *config.Config, logger *slog.Logger) ([]Stage, error) {
	stages := make([]Stage, 0, len(names))
	for _, name := range names {
		s, err := New(name, cfg, logger)
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, nil
}
