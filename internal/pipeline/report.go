package pipeline

import (
	"time"

	"loom/internal/timeline"
)

// ClipOutcome is the terminal state of one selected clip.
type ClipOutcome string

const (
	OutcomeReplaced ClipOutcome = "replaced"
	OutcomeCached   ClipOutcome = "cached"
	OutcomeFailed   ClipOutcome = "failed"
	OutcomeSkipped  ClipOutcome = "skipped"
)

// ClipResult records what happened to one selected clip.
type ClipResult struct {
	Ref        timeline.ClipRef
	ClipID     string
	ClipName   string
	Outcome    ClipOutcome
	OutputPath string
	Error      string
	Elapsed    time.Duration

	recordID int64
}

// RunReport summarizes a pipeline run.
type RunReport struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Results  []ClipResult
}

// Counts tallies outcomes.
func (r *RunReport) Counts() (replaced, cached, failed, skipped int) {
	for _, result := range r.Results {
		switch result.Outcome {
		case OutcomeReplaced:
			replaced++
		case OutcomeCached:
			cached++
		case OutcomeFailed:
			failed++
		case OutcomeSkipped:
			skipped++
		}
	}
	return replaced, cached, failed, skipped
}

// Succeeded reports whether every selected clip ended replaced or cached.
func (r *RunReport) Succeeded() bool {
	_, _, failed, skipped := r.Counts()
	return failed == 0 && skipped == 0
}

// ExitCode maps the run outcome onto the process exit code: 0 when every
// clip ended replaced or cached, 1 otherwise. Code 2 is reserved for
// fatal errors that prevent a report entirely.
func (r *RunReport) ExitCode() int {
	if r.Succeeded() {
		return 0
	}
	return 1
}
