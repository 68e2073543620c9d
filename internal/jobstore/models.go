package jobstore

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a clip job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusExtracted  Status = "extracted"
	StatusProcessing Status = "processing"
	StatusVerified   Status = "verified"
	StatusReinserted Status = "reinserted"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusExtracted,
	StatusProcessing,
	StatusVerified,
	StatusReinserted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseStatus normalizes and validates a status string.
func ParseStatus(raw string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := statusSet[status]
	return status, ok
}

// Reusable reports whether a job in this status carries a finished
// artifact that a later run may reuse without reprocessing.
func (s Status) Reusable() bool {
	return s == StatusVerified || s == StatusReinserted
}

// Terminal reports whether the job will make no further progress.
func (s Status) Terminal() bool {
	return s.Reusable() || s == StatusFailed
}

// Job is one clip's trip through the stage chain, persisted so
// interrupted runs resume without repeating finished work.
type Job struct {
	ID           int64
	RunID        string
	ClipID       string
	ClipName     string
	ContentHash  string
	Status       Status
	SourcePath   string
	SpanPath     string
	OutputPath   string
	StageChain   string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
