// Package pipeline coordinates per-clip processing runs.
//
// The orchestrator feeds selected clips to a fixed worker pool. Each
// clip is extracted from its source, pushed through the configured stage
// chain, verified against the project's duration and frame size, and
// finally spliced back into the timeline in start-time order. Job state
// lives in the jobstore, keyed by content hash, so unchanged clips are
// cache hits and interrupted runs resume where they stopped. Failures
// are clip-granular: one bad clip never aborts the run.
package pipeline
