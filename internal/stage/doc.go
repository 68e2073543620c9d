// Package stage defines the per-clip processing contract and the built-in
// effect stages.
//
// A stage receives a Job describing one extracted clip span and produces
// an Artifact: a new media file plus the parameters to annotate the clip
// with. Stages are chained in configuration order, each consuming the
// previous stage's output. All four built-in stages shell out to external
// tools, so each exposes a HealthCheck that the orchestrator consults
// before starting a run.
package stage
