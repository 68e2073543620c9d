// Package jobstore persists per-clip processing jobs in SQLite.
//
// Jobs are keyed by a content hash covering the source span and the
// stage configuration, so reprocessing an unchanged clip is a cache hit
// regardless of run or clip identity. Interrupted runs resume by
// resetting stalled jobs to pending and reclaiming them. A file lock
// keeps concurrent runs off the same cache.
package jobstore
