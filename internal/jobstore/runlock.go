package jobstore

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"loom/internal/config"
	"loom/internal/services"
)

// RunLock enforces single-run execution over a shared work directory.
// Two concurrent runs against the same cache would race on span files
// and job rows.
type RunLock struct {
	path string
	lock *flock.Flock
}

// NewRunLock constructs the lock under the configured cache directory.
func NewRunLock(cfg *config.Config) *RunLock {
	path := filepath.Join(cfg.Paths.CacheDir, "loom.lock")
	return &RunLock{path: path, lock: flock.New(path)}
}

// Acquire takes the lock without blocking, failing when another run
// holds it.
func (r *RunLock) Acquire() error {
	ok, err := r.lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "runlock", "acquire",
			fmt.Sprintf("cannot lock %s", r.path), err)
	}
	if !ok {
		return services.Wrap(services.ErrConfiguration, "runlock", "acquire",
			fmt.Sprintf("another run holds %s", r.path), nil)
	}
	return nil
}

// Release drops the lock.
func (r *RunLock) Release() error {
	return r.lock.Unlock()
}

// Path reports the lock file location.
func (r *RunLock) Path() string {
	return r.path
}
