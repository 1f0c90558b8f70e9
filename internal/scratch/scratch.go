// Package scratch manages per-job temporary directories.
//
// Each job gets a uniquely named subdirectory under a shared root.
// A Space is released exactly once no matter how the job exits;
// callers release with defer so error and cancellation paths are covered.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
)

// ResourceError indicates that scratch space could not be allocated.
// It is fatal to the job and never retried.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("scratch %s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

var _ error = (*ResourceError)(nil)

// Manager creates isolated scratch spaces under a single root directory.
// It holds no cross-job state; uniqueness comes from the job ID plus a
// random suffix from os.MkdirTemp.
type Manager struct {
	root string
}

// NewManager ensures the scratch root exists and is writable.
func NewManager(root string) (*Manager, error) {
	if root == "" {
		return nil, &ResourceError{Op: "init", Err: fmt.Errorf("empty scratch root")}
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &ResourceError{Op: "init", Err: err}
	}

	probe, err := os.CreateTemp(root, "writecheck-*")
	if err != nil {
		return nil, &ResourceError{Op: "init", Err: err}
	}
	probe.Close()
	os.Remove(probe.Name())

	return &Manager{root: root}, nil
}

// Acquire creates an empty scratch directory for the given job.
// The directory name embeds the job ID so leftovers are attributable.
func (m *Manager) Acquire(jobID string) (*Space, error) {
	dir, err := os.MkdirTemp(m.root, jobID+"-")
	if err != nil {
		return nil, &ResourceError{Op: "acquire", Err: err}
	}
	return &Space{dir: dir}, nil
}

// Space is one job's scratch directory. It is never shared between jobs.
type Space struct {
	dir      string
	released atomic.Bool
}

// Dir returns the scratch directory path.
func (s *Space) Dir() string {
	return s.dir
}

// Path joins a file name onto the scratch directory.
func (s *Space) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Release removes the scratch directory and everything under it.
// It is idempotent; the second and later calls are no-ops.
func (s *Space) Release() error {
	if !s.released.CompareAndSwap(false, true) {
		return nil
	}
	return os.RemoveAll(s.dir)
}

// Released reports whether Release has already run.
func (s *Space) Released() bool {
	return s.released.Load()
}
