package pipeline

import (
	"sync"
	"time"

	"opusbot/internal/source"
	"opusbot/internal/transcode"
)

// State is a job's position in its lifecycle.
type State string

const (
	StatePending     State = "pending"
	StateResolving   State = "resolving"
	StateTranscoding State = "transcoding"
	StateDelivering  State = "delivering"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
	StateCancelled   State = "cancelled"
)

// Terminal reports whether the state ends the job.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Request is one inbound transcode request from the chat surface.
type Request struct {
	ChatID  string
	UserID  string
	Ref     source.Reference
	Options transcode.Options
}

// Job is one end-to-end request. The coordinator owns it exclusively
// for its lifetime; other goroutines may only read its state.
type Job struct {
	ID        string
	ChatID    string
	UserID    string
	Ref       source.Reference
	Options   transcode.Options
	CreatedAt time.Time

	mu    sync.Mutex
	state State
	err   error
}

func newJob(id string, req Request, now time.Time) *Job {
	return &Job{
		ID:        id,
		ChatID:    req.ChatID,
		UserID:    req.UserID,
		Ref:       req.Ref,
		Options:   req.Options,
		CreatedAt: now,
		state:     StatePending,
	}
}

// State returns the job's current state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Err returns the error that terminated the job, if any.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// advance moves the job to a non-terminal state. It is a no-op once a
// terminal state has been reached.
func (j *Job) advance(next State) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = next
}

// finish records the single terminal transition. The first caller wins;
// later calls report false and change nothing.
func (j *Job) finish(terminal State, err error) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return false
	}
	j.state = terminal
	j.err = err
	return true
}
