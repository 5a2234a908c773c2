// Package job implements the shell's job manager: pipeline launch under a
// dedicated process group, asynchronous lifecycle tracking, optional
// output capture, and the wait/poll/cancel/expunge operations the
// dispatcher uses to drive a job to completion.
//
// Concurrency is goroutine-and-channel based rather than signal-driven:
// a waiter goroutine reaps each stage and a separate goroutine drains
// captured output, with a completion channel closed only once both have
// finished, rather than a single global handler woken by SIGCHLD/SIGIO.
package job

import (
	"errors"
	"os"
	"sync"

	"github.com/mush-shell/mush/internal/pipeline"
)

// ID identifies a job for the lifetime of the process. IDs are assigned
// by Manager.Run in strictly increasing order and are never reused, even
// after Expunge.
type ID int64

// Status is a job's position in its lifecycle state machine. Terminal
// statuses (Completed, Aborted, Canceled) are sticky: once reached, no
// later event changes them.
type Status int

const (
	// StatusNew is the instant before the leader is recorded; callers
	// never observe it, since Run only returns once the job is published
	// as Running.
	StatusNew Status = iota
	StatusRunning
	StatusCompleted
	StatusAborted
	StatusCanceled
)

// String returns the lowercase status word used by Manager.Show.
func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusAborted:
		return "aborted"
	case StatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is one of the sticky end states.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAborted || s == StatusCanceled
}

var (
	// ErrUnknownJob is returned by any operation given an id not present
	// in the job table.
	ErrUnknownJob = errors.New("job: unknown job id")
	// ErrNotTerminal is returned by Poll (job still running) and Expunge
	// (job still running).
	ErrNotTerminal = errors.New("job: not terminal")
	// ErrAlreadyTerminal is returned by Cancel when the job has already
	// reached a sticky end state, or was already canceled once.
	ErrAlreadyTerminal = errors.New("job: already terminal or canceled")
	// ErrNotInitialized is returned by any Manager operation before Init.
	ErrNotInitialized = errors.New("job: manager not initialized")
)

// Job is one tracked pipeline invocation. All mutable fields are guarded
// by mu; Manager methods lock it as needed, and the completion/capture
// goroutines spawned by run() are the only other writers.
type Job struct {
	mu sync.Mutex

	id   ID
	pgid int

	status          Status
	rawStatus       RawStatus
	cancelRequested bool

	pipeline pipeline.Pipeline // owned deep copy

	captureR *os.File // read end; nil if the pipeline did not request capture
	captured []byte

	done chan struct{} // closed exactly once, by Run's finishing goroutine after reaping and capture draining end
}

// ID returns the job's identifier.
func (j *Job) ID() ID {
	return j.id
}

// PGID returns the process-group id of the job's leading stage.
func (j *Job) PGID() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pgid
}

// Status returns the job's current lifecycle state.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Pipeline returns the job's owned copy of the pipeline it is running.
func (j *Job) Pipeline() pipeline.Pipeline {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pipeline
}
