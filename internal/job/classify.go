package job

import (
	"errors"
	"os/exec"
	"syscall"
)

// RawStatus is the decoded form of a stage's wait status. Decoding it
// explicitly, rather than handing callers an opaque syscall.WaitStatus,
// is what lets classify check Signaled before ExitStatus below.
type RawStatus struct {
	Exited     bool
	ExitCode   int
	Signaled   bool
	Signal     syscall.Signal
	CommandErr error // the non-exit error cmd.Wait() returned, if any
}

// Success reports whether the stage exited normally with code 0.
func (r RawStatus) Success() bool {
	return r.Exited && r.ExitCode == 0
}

// statusFromWait decodes the error returned by (*exec.Cmd).Wait into a
// RawStatus. A nil err means the stage exited successfully.
func statusFromWait(err error) RawStatus {
	if err == nil {
		return RawStatus{Exited: true, ExitCode: 0}
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		// Not even an ExitError: the command never ran (start failure)
		// or some other OS-level failure occurred before/around exec.
		return RawStatus{CommandErr: err}
	}

	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return RawStatus{Exited: true, ExitCode: exitErr.ExitCode(), CommandErr: err}
	}

	// Signaled is checked before ExitStatus: on a signaled child the
	// exit-status byte is meaningless, and reading it first can
	// misclassify a signal number that happens to collide with a
	// meaningful exit code.
	if ws.Signaled() {
		return RawStatus{Signaled: true, Signal: ws.Signal(), CommandErr: err}
	}
	return RawStatus{Exited: ws.Exited(), ExitCode: ws.ExitStatus(), CommandErr: err}
}

// classify maps a decoded RawStatus to the job's terminal status. Any
// SIGKILL death is treated as Canceled regardless of whether Cancel was
// actually called on this job first — a job killed by some other means
// with the same signal is indistinguishable from one this package
// canceled, and treating it as Canceled is the more useful answer for
// callers than Aborted.
func classify(rs RawStatus, _ bool) Status {
	switch {
	case rs.Signaled && rs.Signal == syscall.SIGKILL:
		return StatusCanceled
	case rs.Success():
		return StatusCompleted
	default:
		return StatusAborted
	}
}
