package process

import (
	"errors"
	"syscall"
	"time"
)

// Outcome describes how a termination request ended.
type Outcome int

const (
	// OutcomeClean means the child exited after SIGTERM within the timeout.
	OutcomeClean Outcome = iota
	// OutcomeTimedOut means the child was still alive when we gave up waiting.
	OutcomeTimedOut
	// OutcomeAlreadyExited means there was nothing to stop.
	OutcomeAlreadyExited
	// OutcomeKilled means SIGTERM was ignored and SIGKILL finished the job.
	OutcomeKilled
)

// String returns the lowercase name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeClean:
		return "clean"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeAlreadyExited:
		return "already_exited"
	case OutcomeKilled:
		return "killed"
	default:
		return "unknown"
	}
}

// TerminateOptions bounds a termination request.
type TerminateOptions struct {
	// Timeout is how long to wait for exit after SIGTERM.
	Timeout time.Duration

	// KillAfterTimeout escalates to SIGKILL when Timeout expires.
	KillAfterTimeout bool

	// KillTimeout is how long to wait for exit after SIGKILL.
	KillTimeout time.Duration
}

// DefaultTerminateOptions returns a 5s graceful window followed by SIGKILL.
func DefaultTerminateOptions() TerminateOptions {
	return TerminateOptions{
		Timeout:          5 * time.Second,
		KillAfterTimeout: true,
		KillTimeout:      2 * time.Second,
	}
}

// Budget is the longest Terminate can block with these options.
func (o TerminateOptions) Budget() time.Duration {
	if o.KillAfterTimeout {
		return o.Timeout + o.KillTimeout
	}
	return o.Timeout
}

// Terminate asks h to stop. It never blocks longer than opts.Budget().
// A nil handle yields OutcomeAlreadyExited.
func Terminate(h *Handle, opts TerminateOptions) Outcome {
	if h == nil {
		return OutcomeAlreadyExited
	}
	return h.Terminate(opts)
}

// Terminate sends SIGTERM to the child's process group and waits up to
// opts.Timeout for it to exit, escalating to SIGKILL when configured.
func (h *Handle) Terminate(opts TerminateOptions) Outcome {
	if h.Exited() {
		h.logger.Debug("server process already exited", "name", h.name)
		return OutcomeAlreadyExited
	}

	pid := h.PID()
	h.logger.Info("stopping server process", "name", h.name, "pid", pid)

	if !h.signal(syscall.SIGTERM) {
		return OutcomeAlreadyExited
	}

	if h.waitFor(opts.Timeout) {
		h.logger.Info("server process stopped gracefully", "name", h.name)
		return OutcomeClean
	}

	if !opts.KillAfterTimeout {
		h.logger.Warn("server process did not exit in time",
			"name", h.name,
			"pid", pid,
			"timeout", opts.Timeout,
		)
		return OutcomeTimedOut
	}

	h.logger.Warn("graceful shutdown timeout, sending SIGKILL",
		"name", h.name,
		"timeout", opts.Timeout,
	)
	if !h.signal(syscall.SIGKILL) {
		// Exited between the timeout and the kill
		return OutcomeClean
	}

	if h.waitFor(opts.KillTimeout) {
		h.logger.Info("server process killed", "name", h.name)
		return OutcomeKilled
	}

	h.logger.Error("server process survived SIGKILL",
		"name", h.name,
		"pid", pid,
		"timeout", opts.KillTimeout,
	)
	return OutcomeTimedOut
}

// signal delivers sig to the child's process group, falling back to the
// child alone if the group cannot be signalled. It returns false when the
// process no longer exists.
func (h *Handle) signal(sig syscall.Signal) bool {
	pid := h.PID()

	// Negative PID addresses the process group created via Setpgid
	err := syscall.Kill(-pid, sig)
	if err == nil {
		return true
	}
	if errors.Is(err, syscall.ESRCH) {
		return !h.Exited() && h.signalLeader(sig)
	}

	h.logger.Warn("failed to signal process group",
		"name", h.name,
		"signal", sig.String(),
		"error", err,
	)
	return h.signalLeader(sig)
}

func (h *Handle) signalLeader(sig syscall.Signal) bool {
	if err := h.cmd.Process.Signal(sig); err != nil {
		h.logger.Debug("failed to signal server process",
			"name", h.name,
			"signal", sig.String(),
			"error", err,
		)
		return false
	}
	return true
}

// waitFor blocks until the child exits or d elapses.
func (h *Handle) waitFor(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-h.done:
		return true
	case <-timer.C:
		return false
	}
}
