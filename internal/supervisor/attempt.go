package supervisor

import (
	"context"
	"time"

	"github.com/nerrad567/webui-wrapper/internal/process"
)

// Attempt is the result of trying one launch strategy.
type Attempt struct {
	Strategy process.Strategy
	Started  time.Time
	Duration time.Duration

	// PID is zero when the spawn itself failed.
	PID int

	// Err is nil for the attempt that produced a ready server.
	Err error

	// Terminated is set when a spawned child was torn down after a failed
	// readiness wait; Outcome then holds how that went.
	Terminated bool
	Outcome    process.Outcome
}

// Succeeded reports whether this attempt produced a ready server.
func (a Attempt) Succeeded() bool {
	return a.Err == nil
}

// Report summarises a StartResult call.
type Report struct {
	// Attempts lists every strategy tried, in order. Empty when Reused.
	Attempts []Attempt

	// Reused is set when an already running, reachable server was kept.
	Reused bool

	// Strategy and PID describe the running server on success.
	Strategy process.Strategy
	PID      int
}

// Fallbacks returns how many times Start moved on to another strategy.
func (r Report) Fallbacks() int {
	return max(len(r.Attempts)-1, 0)
}

// AttemptRecorder receives every launch attempt as it completes.
type AttemptRecorder interface {
	RecordAttempt(a Attempt)
}

// StopRecorder receives the outcome of every Stop that terminated a child.
type StopRecorder interface {
	RecordStop(outcome process.Outcome, elapsed time.Duration)
}

// Launcher spawns the server. *process.Launcher satisfies it.
type Launcher interface {
	Launch(c process.Command, s process.Strategy) (*process.Handle, error)
}

// ReadyFunc waits for the server to answer readiness polls.
// (*health.ReadinessWaiter).Wait satisfies it.
type ReadyFunc func(ctx context.Context, url string, timeout, interval time.Duration) bool
