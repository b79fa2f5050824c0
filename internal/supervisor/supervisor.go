package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/webui-wrapper/internal/health"
	"github.com/nerrad567/webui-wrapper/internal/process"
)

// Supervisor launches, watches and stops one web server process.
type Supervisor struct {
	cfg    Config
	logger Logger

	launcher  Launcher
	probe     health.ProbeFunc
	ready     ReadyFunc
	monitor   *health.Monitor
	attempts  []AttemptRecorder
	stops     []StopRecorder
	healthRec health.Recorder

	// lifecycle serialises Start and Stop.
	lifecycle sync.Mutex

	// mu guards handle for readers that must not wait on a Start in progress.
	mu     sync.RWMutex
	handle *process.Handle
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger used by the supervisor and its components.
func WithLogger(logger Logger) Option {
	return func(s *Supervisor) { s.logger = logger }
}

// WithLauncher replaces the process launcher.
func WithLauncher(l Launcher) Option {
	return func(s *Supervisor) { s.launcher = l }
}

// WithProbe replaces the TCP probe used by Check and the monitor.
func WithProbe(p health.ProbeFunc) Option {
	return func(s *Supervisor) { s.probe = p }
}

// WithReadiness replaces the readiness wait.
func WithReadiness(r ReadyFunc) Option {
	return func(s *Supervisor) { s.ready = r }
}

// WithAttemptRecorder adds a sink for launch attempts.
func WithAttemptRecorder(r AttemptRecorder) Option {
	return func(s *Supervisor) { s.attempts = append(s.attempts, r) }
}

// WithStopRecorder adds a sink for termination outcomes.
func WithStopRecorder(r StopRecorder) Option {
	return func(s *Supervisor) { s.stops = append(s.stops, r) }
}

// WithHealthRecorder sets the monitor's probe/transition recorder.
func WithHealthRecorder(r health.Recorder) Option {
	return func(s *Supervisor) { s.healthRec = r }
}

// New creates a Supervisor. Nothing is started until Start is called.
func New(cfg Config, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:    cfg,
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.launcher == nil {
		l := process.NewLauncher()
		l.SetLogger(s.logger)
		s.launcher = l
	}
	if s.probe == nil {
		s.probe = health.NewProber(cfg.Endpoint, cfg.ProbeTimeout).Probe
	}
	if s.ready == nil {
		w := health.NewReadinessWaiter(nil)
		w.SetLogger(s.logger)
		s.ready = w.Wait
	}

	s.monitor = health.NewMonitor(s.probe, cfg.MonitorInterval)
	s.monitor.SetLogger(s.logger)
	s.monitor.SetRecorder(s.healthRec)

	return s
}

// Config returns the supervisor's configuration.
func (s *Supervisor) Config() Config {
	return s.cfg
}

// Start ensures a ready server is running and reports whether it is.
// See StartResult for details.
func (s *Supervisor) Start(ctx context.Context) bool {
	_, err := s.StartResult(ctx)
	return err == nil
}

// StartResult ensures a ready server is running.
//
// If a child is already running and reachable it is kept and the report is
// marked Reused. A running but unreachable child is terminated first. Then
// each strategy is tried in order; the first ready server wins and the health
// monitor is (re)started. When every strategy fails the error wraps
// ErrAllStrategiesFailed.
func (s *Supervisor) StartResult(ctx context.Context) (Report, error) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if h := s.current(); h != nil {
		if !h.Exited() && s.probe(ctx) {
			s.logger.Info("server already running",
				"pid", h.PID(),
				"endpoint", s.cfg.Endpoint.String(),
			)
			s.monitor.Start(context.WithoutCancel(ctx))
			return Report{Reused: true, Strategy: h.Strategy(), PID: h.PID()}, nil
		}
		s.logger.Warn("server process not responding, relaunching",
			"pid", h.PID(),
			"exited", h.Exited(),
		)
		s.stopLocked()
	}

	var report Report
	for i, strategy := range s.cfg.Strategies {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			prev := s.cfg.Strategies[i-1]
			s.logger.Warn("falling back to next launch strategy",
				"from", prev.String(),
				"to", strategy.String(),
			)
		}

		a, h := s.attempt(ctx, strategy)
		report.Attempts = append(report.Attempts, a)
		for _, r := range s.attempts {
			r.RecordAttempt(a)
		}

		if a.Err == nil {
			s.setHandle(h)
			s.monitor.Start(context.WithoutCancel(ctx))
			report.Strategy = strategy
			report.PID = h.PID()
			return report, nil
		}
	}

	s.logger.Error("all launch strategies failed",
		"attempts", len(report.Attempts),
		"endpoint", s.cfg.Endpoint.String(),
	)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("%w: %w", ErrAllStrategiesFailed, err)
	}
	return report, ErrAllStrategiesFailed
}

// attempt runs one strategy: launch, settle, wait for readiness. On failure
// any spawned child has been terminated before it returns.
func (s *Supervisor) attempt(ctx context.Context, strategy process.Strategy) (Attempt, *process.Handle) {
	a := Attempt{Strategy: strategy, Started: time.Now()}

	h, err := s.launcher.Launch(s.cfg.Command, strategy)
	if err != nil {
		a.Err = err
		a.Duration = time.Since(a.Started)
		s.logger.Error("launch attempt failed",
			"strategy", strategy.String(),
			"error", err,
			"elapsed", a.Duration,
		)
		return a, nil
	}
	a.PID = h.PID()

	a.Err = s.awaitReady(ctx, h)
	if a.Err != nil {
		a.Terminated = true
		a.Outcome = h.Terminate(s.cfg.terminateOptions())
		a.Duration = time.Since(a.Started)
		s.logger.Error("launch attempt failed",
			"strategy", strategy.String(),
			"pid", a.PID,
			"error", a.Err,
			"termination", a.Outcome.String(),
			"elapsed", a.Duration,
		)
		return a, nil
	}

	a.Duration = time.Since(a.Started)
	s.logger.Info("server started",
		"strategy", strategy.String(),
		"pid", a.PID,
		"url", s.cfg.Endpoint.BaseURL,
		"elapsed", a.Duration,
	)
	return a, h
}

// awaitReady sleeps the settle delay then polls readiness. It gives up early
// if the child exits or ctx is cancelled.
func (s *Supervisor) awaitReady(ctx context.Context, h *process.Handle) error {
	if s.cfg.SettleDelay > 0 {
		timer := time.NewTimer(s.cfg.SettleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-h.Done():
			timer.Stop()
			return exitedEarly(h)
		case <-timer.C:
		}
	}

	readyCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-h.Done():
			cancel()
		case <-readyCtx.Done():
		}
	}()

	if s.ready(readyCtx, s.cfg.Endpoint.BaseURL, s.cfg.ReadyTimeout, s.cfg.ReadyInterval) {
		return nil
	}
	if h.Exited() {
		return exitedEarly(h)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w within %v", ErrNotReady, s.cfg.ReadyTimeout)
}

func exitedEarly(h *process.Handle) error {
	if err := h.ExitErr(); err != nil {
		return fmt.Errorf("%w: %w", ErrExitedEarly, err)
	}
	return fmt.Errorf("%w (exit code %d)", ErrExitedEarly, h.ExitCode())
}

// Check performs a single probe of the server's port.
func (s *Supervisor) Check(ctx context.Context) bool {
	return s.probe(ctx)
}

// Stop cancels the health monitor and terminates the child. It returns
// process.OutcomeAlreadyExited when nothing is running. Stop waits for an
// in-flight Start to finish; cancel that Start's context to shorten the wait.
func (s *Supervisor) Stop() process.Outcome {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.stopLocked()
}

func (s *Supervisor) stopLocked() process.Outcome {
	s.monitor.Stop()

	h := s.current()
	s.setHandle(nil)
	if h == nil {
		return process.OutcomeAlreadyExited
	}

	start := time.Now()
	outcome := h.Terminate(s.cfg.terminateOptions())
	elapsed := time.Since(start)

	for _, r := range s.stops {
		r.RecordStop(outcome, elapsed)
	}

	if outcome == process.OutcomeTimedOut {
		s.logger.Warn("server stop timed out", "pid", h.PID(), "elapsed", elapsed)
	} else {
		s.logger.Info("server stopped", "pid", h.PID(), "outcome", outcome.String(), "elapsed", elapsed)
	}
	return outcome
}

// SetObserver registers the single health observer. A nil observer clears it.
func (s *Supervisor) SetObserver(fn health.Observer) {
	s.monitor.SetObserver(fn)
}

// SetContextObserver registers an observer whose context is cancelled by Stop.
// It replaces any observer set with SetObserver.
func (s *Supervisor) SetContextObserver(fn health.ContextObserver) {
	s.monitor.SetContextObserver(fn)
}

// CurrentState reports whether the monitor last saw the server up.
func (s *Supervisor) CurrentState() bool {
	return s.monitor.Current() == health.StateUp
}

// State returns the monitor's last observed state.
func (s *Supervisor) State() health.State {
	return s.monitor.Current()
}

// ShutdownBudget is the longest Stop can take once no Start is in flight:
// termination (including SIGKILL escalation) plus monitor cancellation.
// An in-flight observer is waited for, so the bound holds only for observers
// registered with SetContextObserver that return once their context ends.
func (s *Supervisor) ShutdownBudget() time.Duration {
	return s.cfg.terminateOptions().Budget() + max(s.cfg.MonitorInterval, s.cfg.ProbeTimeout)
}

func (s *Supervisor) current() *process.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle
}

func (s *Supervisor) setHandle(h *process.Handle) {
	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()
}

// Status is a point-in-time snapshot for the status API.
type Status struct {
	State     string        `json:"state"`
	Up        bool          `json:"up"`
	Running   bool          `json:"running"`
	PID       int           `json:"pid,omitempty"`
	Strategy  string        `json:"strategy,omitempty"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	Uptime    time.Duration `json:"uptime_ns,omitempty"`
	ExitCode  *int          `json:"exit_code,omitempty"`
	Endpoint  string        `json:"endpoint"`
	BaseURL   string        `json:"base_url"`
}

// Status returns a snapshot without blocking on an in-flight Start.
func (s *Supervisor) Status() Status {
	state := s.monitor.Current()
	st := Status{
		State:    state.String(),
		Up:       state == health.StateUp,
		Endpoint: s.cfg.Endpoint.String(),
		BaseURL:  s.cfg.Endpoint.BaseURL,
	}

	h := s.current()
	if h == nil {
		return st
	}
	started := h.StartedAt()
	st.PID = h.PID()
	st.Strategy = h.Strategy().String()
	st.StartedAt = &started
	st.Uptime = h.Uptime()
	st.Running = !h.Exited()
	if !st.Running {
		code := h.ExitCode()
		st.ExitCode = &code
	}
	return st
}
