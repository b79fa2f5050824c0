package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// State is the last observed reachability of the server.
type State int32

const (
	// StateUnknown means no probe has completed since the monitor started.
	StateUnknown State = iota
	// StateUp means the last probe connected.
	StateUp
	// StateDown means the last probe failed.
	StateDown
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateUp:
		return "up"
	case StateDown:
		return "down"
	default:
		return "unknown"
	}
}

// StateFromBool maps a probe result to a state.
func StateFromBool(up bool) State {
	if up {
		return StateUp
	}
	return StateDown
}

// Observer is notified of reachability changes. It is called synchronously
// on the monitor goroutine, so a slow observer delays the next tick, and it
// must not call Stop on the monitor that invoked it.
type Observer func(up bool)

// ContextObserver is an Observer that also receives the loop context.
// The context is cancelled when Stop is called, so an observer doing I/O
// can give up instead of holding Stop open.
type ContextObserver func(ctx context.Context, up bool)

// Recorder receives every probe result and every transition.
// Telemetry sinks implement it; the zero monitor uses a no-op recorder.
type Recorder interface {
	ProbeObserved(up bool, latency time.Duration)
	TransitionObserved(from, to State)
}

type noopRecorder struct{}

func (noopRecorder) ProbeObserved(bool, time.Duration) {}
func (noopRecorder) TransitionObserved(State, State)   {}

// Monitor probes the server on a fixed cadence and reports transitions.
//
// The first completed probe after Start is always reported (Unknown is never
// equal to Up or Down); after that the observer only hears about changes.
// At most one loop runs per monitor. Each loop carries a generation number;
// a loop whose generation is no longer current exits without notifying.
type Monitor struct {
	probe    ProbeFunc
	interval time.Duration
	logger   Logger
	recorder Recorder

	observer atomic.Pointer[ContextObserver]
	state    atomic.Int32
	gen      atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a stopped monitor.
func NewMonitor(probe ProbeFunc, interval time.Duration) *Monitor {
	return &Monitor{
		probe:    probe,
		interval: interval,
		logger:   noopLogger{},
		recorder: noopRecorder{},
	}
}

// SetLogger sets the logger for the monitor. Call before Start.
func (m *Monitor) SetLogger(logger Logger) {
	m.logger = logger
}

// SetRecorder sets the telemetry recorder. Call before Start.
func (m *Monitor) SetRecorder(r Recorder) {
	if r == nil {
		r = noopRecorder{}
	}
	m.recorder = r
}

// SetObserver replaces the single observer slot. A nil observer clears it.
// Safe to call while the loop is running; the next transition uses the new value.
func (m *Monitor) SetObserver(fn Observer) {
	if fn == nil {
		m.observer.Store(nil)
		return
	}
	m.SetContextObserver(func(_ context.Context, up bool) { fn(up) })
}

// SetContextObserver is SetObserver for an observer that honours cancellation.
// It shares the single slot with SetObserver.
func (m *Monitor) SetContextObserver(fn ContextObserver) {
	if fn == nil {
		m.observer.Store(nil)
		return
	}
	m.observer.Store(&fn)
}

// Current returns the last observed state. It is StateUnknown while stopped.
func (m *Monitor) Current() State {
	return State(m.state.Load())
}

// Running reports whether a loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runningLocked()
}

func (m *Monitor) runningLocked() bool {
	if m.done == nil {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

// Start launches the monitoring loop. It returns false without doing anything
// if a loop is already running. The loop also ends when ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.runningLocked() {
		return false
	}

	gen := m.gen.Add(1)
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.state.Store(int32(StateUnknown))

	go m.run(loopCtx, gen, done)

	m.logger.Debug("health monitor started", "interval", m.interval)
	return true
}

// Stop cancels the loop and waits for it to exit. After Stop returns the
// observer will not be called again. Stop on a stopped monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	stopGen := m.gen.Add(1)
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	m.mu.Lock()
	if m.gen.Load() == stopGen {
		m.state.Store(int32(StateUnknown))
	}
	m.mu.Unlock()
	m.logger.Debug("health monitor stopped")
}

func (m *Monitor) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	defer func() {
		if m.gen.Load() == gen {
			m.state.Store(int32(StateUnknown))
		}
	}()

	last := StateUnknown
	for {
		if ctx.Err() != nil {
			return
		}

		start := time.Now()
		up := m.probe(ctx)
		if ctx.Err() != nil {
			// A probe cut short by cancellation says nothing about the server.
			return
		}
		m.recorder.ProbeObserved(up, time.Since(start))

		if next := StateFromBool(up); next != last {
			if m.gen.Load() != gen {
				return
			}
			prev := last
			last = next
			m.state.Store(int32(next))
			m.recorder.TransitionObserved(prev, next)
			m.notify(ctx, prev, next)
		}

		timer := time.NewTimer(m.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// notify delivers a transition to the observer, containing any panic so a
// faulty observer cannot kill the loop.
func (m *Monitor) notify(ctx context.Context, prev, next State) {
	if next == StateDown && prev == StateUp {
		m.logger.Warn("server health changed", "from", prev.String(), "to", next.String())
	} else {
		m.logger.Info("server health changed", "from", prev.String(), "to", next.String())
	}

	obs := m.observer.Load()
	if obs == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("health observer panicked", "panic", r)
		}
	}()
	(*obs)(ctx, next == StateUp)
}
