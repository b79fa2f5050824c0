package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/webui-wrapper/internal/health"
)

// defaultSinkTimeout bounds each sink call so one slow sink cannot stall
// the monitor loop indefinitely.
const defaultSinkTimeout = 5 * time.Second

// Event is a health transition as seen by sinks.
type Event struct {
	Up       bool         `json:"up"`
	State    health.State `json:"-"`
	Previous health.State `json:"-"`
	At       time.Time    `json:"at"`
	Endpoint string       `json:"endpoint"`
}

// StateName returns the new state's name.
func (e Event) StateName() string { return e.State.String() }

// PreviousName returns the previous state's name.
func (e Event) PreviousName() string { return e.Previous.String() }

// Sink receives health transitions.
type Sink interface {
	Notify(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

// Notify calls f.
func (f SinkFunc) Notify(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

type namedSink struct {
	name string
	sink Sink
}

// Fanout delivers each transition to every registered sink.
type Fanout struct {
	endpoint string
	timeout  time.Duration
	logger   Logger
	now      func() time.Time

	mu       sync.RWMutex
	sinks    []namedSink
	previous health.State
}

// NewFanout creates an empty fan-out for the given endpoint label.
func NewFanout(endpoint string) *Fanout {
	return &Fanout{
		endpoint: endpoint,
		timeout:  defaultSinkTimeout,
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// SetLogger sets the logger for the fan-out.
func (f *Fanout) SetLogger(logger Logger) {
	f.logger = logger
}

// SetTimeout overrides the per-sink timeout.
func (f *Fanout) SetTimeout(d time.Duration) {
	f.timeout = d
}

// Add registers a sink. Sinks are notified in the order they were added.
// A nil sink is ignored.
func (f *Fanout) Add(name string, s Sink) {
	if s == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, namedSink{name: name, sink: s})
}

// Sinks returns the registered sink names in order.
func (f *Fanout) Sinks() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.name
	}
	return names
}

// Observe is a health.Observer. It builds an Event and delivers it to each
// sink in turn, returning only after every sink has been called.
func (f *Fanout) Observe(up bool) {
	f.ObserveContext(context.Background(), up)
}

// ObserveContext is a health.ContextObserver. Each sink's context derives
// from ctx; once ctx is done the remaining sinks are skipped.
func (f *Fanout) ObserveContext(ctx context.Context, up bool) {
	f.mu.Lock()
	ev := Event{
		Up:       up,
		State:    health.StateFromBool(up),
		Previous: f.previous,
		At:       f.now(),
		Endpoint: f.endpoint,
	}
	f.previous = ev.State
	sinks := append([]namedSink(nil), f.sinks...)
	f.mu.Unlock()

	for i, s := range sinks {
		if ctx.Err() != nil {
			f.logger.Warn("health delivery abandoned",
				"state", ev.StateName(),
				"skipped", len(sinks)-i,
				"error", ctx.Err(),
			)
			return
		}
		if err := f.deliver(ctx, s, ev); err != nil {
			f.logger.Warn("health sink failed",
				"sink", s.name,
				"state", ev.StateName(),
				"error", err,
			)
		}
	}
}

// Reset forgets the previous state, so the next event reports Unknown as
// its predecessor. Call after the monitor has been stopped.
func (f *Fanout) Reset() {
	f.mu.Lock()
	f.previous = health.StateUnknown
	f.mu.Unlock()
}

func (f *Fanout) deliver(parent context.Context, s namedSink, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(parent, f.timeout)
	defer cancel()
	return s.sink.Notify(ctx, ev)
}
