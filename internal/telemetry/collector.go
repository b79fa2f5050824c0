package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/webui-wrapper/internal/health"
	"github.com/nerrad567/webui-wrapper/internal/process"
	"github.com/nerrad567/webui-wrapper/internal/supervisor"
)

// Collector records supervisor metrics in a private Prometheus registry.
type Collector struct {
	// Health metrics
	serverUp      prometheus.Gauge
	transitions   *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec

	// Launch metrics
	launchAttempts *prometheus.CounterVec
	launchDuration *prometheus.HistogramVec

	// Termination metrics
	terminations        *prometheus.CounterVec
	terminationDuration prometheus.Histogram

	registry *prometheus.Registry
}

// NewCollector creates a collector. An empty namespace defaults to "webui_wrapper".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "webui_wrapper"
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
	}

	c.serverUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_up",
			Help:      "Whether the last health probe reached the server (1) or not (0)",
		},
	)

	c.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_transitions_total",
			Help:      "Total number of server health state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	c.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Duration of TCP health probes",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"result"},
	)

	c.launchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launch_attempts_total",
			Help:      "Total number of server launch attempts",
		},
		[]string{"strategy", "result"},
	)

	c.launchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "launch_duration_seconds",
			Help:      "Duration of launch attempts from spawn to ready or failure",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"strategy"},
	)

	c.terminations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminations_total",
			Help:      "Total number of server terminations by outcome",
		},
		[]string{"outcome"},
	)

	c.terminationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "termination_duration_seconds",
			Help:      "Duration of server termination",
			Buckets:   prometheus.DefBuckets,
		},
	)

	c.registry.MustRegister(
		c.serverUp,
		c.transitions,
		c.probeDuration,
		c.launchAttempts,
		c.launchDuration,
		c.terminations,
		c.terminationDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
	)

	return c
}

// ProbeObserved records a single health probe.
func (c *Collector) ProbeObserved(up bool, latency time.Duration) {
	result := "down"
	if up {
		result = "up"
		c.serverUp.Set(1)
	} else {
		c.serverUp.Set(0)
	}
	c.probeDuration.WithLabelValues(result).Observe(latency.Seconds())
}

// TransitionObserved records a health state transition.
func (c *Collector) TransitionObserved(from, to health.State) {
	c.transitions.WithLabelValues(from.String(), to.String()).Inc()
}

// RecordAttempt records a launch attempt.
func (c *Collector) RecordAttempt(a supervisor.Attempt) {
	strategy := a.Strategy.String()
	c.launchAttempts.WithLabelValues(strategy, attemptResult(a.Err)).Inc()
	c.launchDuration.WithLabelValues(strategy).Observe(a.Duration.Seconds())
}

// RecordStop records a termination.
func (c *Collector) RecordStop(outcome process.Outcome, elapsed time.Duration) {
	c.terminations.WithLabelValues(outcome.String()).Inc()
	c.terminationDuration.Observe(elapsed.Seconds())
}

// Registry returns the Prometheus registry for HTTP handler setup.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an http.Handler exposing the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// attemptResult maps an attempt error to a low-cardinality label.
func attemptResult(err error) string {
	var le *process.LaunchError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &le):
		return "spawn_error"
	case errors.Is(err, supervisor.ErrExitedEarly):
		return "exited_early"
	case errors.Is(err, supervisor.ErrNotReady):
		return "not_ready"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

// Compile-time interface compliance checks
var (
	_ health.Recorder            = (*Collector)(nil)
	_ supervisor.AttemptRecorder = (*Collector)(nil)
	_ supervisor.StopRecorder    = (*Collector)(nil)
)
