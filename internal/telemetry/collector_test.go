package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/webui-wrapper/internal/health"
	"github.com/nerrad567/webui-wrapper/internal/process"
	"github.com/nerrad567/webui-wrapper/internal/supervisor"
)

// TestCollector_Transitions tests health transition metrics
func TestCollector_Transitions(t *testing.T) {
	c := NewCollector("test")

	c.TransitionObserved(health.StateUnknown, health.StateDown)
	c.TransitionObserved(health.StateDown, health.StateUp)
	c.TransitionObserved(health.StateUp, health.StateDown)

	count, err := testutil.GatherAndCount(c.registry, "test_health_transitions_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	expected := `
		# HELP test_health_transitions_total Total number of server health state transitions
		# TYPE test_health_transitions_total counter
		test_health_transitions_total{from_state="down",to_state="up"} 1
		test_health_transitions_total{from_state="unknown",to_state="down"} 1
		test_health_transitions_total{from_state="up",to_state="down"} 1
	`
	err = testutil.GatherAndCompare(c.registry, strings.NewReader(expected), "test_health_transitions_total")
	assert.NoError(t, err)
}

// TestCollector_Probes tests the up gauge and probe histogram
func TestCollector_Probes(t *testing.T) {
	c := NewCollector("test")

	c.ProbeObserved(true, 2*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.serverUp))

	c.ProbeObserved(false, time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.serverUp))

	count, err := testutil.GatherAndCount(c.registry, "test_probe_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per result label")
}

// TestCollector_Attempts tests launch attempt classification
func TestCollector_Attempts(t *testing.T) {
	c := NewCollector("test")

	c.RecordAttempt(supervisor.Attempt{
		Strategy: process.StrategyDirect,
		Duration: 10 * time.Millisecond,
		Err:      &process.LaunchError{Strategy: process.StrategyDirect, Err: errors.New("not found")},
	})
	c.RecordAttempt(supervisor.Attempt{
		Strategy: process.StrategyCaptured,
		Duration: 3 * time.Second,
		Err:      fmt.Errorf("%w within 60s", supervisor.ErrNotReady),
	})
	c.RecordAttempt(supervisor.Attempt{
		Strategy: process.StrategyCaptured,
		Duration: 4 * time.Second,
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.launchAttempts.WithLabelValues("direct", "spawn_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.launchAttempts.WithLabelValues("captured", "not_ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.launchAttempts.WithLabelValues("captured", "success")))
}

func TestAttemptResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{&process.LaunchError{Err: errors.New("x")}, "spawn_error"},
		{fmt.Errorf("%w: exit status 1", supervisor.ErrExitedEarly), "exited_early"},
		{supervisor.ErrNotReady, "not_ready"},
		{context.Canceled, "cancelled"},
		{errors.New("other"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, attemptResult(tt.err), "attemptResult(%v)", tt.err)
	}
}

// TestCollector_Stops tests termination metrics
func TestCollector_Stops(t *testing.T) {
	c := NewCollector("test")

	c.RecordStop(process.OutcomeClean, 100*time.Millisecond)
	c.RecordStop(process.OutcomeKilled, 7*time.Second)
	c.RecordStop(process.OutcomeClean, 200*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.terminations.WithLabelValues("clean")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.terminations.WithLabelValues("killed")))
}

// TestCollector_Handler tests the exposition endpoint
func TestCollector_Handler(t *testing.T) {
	c := NewCollector("test")
	c.ProbeObserved(true, time.Millisecond)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "test_server_up 1")
	assert.Contains(t, string(body), "go_goroutines")
}

// TestCollector_DefaultNamespace tests the namespace fallback
func TestCollector_DefaultNamespace(t *testing.T) {
	c := NewCollector("")
	c.RecordStop(process.OutcomeClean, time.Millisecond)

	count, err := testutil.GatherAndCount(c.Registry(), "webui_wrapper_terminations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
