package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/webui-wrapper/internal/notify"
	"github.com/nerrad567/webui-wrapper/internal/process"
	"github.com/nerrad567/webui-wrapper/internal/supervisor"
)

// Measurement names.
const (
	measurementHealth      = "server_health"
	measurementLaunch      = "server_launch"
	measurementTermination = "server_termination"
)

// Notify implements notify.Sink by writing a server_health point.
func (c *Client) Notify(ctx context.Context, ev notify.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.writeAPI.WritePoint(transitionPoint(ev))
	return nil
}

// RecordAttempt implements supervisor.AttemptRecorder.
func (c *Client) RecordAttempt(a supervisor.Attempt) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(attemptPoint(a))
}

// RecordStop implements supervisor.StopRecorder.
func (c *Client) RecordStop(outcome process.Outcome, elapsed time.Duration) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(stopPoint(outcome, elapsed, time.Now()))
}

func transitionPoint(ev notify.Event) *write.Point {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	return write.NewPoint(
		measurementHealth,
		map[string]string{
			"endpoint": ev.Endpoint,
			"state":    ev.StateName(),
		},
		map[string]any{
			"up":   ev.Up,
			"from": ev.PreviousName(),
		},
		at,
	)
}

func attemptPoint(a supervisor.Attempt) *write.Point {
	fields := map[string]any{
		"duration_ms": a.Duration.Milliseconds(),
		"succeeded":   a.Succeeded(),
	}
	if a.PID != 0 {
		fields["pid"] = a.PID
	}
	if a.Err != nil {
		fields["error"] = a.Err.Error()
	}
	at := a.Started
	if at.IsZero() {
		at = time.Now()
	}
	return write.NewPoint(
		measurementLaunch,
		map[string]string{"strategy": a.Strategy.String()},
		fields,
		at,
	)
}

func stopPoint(outcome process.Outcome, elapsed time.Duration, at time.Time) *write.Point {
	return write.NewPoint(
		measurementTermination,
		map[string]string{"outcome": outcome.String()},
		map[string]any{"duration_ms": elapsed.Milliseconds()},
		at,
	)
}

// Compile-time interface compliance checks
var (
	_ notify.Sink                = (*Client)(nil)
	_ supervisor.AttemptRecorder = (*Client)(nil)
	_ supervisor.StopRecorder    = (*Client)(nil)
)
