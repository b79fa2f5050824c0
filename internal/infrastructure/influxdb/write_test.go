package influxdb

import (
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/webui-wrapper/internal/health"
	"github.com/nerrad567/webui-wrapper/internal/notify"
	"github.com/nerrad567/webui-wrapper/internal/process"
	"github.com/nerrad567/webui-wrapper/internal/supervisor"
)

func pointTags(p *write.Point) map[string]string {
	tags := make(map[string]string)
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	return tags
}

func pointFields(p *write.Point) map[string]any {
	fields := make(map[string]any)
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	return fields
}

func TestTransitionPoint(t *testing.T) {
	at := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	p := transitionPoint(notify.Event{
		Up:       false,
		State:    health.StateDown,
		Previous: health.StateUp,
		At:       at,
		Endpoint: "127.0.0.1:8080",
	})

	if p.Name() != "server_health" {
		t.Errorf("Name() = %q, want server_health", p.Name())
	}
	if !p.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", p.Time(), at)
	}

	tags := pointTags(p)
	if tags["endpoint"] != "127.0.0.1:8080" || tags["state"] != "down" {
		t.Errorf("tags = %v, want endpoint and state=down", tags)
	}
	fields := pointFields(p)
	if fields["up"] != false || fields["from"] != "up" {
		t.Errorf("fields = %v, want up=false from=up", fields)
	}
}

func TestAttemptPoint(t *testing.T) {
	started := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

	ok := attemptPoint(supervisor.Attempt{
		Strategy: process.StrategyCaptured,
		Started:  started,
		Duration: 2500 * time.Millisecond,
		PID:      99,
	})
	if ok.Name() != "server_launch" || pointTags(ok)["strategy"] != "captured" {
		t.Errorf("point = %s %v, want server_launch strategy=captured", ok.Name(), pointTags(ok))
	}
	fields := pointFields(ok)
	if fields["succeeded"] != true || fields["duration_ms"] != int64(2500) || fields["pid"] != int64(99) {
		t.Errorf("fields = %v, want succeeded duration_ms=2500 pid=99", fields)
	}
	if _, present := fields["error"]; present {
		t.Error("error field present on successful attempt")
	}

	failed := attemptPoint(supervisor.Attempt{
		Strategy: process.StrategyDirect,
		Started:  started,
		Err:      errors.New("boom"),
	})
	fields = pointFields(failed)
	if fields["succeeded"] != false || fields["error"] != "boom" {
		t.Errorf("fields = %v, want succeeded=false error=boom", fields)
	}
	if _, present := fields["pid"]; present {
		t.Error("pid field present for failed spawn")
	}
}

func TestStopPoint(t *testing.T) {
	at := time.Now()
	p := stopPoint(process.OutcomeKilled, 7*time.Second, at)

	if p.Name() != "server_termination" || pointTags(p)["outcome"] != "killed" {
		t.Errorf("point = %s %v, want server_termination outcome=killed", p.Name(), pointTags(p))
	}
	if got := pointFields(p)["duration_ms"]; got != int64(7000) {
		t.Errorf("duration_ms = %v, want 7000", got)
	}
}

func TestRecorders_Disconnected(t *testing.T) {
	c := &Client{}

	// Must not touch the nil write API
	c.RecordAttempt(supervisor.Attempt{Strategy: process.StrategyDirect})
	c.RecordStop(process.OutcomeClean, time.Millisecond)
	c.Flush()
}
