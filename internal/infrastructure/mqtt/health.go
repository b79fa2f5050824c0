package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/webui-wrapper/internal/notify"
)

// checkTimeout bounds a check requested over MQTT.
const checkTimeout = 5 * time.Second

// Broker is the subset of Client used by HealthPublisher.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
}

// CheckFunc runs an immediate health probe.
type CheckFunc func(ctx context.Context) bool

// HealthPublisher mirrors server health onto the broker.
type HealthPublisher struct {
	broker Broker
	qos    byte
}

// NewHealthPublisher creates a publisher using qos for every message.
func NewHealthPublisher(b Broker, qos byte) *HealthPublisher {
	return &HealthPublisher{broker: b, qos: qos}
}

// healthPayload is the retained message on webui/server/health.
type healthPayload struct {
	State     string `json:"state"`
	Previous  string `json:"previous"`
	Up        bool   `json:"up"`
	Endpoint  string `json:"endpoint"`
	Timestamp string `json:"timestamp"`
}

// commandPayload is accepted on webui/server/command.
type commandPayload struct {
	Command string `json:"command"`
}

// checkPayload answers a check command on webui/server/check.
type checkPayload struct {
	Up        bool   `json:"up"`
	Timestamp string `json:"timestamp"`
}

// Notify implements notify.Sink by publishing the new state retained.
func (p *HealthPublisher) Notify(ctx context.Context, ev notify.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(healthPayload{
		State:     ev.StateName(),
		Previous:  ev.PreviousName(),
		Up:        ev.Up,
		Endpoint:  ev.Endpoint,
		Timestamp: ev.At.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding health payload: %w", err)
	}
	return p.broker.Publish(ctx, Topics{}.ServerHealth(), payload, p.qos, true)
}

// ServeChecks subscribes to the command topic and answers {"command":"check"}
// by running check and publishing the result.
func (p *HealthPublisher) ServeChecks(check CheckFunc) error {
	return p.broker.Subscribe(Topics{}.ServerCommand(), p.qos, func(_ string, payload []byte) error {
		return p.handleCommand(payload, check)
	})
}

func (p *HealthPublisher) handleCommand(payload []byte, check CheckFunc) error {
	var cmd commandPayload
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("decoding command: %w", err)
	}
	if cmd.Command != "check" {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Command)
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	out, err := json.Marshal(checkPayload{
		Up:        check(ctx),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding check result: %w", err)
	}
	return p.broker.Publish(ctx, Topics{}.ServerCheckResult(), out, p.qos, false)
}

// Compile-time interface compliance checks
var (
	_ notify.Sink = (*HealthPublisher)(nil)
	_ Broker      = (*Client)(nil)
)
