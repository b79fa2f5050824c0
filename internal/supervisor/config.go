package supervisor

import (
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/webui-wrapper/internal/health"
	"github.com/nerrad567/webui-wrapper/internal/infrastructure/config"
	"github.com/nerrad567/webui-wrapper/internal/process"
)

// Config holds everything a Supervisor needs. It is read-only after New.
type Config struct {
	// Command is the server executable and its arguments.
	Command process.Command

	// Endpoint is where the server listens.
	Endpoint health.Endpoint

	// Strategies are tried in order until one yields a ready server.
	Strategies []process.Strategy

	// SettleDelay is the pause between spawn and the first readiness poll.
	SettleDelay time.Duration

	// ReadyTimeout and ReadyInterval bound the readiness wait of one attempt.
	ReadyTimeout  time.Duration
	ReadyInterval time.Duration

	// ProbeTimeout bounds each TCP probe (Check and the monitor).
	ProbeTimeout time.Duration

	// MonitorInterval is the health monitor cadence.
	MonitorInterval time.Duration

	// StopTimeout is how long to wait after SIGTERM.
	StopTimeout time.Duration

	// KillAfterTimeout escalates to SIGKILL when StopTimeout expires.
	KillAfterTimeout bool

	// KillTimeout bounds the wait after SIGKILL.
	KillTimeout time.Duration
}

// DefaultConfig returns the stock configuration for open-webui on port 8080.
func DefaultConfig() Config {
	return Config{
		Command: process.Command{
			Name:   "open-webui",
			Binary: "open-webui",
			Args:   []string{"serve"},
		},
		Endpoint: health.Endpoint{
			Host:    "127.0.0.1",
			Port:    8080,
			BaseURL: "http://127.0.0.1:8080/",
		},
		Strategies:       append([]process.Strategy(nil), process.DefaultStrategies...),
		SettleDelay:      2 * time.Second,
		ReadyTimeout:     60 * time.Second,
		ReadyInterval:    5 * time.Second,
		ProbeTimeout:     1 * time.Second,
		MonitorInterval:  2 * time.Second,
		StopTimeout:      5 * time.Second,
		KillAfterTimeout: true,
		KillTimeout:      2 * time.Second,
	}
}

// FromConfig builds a supervisor Config from the application configuration.
func FromConfig(c *config.Config) (Config, error) {
	strategies, err := process.ParseStrategies(c.Server.Strategies)
	if err != nil {
		return Config{}, fmt.Errorf("parsing strategies: %w", err)
	}

	cfg := Config{
		Command: process.Command{
			Name:    "webui-server",
			Binary:  c.Server.Binary,
			Args:    c.Server.Args,
			Env:     c.Server.Env,
			WorkDir: c.Server.WorkDir,
		},
		Endpoint: health.Endpoint{
			Host:    c.Server.Host,
			Port:    c.Server.Port,
			BaseURL: c.Server.BaseURL,
		},
		Strategies:       strategies,
		SettleDelay:      c.Server.SettleDelay,
		ReadyTimeout:     c.Server.ReadyTimeout,
		ReadyInterval:    c.Server.ReadyInterval,
		ProbeTimeout:     c.Monitor.ProbeTimeout,
		MonitorInterval:  c.Monitor.Interval,
		StopTimeout:      c.Server.StopTimeout,
		KillAfterTimeout: c.Server.KillAfterTimeout,
		KillTimeout:      c.Server.KillTimeout,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	var errs []error
	if c.Command.Binary == "" {
		errs = append(errs, process.ErrEmptyBinary)
	}
	if err := c.Endpoint.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Strategies) == 0 {
		errs = append(errs, ErrNoStrategies)
	}
	if c.ReadyTimeout <= 0 || c.ReadyInterval <= 0 {
		errs = append(errs, errors.New("supervisor: readiness timeout and interval must be positive"))
	}
	if c.MonitorInterval <= 0 || c.ProbeTimeout <= 0 {
		errs = append(errs, errors.New("supervisor: monitor interval and probe timeout must be positive"))
	}
	if c.StopTimeout <= 0 {
		errs = append(errs, errors.New("supervisor: stop timeout must be positive"))
	}
	return errors.Join(errs...)
}

// terminateOptions converts the stop settings.
func (c Config) terminateOptions() process.TerminateOptions {
	return process.TerminateOptions{
		Timeout:          c.StopTimeout,
		KillAfterTimeout: c.KillAfterTimeout,
		KillTimeout:      c.KillTimeout,
	}
}
