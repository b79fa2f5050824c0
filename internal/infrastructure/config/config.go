package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// Permission modes for saved configuration.
const (
	dirPermissions  = 0750
	filePermissions = 0600
)

// Config is the root configuration structure for the WebUI wrapper.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Window    WindowConfig    `yaml:"window"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig describes the external web server binary and how to launch it.
type ServerConfig struct {
	// Binary is the executable name or path (resolved via PATH when bare).
	Binary string `yaml:"binary"`

	// Args are the fixed arguments passed to the binary.
	Args []string `yaml:"args"`

	// WorkDir is the working directory for the child. Empty inherits ours.
	WorkDir string `yaml:"work_dir,omitempty"`

	// Env are extra key=value pairs appended to the inherited environment.
	Env []string `yaml:"env,omitempty"`

	// Host and Port identify the listener the child binds.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// BaseURL is polled for HTTP 200 during readiness.
	BaseURL string `yaml:"base_url"`

	// Strategies are tried in order until one yields a ready server.
	// Valid values: "direct", "captured" ("piped" is accepted as an alias).
	Strategies []string `yaml:"strategies"`

	// SettleDelay is how long to wait after spawn before readiness polling.
	SettleDelay time.Duration `yaml:"settle_delay"`

	// ReadyTimeout bounds the readiness wait for one strategy.
	ReadyTimeout time.Duration `yaml:"ready_timeout"`

	// ReadyInterval is the sleep between readiness polls.
	ReadyInterval time.Duration `yaml:"ready_interval"`

	// StopTimeout is how long to wait for exit after SIGTERM.
	StopTimeout time.Duration `yaml:"stop_timeout"`

	// KillAfterTimeout escalates to SIGKILL when StopTimeout expires.
	KillAfterTimeout bool `yaml:"kill_after_timeout"`

	// KillTimeout bounds the wait after SIGKILL.
	KillTimeout time.Duration `yaml:"kill_timeout"`
}

// MonitorConfig contains the continuous port-health monitor settings.
type MonitorConfig struct {
	Interval     time.Duration `yaml:"interval"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// WindowConfig holds the front-end window settings persisted between runs.
type WindowConfig struct {
	Title    string `yaml:"title"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	StartURL string `yaml:"start_url"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the local status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// CORSConfig lists origins allowed to call the API. Empty allows any origin,
// which suits a loopback-only listener.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket settings for the status API.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// MetricsConfig controls the Prometheus registry namespace.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults); a missing file keeps the defaults
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: WEBUI_SECTION_KEY
// For example: WEBUI_SERVER_BINARY, WEBUI_SERVER_PORT
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run: nothing persisted yet.
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to path atomically.
//
// The file is written to a temporary sibling and renamed into place, so a crash
// mid-write never leaves a truncated config behind.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := renameio.WriteFile(path, data, filePermissions); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// SaveWindow persists window settings into the file at path, keeping every
// other section as the file has it. Environment overrides are not applied,
// so secrets injected through WEBUI_* variables never reach disk.
func SaveWindow(path string, w WindowConfig) error {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.Window = w
	return Save(path, cfg)
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Binary:           "open-webui",
			Args:             []string{"serve"},
			Host:             "127.0.0.1",
			Port:             8080,
			BaseURL:          "http://127.0.0.1:8080/",
			Strategies:       []string{"direct", "captured"},
			SettleDelay:      2 * time.Second,
			ReadyTimeout:     60 * time.Second,
			ReadyInterval:    5 * time.Second,
			StopTimeout:      5 * time.Second,
			KillAfterTimeout: true,
			KillTimeout:      2 * time.Second,
		},
		Monitor: MonitorConfig{
			Interval:     2 * time.Second,
			ProbeTimeout: 1 * time.Second,
		},
		Window: WindowConfig{
			Title:    "Web UI",
			Width:    1024,
			Height:   768,
			StartURL: "http://127.0.0.1:8080/",
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/webui-wrapper.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "webui-wrapper",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8765,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "webui_wrapper",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: WEBUI_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("WEBUI_SERVER_BINARY"); v != "" {
		cfg.Server.Binary = v
	}
	if v := os.Getenv("WEBUI_SERVER_WORK_DIR"); v != "" {
		cfg.Server.WorkDir = v
	}
	if v := os.Getenv("WEBUI_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("WEBUI_SERVER_BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}

	// Database
	if v := os.Getenv("WEBUI_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("WEBUI_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("WEBUI_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("WEBUI_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("WEBUI_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("WEBUI_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Binary == "" {
		errs = append(errs, "server.binary is required")
	}
	if c.Server.Host == "" {
		errs = append(errs, "server.host is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if msg := validateBaseURL(c.Server.BaseURL, c.Server.Port); msg != "" {
		errs = append(errs, msg)
	}
	if len(c.Server.Strategies) == 0 {
		errs = append(errs, "server.strategies must list at least one strategy")
	}
	for _, s := range c.Server.Strategies {
		switch strings.ToLower(s) {
		case "direct", "captured", "piped":
		default:
			errs = append(errs, fmt.Sprintf("server.strategies: unknown strategy %q", s))
		}
	}
	if c.Server.ReadyTimeout <= 0 {
		errs = append(errs, "server.ready_timeout must be positive")
	}
	if c.Server.ReadyInterval <= 0 {
		errs = append(errs, "server.ready_interval must be positive")
	}
	if c.Server.SettleDelay < 0 {
		errs = append(errs, "server.settle_delay must not be negative")
	}
	if c.Server.StopTimeout <= 0 {
		errs = append(errs, "server.stop_timeout must be positive")
	}

	// Monitor validation
	if c.Monitor.Interval <= 0 {
		errs = append(errs, "monitor.interval must be positive")
	}
	if c.Monitor.ProbeTimeout <= 0 {
		errs = append(errs, "monitor.probe_timeout must be positive")
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateBaseURL returns a message describing why raw is unusable, or "".
// The URL's port must agree with the configured listener port.
func validateBaseURL(raw string, port int) string {
	if raw == "" {
		return "server.base_url is required"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "server.base_url must be an absolute URL"
	}
	if p := u.Port(); p != "" && p != strconv.Itoa(port) {
		return fmt.Sprintf("server.base_url port %s does not match server.port %d", p, port)
	}
	return ""
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
