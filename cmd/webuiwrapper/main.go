// WebUI Wrapper launches a local web UI server, waits until it answers,
// keeps watching its port and stops it cleanly on shutdown.
//
// Health transitions are fanned out to the status API, SQLite history,
// MQTT and InfluxDB when those are enabled.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/webui-wrapper/internal/api"
	"github.com/nerrad567/webui-wrapper/internal/health"
	"github.com/nerrad567/webui-wrapper/internal/history"
	"github.com/nerrad567/webui-wrapper/internal/infrastructure/config"
	"github.com/nerrad567/webui-wrapper/internal/infrastructure/database"
	"github.com/nerrad567/webui-wrapper/internal/infrastructure/influxdb"
	"github.com/nerrad567/webui-wrapper/internal/infrastructure/logging"
	"github.com/nerrad567/webui-wrapper/internal/infrastructure/mqtt"
	"github.com/nerrad567/webui-wrapper/internal/notify"
	"github.com/nerrad567/webui-wrapper/internal/supervisor"
	"github.com/nerrad567/webui-wrapper/internal/telemetry"
	"github.com/nerrad567/webui-wrapper/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// defaultConfigPath is used when neither --config nor WEBUI_CONFIG is set.
	defaultConfigPath = "configs/config.yaml"

	// configEnvVar names the environment variable holding the config path.
	configEnvVar = "WEBUI_CONFIG"
)

// errServerDown is returned by the check command when the port is closed.
var errServerDown = errors.New("server is not accepting connections")

var configPath string

var rootCmd = &cobra.Command{
	Use:   "webuiwrapper",
	Short: "Supervise a local web UI server",
	Long: `Launch a local web UI server, wait until it is ready, monitor its port
and terminate it on shutdown.

Example:
  webuiwrapper run
  webuiwrapper run --config /etc/webui/config.yaml
  webuiwrapper check
`,
	SilenceUsage:  true,
	SilenceErrors: true, // main prints the error once
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the server and supervise it until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), configPath)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe the configured server port once (exit 0 if up, 1 if down)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return check(cmd.Context(), configPath, cmd.OutOrStdout())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "webuiwrapper %s (commit %s, built %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(),
		"Configuration file (env "+configEnvVar+")")
	rootCmd.AddCommand(runCmd, checkCmd, versionCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getConfigPath returns the configuration file path.
// Uses WEBUI_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}

// run starts the server and supervises it until ctx is cancelled.
//
// It returns an error when configuration is invalid or no launch strategy
// produced a ready server. Cancellation during startup is a clean exit.
func run(ctx context.Context, path string) error {
	log := logging.Default()
	log.Info("starting webui wrapper",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", path)

	supCfg, err := supervisor.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("building supervisor config: %w", err)
	}

	fanout := notify.NewFanout(supCfg.Endpoint.String())
	fanout.SetLogger(log)
	opts := []supervisor.Option{supervisor.WithLogger(log)}

	// History (SQLite)
	var repo *history.SQLiteRepository
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.Open(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database ready", "path", db.Path())

		repo = history.NewSQLiteRepository(db.DB)
		repo.SetLogger(log)
		opts = append(opts, supervisor.WithAttemptRecorder(repo))
		fanout.Add("history", repo)
	}

	// Metrics (Prometheus)
	var collector *telemetry.Collector
	if cfg.Metrics.Enabled {
		collector = telemetry.NewCollector(cfg.Metrics.Namespace)
		opts = append(opts,
			supervisor.WithAttemptRecorder(collector),
			supervisor.WithStopRecorder(collector),
			supervisor.WithHealthRecorder(collector),
		)
	}

	// InfluxDB
	influxClient := connectInflux(cfg.InfluxDB, log)
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		opts = append(opts,
			supervisor.WithAttemptRecorder(influxClient),
			supervisor.WithStopRecorder(influxClient),
		)
		fanout.Add("influxdb", influxClient)
	}

	sup := supervisor.New(supCfg, opts...)

	// MQTT
	mqttClient := connectMQTT(cfg.MQTT, log)
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		publisher := mqtt.NewHealthPublisher(mqttClient, byte(cfg.MQTT.QoS)) // #nosec G115 -- validated 0..2
		if err := publisher.ServeChecks(sup.Check); err != nil {
			log.Warn("MQTT check command unavailable", "error", err)
		}
		fanout.Add("mqtt", publisher)
	}

	// Status API
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Logger:     log,
			Supervisor: sup,
			Version:    version,
		}
		if repo != nil {
			deps.History = repo
			deps.DB = db
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		if influxClient != nil {
			deps.Influx = influxClient
		}
		if collector != nil {
			deps.Metrics = collector.Handler()
		}

		apiServer, err := api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		fanout.Add("websocket", apiServer.Hub())
	}

	sup.SetContextObserver(fanout.ObserveContext)
	log.Info("health sinks registered", "sinks", fanout.Sinks())

	report, err := sup.StartResult(ctx)
	if err != nil {
		shutdown(sup, log)
		if ctx.Err() != nil {
			log.Info("startup cancelled")
			return nil
		}
		return fmt.Errorf("starting server: %w", err)
	}
	log.Info("server ready",
		"strategy", report.Strategy.String(),
		"pid", report.PID,
		"fallbacks", report.Fallbacks(),
		"reused", report.Reused,
		"url", supCfg.Endpoint.BaseURL,
	)

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	shutdown(sup, log)
	if err := config.SaveWindow(path, cfg.Window); err != nil {
		log.Warn("failed to save window settings", "path", path, "error", err)
	}

	// Deferred closes run in reverse order: API, MQTT, InfluxDB, database.
	log.Info("webui wrapper stopped")
	return nil
}

// shutdown stops the monitor and the child. It is bounded by the
// supervisor's ShutdownBudget.
func shutdown(sup *supervisor.Supervisor, log *logging.Logger) {
	start := time.Now()
	outcome := sup.Stop()
	log.Info("supervisor stopped",
		"outcome", outcome.String(),
		"elapsed", time.Since(start),
		"budget", sup.ShutdownBudget(),
	)
}

// connectInflux returns nil when InfluxDB is disabled or unreachable.
// Telemetry backends are optional; the server is started regardless.
func connectInflux(cfg config.InfluxDBConfig, log *logging.Logger) *influxdb.Client {
	if !cfg.Enabled {
		log.Info("InfluxDB disabled")
		return nil
	}
	client, err := influxdb.Connect(cfg)
	if err != nil {
		log.Warn("InfluxDB unavailable, continuing without it", "url", cfg.URL, "error", err)
		return nil
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)
	return client
}

// connectMQTT returns nil when MQTT is disabled or the broker is unreachable.
func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) *mqtt.Client {
	if !cfg.Enabled {
		log.Info("MQTT disabled")
		return nil
	}
	client, err := mqtt.Connect(cfg)
	if err != nil {
		log.Warn("MQTT unavailable, continuing without it",
			"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
			"error", err,
		)
		return nil
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)
	return client
}

// check probes the configured endpoint once and reports the result.
func check(ctx context.Context, path string, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	ep := health.Endpoint{Host: cfg.Server.Host, Port: cfg.Server.Port, BaseURL: cfg.Server.BaseURL}

	if !health.Probe(ctx, ep.Addr(), cfg.Monitor.ProbeTimeout) {
		fmt.Fprintf(out, "%s down\n", ep)
		return fmt.Errorf("%s: %w", ep, errServerDown)
	}
	fmt.Fprintf(out, "%s up\n", ep)
	return nil
}
