// Package logging provides structured logging for the WebUI wrapper.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application,
// including the relayed stdout/stderr of the supervised server.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # text, json
//	  output: "stderr"   # stderr, stdout
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("server ready", "url", cfg.Server.BaseURL)
//	logger.Error("launch failed", "strategy", "direct", "error", err)
//
// Never log secrets such as the MQTT password or InfluxDB token.
package logging
