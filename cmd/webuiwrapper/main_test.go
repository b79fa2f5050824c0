package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/webui-wrapper/internal/history"
	"github.com/nerrad567/webui-wrapper/internal/infrastructure/config"
	"github.com/nerrad567/webui-wrapper/internal/infrastructure/database"
	"github.com/nerrad567/webui-wrapper/internal/supervisor"
)

// writeConfig writes a config pointing the server at host:port and returns
// the config path and database path.
func writeConfig(t *testing.T, binary string, args []string, host string, port int) (string, string) {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	dbPath := filepath.Join(dir, "history.db")

	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = strconv.Quote(a)
	}

	content := fmt.Sprintf(`
server:
  binary: %q
  args: [%s]
  host: %q
  port: %d
  base_url: "http://%s/"
  strategies: [direct, captured]
  settle_delay: 0s
  ready_timeout: 500ms
  ready_interval: 20ms
  stop_timeout: 2s
  kill_timeout: 1s
monitor:
  interval: 50ms
  probe_timeout: 100ms
database:
  enabled: true
  path: %q
  wal_mode: true
  busy_timeout: 5
api:
  enabled: false
metrics:
  enabled: true
  namespace: test
logging:
  level: error
  format: text
  output: stderr
`, binary, strings.Join(quoted, ", "), host, port, net.JoinHostPort(host, strconv.Itoa(port)), dbPath)

	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath, dbPath
}

func listAttempts(t *testing.T, dbPath string) []history.LaunchAttempt {
	t.Helper()
	db, err := database.Open(context.Background(), database.Config{Path: dbPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	list, err := history.NewSQLiteRepository(db.DB).ListAttempts(context.Background(), history.Filter{})
	if err != nil {
		t.Fatalf("ListAttempts() error = %v", err)
	}
	return list.Attempts
}

// freePort returns a loopback port nothing is listening on.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close() //nolint:errcheck // Port is released for the test
	return port
}

func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv(configEnvVar, "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	want := "/custom/path/config.yaml"
	t.Setenv(configEnvVar, want)
	if got := getConfigPath(); got != want {
		t.Errorf("getConfigPath() = %q, want %q", got, want)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 0\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, path); err == nil {
		t.Fatal("run() error = nil, want validation error")
	}
}

// TestRun_AllStrategiesFail verifies a missing binary exits with an error
// after recording one attempt per strategy.
func TestRun_AllStrategiesFail(t *testing.T) {
	configPath, dbPath := writeConfig(t, "/nonexistent/webui-server", nil, "127.0.0.1", freePort(t))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := run(ctx, configPath)
	if !errors.Is(err, supervisor.ErrAllStrategiesFailed) {
		t.Fatalf("run() error = %v, want ErrAllStrategiesFailed", err)
	}

	attempts := listAttempts(t, dbPath)
	if len(attempts) != 2 {
		t.Fatalf("recorded attempts = %d, want 2", len(attempts))
	}
	for _, a := range attempts {
		if a.Succeeded || a.Error == "" {
			t.Errorf("attempt %+v, want failure with error text", a)
		}
	}
}

// TestRun_StartupAndShutdown runs a long-lived child against an endpoint
// that is already answering, then cancels and checks the clean shutdown.
func TestRun_StartupAndShutdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort() error = %v", err)
	}
	port, _ := strconv.Atoi(portStr) //nolint:errcheck // httptest address is well formed

	configPath, dbPath := writeConfig(t, "/bin/sleep", []string{"30"}, host, port)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := run(ctx, configPath); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 6*time.Second {
		t.Errorf("run() took %v after cancellation, want bounded shutdown", elapsed)
	}

	attempts := listAttempts(t, dbPath)
	if len(attempts) != 1 || !attempts[0].Succeeded {
		t.Fatalf("attempts = %+v, want one successful attempt", attempts)
	}
	if attempts[0].Strategy != "direct" {
		t.Errorf("Strategy = %q, want direct", attempts[0].Strategy)
	}

	saved, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config.Load() after run error = %v", err)
	}
	if saved.Window.Title == "" {
		t.Error("window settings were not persisted on shutdown")
	}
}

func TestCheck(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort() error = %v", err)
	}
	port, _ := strconv.Atoi(portStr) //nolint:errcheck // httptest address is well formed

	t.Run("up", func(t *testing.T) {
		configPath, _ := writeConfig(t, "/bin/true", nil, host, port)
		var out bytes.Buffer
		if err := check(context.Background(), configPath, &out); err != nil {
			t.Fatalf("check() error = %v", err)
		}
		if !strings.Contains(out.String(), "up") {
			t.Errorf("output = %q, want up", out.String())
		}
	})

	t.Run("down", func(t *testing.T) {
		configPath, _ := writeConfig(t, "/bin/true", nil, "127.0.0.1", freePort(t))
		var out bytes.Buffer
		err := check(context.Background(), configPath, &out)
		if !errors.Is(err, errServerDown) {
			t.Fatalf("check() error = %v, want errServerDown", err)
		}
		if !strings.Contains(out.String(), "down") {
			t.Errorf("output = %q, want down", out.String())
		}
	})
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), version) {
		t.Errorf("output = %q, want version %q", out.String(), version)
	}
}

func TestRootCommand_ErrorPrintedOnce(t *testing.T) {
	var errOut bytes.Buffer
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"no-such-command"})
	defer func() {
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()

	if err := rootCmd.Execute(); err == nil {
		t.Fatal("Execute() error = nil, want unknown command error")
	}
	if errOut.Len() != 0 {
		t.Errorf("cobra wrote %q, want nothing; main reports the error", errOut.String())
	}
}
