package process

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordingLogger captures log records for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	records []string
}

func (l *recordingLogger) log(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, fmt.Sprintf("%s %s %v", level, msg, args))
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.log("DEBUG", msg, args...) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.log("INFO", msg, args...) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.log("WARN", msg, args...) }
func (l *recordingLogger) Error(msg string, args ...any) { l.log("ERROR", msg, args...) }

// waitForRecord polls until a record containing all substrings appears.
func (l *recordingLogger) waitForRecord(t *testing.T, substrs ...string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if l.has(substrs...) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	t.Fatalf("no log record containing %q; got %v", substrs, l.records)
}

func (l *recordingLogger) has(substrs ...string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.records {
		ok := true
		for _, s := range substrs {
			if !strings.Contains(r, s) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
}

func shell(script string) Command {
	return Command{Name: "test", Binary: "/bin/sh", Args: []string{"-c", script}}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{in: "direct", want: StrategyDirect},
		{in: "captured", want: StrategyCaptured},
		{in: "piped", want: StrategyCaptured},
		{in: " Captured ", want: StrategyCaptured},
		{in: "DIRECT", want: StrategyDirect},
		{in: "daemon", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownStrategy) {
					t.Errorf("ParseStrategy(%q) error = %v, want ErrUnknownStrategy", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStrategy(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseStrategy(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseStrategies(t *testing.T) {
	got, err := ParseStrategies(nil)
	if err != nil {
		t.Fatalf("ParseStrategies(nil) error = %v", err)
	}
	if len(got) != 2 || got[0] != StrategyDirect || got[1] != StrategyCaptured {
		t.Errorf("ParseStrategies(nil) = %v, want [direct captured]", got)
	}

	got, err = ParseStrategies([]string{"piped", "direct"})
	if err != nil {
		t.Fatalf("ParseStrategies() error = %v", err)
	}
	if len(got) != 2 || got[0] != StrategyCaptured || got[1] != StrategyDirect {
		t.Errorf("ParseStrategies() = %v, want [captured direct]", got)
	}

	if _, err := ParseStrategies([]string{"direct", "bogus"}); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("ParseStrategies() error = %v, want ErrUnknownStrategy", err)
	}
}

func TestStrategy_String(t *testing.T) {
	if got := StrategyDirect.String(); got != "direct" {
		t.Errorf("StrategyDirect.String() = %q, want direct", got)
	}
	if got := StrategyCaptured.String(); got != "captured" {
		t.Errorf("StrategyCaptured.String() = %q, want captured", got)
	}
}

func TestLaunch_MissingBinary(t *testing.T) {
	for _, s := range DefaultStrategies {
		t.Run(s.String(), func(t *testing.T) {
			_, err := Launch(Command{Binary: "/nonexistent/binary/path"}, s)
			if err == nil {
				t.Fatal("Launch() error = nil, want error")
			}
			var le *LaunchError
			if !errors.As(err, &le) {
				t.Fatalf("Launch() error = %T, want *LaunchError", err)
			}
			if le.Strategy != s {
				t.Errorf("LaunchError.Strategy = %v, want %v", le.Strategy, s)
			}
			if !errors.Is(err, os.ErrNotExist) {
				t.Errorf("Launch() error = %v, want wrapping ErrNotExist", err)
			}
		})
	}
}

func TestLaunch_EmptyBinary(t *testing.T) {
	_, err := Launch(Command{}, StrategyDirect)
	if !errors.Is(err, ErrEmptyBinary) {
		t.Errorf("Launch() error = %v, want ErrEmptyBinary", err)
	}
}

func TestLaunch_UnknownStrategy(t *testing.T) {
	_, err := Launch(shell("true"), Strategy(42))
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("Launch() error = %v, want ErrUnknownStrategy", err)
	}
}

func TestLaunch_DirectExitCode(t *testing.T) {
	h, err := Launch(shell("exit 3"), StrategyDirect)
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	waitDone(t, h)

	if got := h.ExitCode(); got != 3 {
		t.Errorf("ExitCode() = %d, want 3", got)
	}
	if h.ExitErr() == nil {
		t.Error("ExitErr() = nil, want non-nil for exit 3")
	}
	if !h.Exited() {
		t.Error("Exited() = false after Done")
	}
	if h.Strategy() != StrategyDirect {
		t.Errorf("Strategy() = %v, want direct", h.Strategy())
	}
}

func TestLaunch_CapturedRelaysOutput(t *testing.T) {
	logger := &recordingLogger{}
	l := NewLauncher()
	l.SetLogger(logger)

	h, err := l.Launch(shell("echo hello-out; echo hello-err >&2"), StrategyCaptured)
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	waitDone(t, h)

	logger.waitForRecord(t, "server output", "stdout", "hello-out")
	logger.waitForRecord(t, "server output", "stderr", "hello-err")
}

func openFDs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skipf("cannot count open descriptors: %v", err)
	}
	return len(entries)
}

func TestLaunch_CapturedReleasesPipes(t *testing.T) {
	// Finalizers would close leaked pipe ends and hide the leak.
	defer debug.SetGCPercent(debug.SetGCPercent(-1))

	before := openFDs(t)
	const launches = 20
	for range launches {
		h, err := Launch(shell("echo line"), StrategyCaptured)
		if err != nil {
			t.Fatalf("Launch() error = %v", err)
		}
		waitDone(t, h)
	}

	// Read ends are released after the relays drain, which trails Done.
	deadline := time.Now().Add(5 * time.Second)
	after := openFDs(t)
	for after > before+2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		after = openFDs(t)
	}
	if after > before+2 {
		t.Errorf("open descriptors grew from %d to %d over %d captured launches", before, after, launches)
	}
}

func TestLaunch_EnvAndWorkDir(t *testing.T) {
	dir := t.TempDir()
	logger := &recordingLogger{}
	l := NewLauncher()
	l.SetLogger(logger)

	cmd := shell(`echo "marker=$WRAPPER_TEST_VAR"; pwd`)
	cmd.Env = []string{"WRAPPER_TEST_VAR=42"}
	cmd.WorkDir = dir

	h, err := l.Launch(cmd, StrategyCaptured)
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	waitDone(t, h)

	logger.waitForRecord(t, "marker=42")
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("EvalSymlinks() error = %v", err)
	}
	logger.waitForRecord(t, resolved)
}

func TestHandle_Stats(t *testing.T) {
	h, err := Launch(Command{Name: "sleeper", Binary: "sleep", Args: []string{"30"}}, StrategyDirect)
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	defer h.Terminate(DefaultTerminateOptions())

	s := h.Stats()
	if s.Name != "sleeper" {
		t.Errorf("Stats.Name = %q, want sleeper", s.Name)
	}
	if s.PID != h.PID() || s.PID <= 0 {
		t.Errorf("Stats.PID = %d, want %d", s.PID, h.PID())
	}
	if s.Exited {
		t.Error("Stats.Exited = true for running process")
	}
	if h.ExitCode() != -1 {
		t.Errorf("ExitCode() = %d, want -1 while running", h.ExitCode())
	}
	if h.StartedAt().IsZero() {
		t.Error("StartedAt() is zero")
	}
}
