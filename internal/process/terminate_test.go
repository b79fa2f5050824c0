package process

import (
	"testing"
	"time"
)

// launchStubborn starts a shell that ignores SIGTERM and waits until the
// trap is installed before returning.
func launchStubborn(t *testing.T) *Handle {
	t.Helper()
	logger := &recordingLogger{}
	l := NewLauncher()
	l.SetLogger(logger)

	h, err := l.Launch(shell(`trap '' TERM; echo trap-installed; while :; do sleep 1; done`), StrategyCaptured)
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	logger.waitForRecord(t, "trap-installed")
	return h
}

func TestTerminate_Clean(t *testing.T) {
	h, err := Launch(Command{Binary: "sleep", Args: []string{"30"}}, StrategyDirect)
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}

	start := time.Now()
	got := h.Terminate(TerminateOptions{Timeout: 5 * time.Second})
	if got != OutcomeClean {
		t.Errorf("Terminate() = %v, want clean", got)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Terminate() took %v, want prompt exit", elapsed)
	}
}

func TestTerminate_ProcessGroup(t *testing.T) {
	h, err := Launch(shell("sleep 30 & sleep 30 & wait"), StrategyCaptured)
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if got := Terminate(h, DefaultTerminateOptions()); got != OutcomeClean {
		t.Errorf("Terminate() = %v, want clean", got)
	}
}

func TestTerminate_AlreadyExited(t *testing.T) {
	h, err := Launch(shell("exit 0"), StrategyDirect)
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	waitDone(t, h)

	if got := h.Terminate(DefaultTerminateOptions()); got != OutcomeAlreadyExited {
		t.Errorf("Terminate() = %v, want already_exited", got)
	}
}

func TestTerminate_NilHandle(t *testing.T) {
	if got := Terminate(nil, DefaultTerminateOptions()); got != OutcomeAlreadyExited {
		t.Errorf("Terminate(nil) = %v, want already_exited", got)
	}
}

func TestTerminate_TimedOutWithoutEscalation(t *testing.T) {
	h := launchStubborn(t)
	defer h.Terminate(TerminateOptions{Timeout: time.Millisecond, KillAfterTimeout: true, KillTimeout: 5 * time.Second})

	timeout := 200 * time.Millisecond
	start := time.Now()
	got := h.Terminate(TerminateOptions{Timeout: timeout})
	elapsed := time.Since(start)

	if got != OutcomeTimedOut {
		t.Errorf("Terminate() = %v, want timed_out", got)
	}
	if elapsed < timeout || elapsed > timeout+time.Second {
		t.Errorf("Terminate() took %v, want about %v", elapsed, timeout)
	}
	if h.Exited() {
		t.Error("process exited despite ignoring SIGTERM")
	}
}

func TestTerminate_KillAfterTimeout(t *testing.T) {
	h := launchStubborn(t)

	got := h.Terminate(TerminateOptions{
		Timeout:          200 * time.Millisecond,
		KillAfterTimeout: true,
		KillTimeout:      5 * time.Second,
	})
	if got != OutcomeKilled {
		t.Errorf("Terminate() = %v, want killed", got)
	}
	if !h.Exited() {
		t.Error("Exited() = false after SIGKILL")
	}
}

func TestTerminateOptions_Budget(t *testing.T) {
	opts := TerminateOptions{Timeout: 5 * time.Second, KillTimeout: 2 * time.Second}
	if got := opts.Budget(); got != 5*time.Second {
		t.Errorf("Budget() = %v, want 5s without escalation", got)
	}
	opts.KillAfterTimeout = true
	if got := opts.Budget(); got != 7*time.Second {
		t.Errorf("Budget() = %v, want 7s with escalation", got)
	}
}

func TestOutcome_String(t *testing.T) {
	tests := []struct {
		o    Outcome
		want string
	}{
		{OutcomeClean, "clean"},
		{OutcomeTimedOut, "timed_out"},
		{OutcomeAlreadyExited, "already_exited"},
		{OutcomeKilled, "killed"},
	}
	for _, tt := range tests {
		if got := tt.o.String(); got != tt.want {
			t.Errorf("Outcome(%d).String() = %q, want %q", tt.o, got, tt.want)
		}
	}
}
