package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// maxLineSize caps a single relayed output line. Longer lines are dropped
	// and the rest of the stream is discarded, never left unread.
	maxLineSize = 1 << 20

	// outputDrainTimeout bounds how long relays may run after the child exits
	// while descendants still hold the pipes open.
	outputDrainTimeout = 2 * time.Second
)

// Command describes the server executable.
type Command struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the executable name or path. Bare names are resolved via PATH.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format)
	// appended to the inherited environment.
	Env []string

	// WorkDir is the working directory for the process.
	// If empty, inherits from parent process.
	WorkDir string
}

// Launcher spawns commands.
type Launcher struct {
	logger Logger
}

// NewLauncher creates a launcher with a no-op logger.
func NewLauncher() *Launcher {
	return &Launcher{logger: noopLogger{}}
}

// SetLogger sets the logger used for launch events and relayed output.
func (l *Launcher) SetLogger(logger Logger) {
	l.logger = logger
}

// Launch starts c with the given strategy and returns as soon as the child
// exists. It does not wait for the server to be ready.
//
// Any spawn failure (binary missing, not executable, bad working directory)
// is returned as a *LaunchError.
func (l *Launcher) Launch(c Command, s Strategy) (*Handle, error) {
	if c.Binary == "" {
		return nil, &LaunchError{Strategy: s, Err: ErrEmptyBinary}
	}
	name := c.Name
	if name == "" {
		name = c.Binary
	}

	cmd := exec.Command(c.Binary, c.Args...) //nolint:gosec // Binary comes from validated configuration

	// Own process group so termination reaches forked workers too
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if c.WorkDir != "" {
		cmd.Dir = c.WorkDir
	}

	h := &Handle{
		name:     name,
		strategy: s,
		logger:   l.logger,
		done:     make(chan struct{}),
	}

	var readers []*os.File
	switch s {
	case StrategyDirect:
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	case StrategyCaptured:
		var writers []*os.File
		for range 2 {
			r, w, err := os.Pipe()
			if err != nil {
				closeAll(readers)
				closeAll(writers)
				return nil, &LaunchError{Strategy: s, Binary: c.Binary, Err: fmt.Errorf("creating output pipe: %w", err)}
			}
			readers = append(readers, r)
			writers = append(writers, w)
		}
		cmd.Stdout = writers[0]
		cmd.Stderr = writers[1]
		defer closeAll(writers) // Parent copies; the child keeps its own
	default:
		return nil, &LaunchError{Strategy: s, Binary: c.Binary, Err: ErrUnknownStrategy}
	}

	l.logger.Info("starting server process",
		"name", name,
		"binary", c.Binary,
		"args", c.Args,
		"strategy", s.String(),
	)

	if err := cmd.Start(); err != nil {
		closeAll(readers)
		l.logger.Error("failed to start server process",
			"name", name,
			"strategy", s.String(),
			"error", err,
		)
		return nil, &LaunchError{Strategy: s, Binary: c.Binary, Err: err}
	}

	h.cmd = cmd
	h.started = time.Now()

	if len(readers) > 0 {
		h.relays = new(errgroup.Group)
		h.readers = readers
		h.relays.Go(func() error { return h.relay("stdout", readers[0]) })
		h.relays.Go(func() error { return h.relay("stderr", readers[1]) })
	}

	go h.wait()

	l.logger.Info("server process started",
		"name", name,
		"pid", cmd.Process.Pid,
		"strategy", s.String(),
	)

	return h, nil
}

// Launch starts c with a default Launcher.
func Launch(c Command, s Strategy) (*Handle, error) {
	return NewLauncher().Launch(c, s)
}

// Handle is a running (or exited) child process.
type Handle struct {
	name     string
	strategy Strategy
	logger   Logger
	cmd      *exec.Cmd
	started  time.Time

	relays  *errgroup.Group
	readers []*os.File

	done chan struct{}

	mu      sync.RWMutex
	exitErr error
	exited  time.Time
}

// wait reaps the child, then lets relays drain for a bounded time and
// releases the parent's read ends.
func (h *Handle) wait() {
	err := h.cmd.Wait()

	h.mu.Lock()
	h.exitErr = err
	h.exited = time.Now()
	h.mu.Unlock()
	close(h.done)

	h.logger.Info("server process exited",
		"name", h.name,
		"pid", h.cmd.Process.Pid,
		"exit_code", h.cmd.ProcessState.ExitCode(),
	)

	if h.relays == nil {
		return
	}
	defer closeAll(h.readers)

	drained := make(chan error, 1)
	go func() { drained <- h.relays.Wait() }()
	select {
	case err := <-drained:
		if err != nil {
			h.logger.Debug("output relay ended with error", "name", h.name, "error", err)
		}
	case <-time.After(outputDrainTimeout):
		// Descendants still hold the pipes; stop reading so relays return
		closeAll(h.readers)
		<-drained
	}
}

// relay logs each line read from r until EOF.
func (h *Handle) relay(stream string, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)
	for sc.Scan() {
		h.logger.Info("server output",
			"name", h.name,
			"stream", stream,
			"line", sc.Text(),
		)
	}
	err := sc.Err()
	if err == nil || errors.Is(err, os.ErrClosed) {
		return nil
	}
	// Keep the pipe flowing so the child never blocks on a full buffer
	io.Copy(io.Discard, r) //nolint:errcheck // Best-effort discard
	return fmt.Errorf("relaying %s: %w", stream, err)
}

// PID returns the child's process id.
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

// Name returns the command name used in logs.
func (h *Handle) Name() string {
	return h.name
}

// Strategy returns the strategy the child was launched with.
func (h *Handle) Strategy() Strategy {
	return h.strategy
}

// StartedAt returns when the child was spawned.
func (h *Handle) StartedAt() time.Time {
	return h.started
}

// Done is closed once the child has exited and been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exited reports whether the child has exited.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// ExitErr returns the error from waiting on the child, or nil if it exited
// with status 0 or is still running.
func (h *Handle) ExitErr() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.exitErr
}

// ExitCode returns the exit code, or -1 while running or if killed by a signal.
func (h *Handle) ExitCode() int {
	if !h.Exited() {
		return -1
	}
	return h.cmd.ProcessState.ExitCode()
}

// Uptime returns how long the child ran or has been running.
func (h *Handle) Uptime() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.exited.IsZero() {
		return h.exited.Sub(h.started)
	}
	return time.Since(h.started)
}

// Stats is a snapshot of a child process.
type Stats struct {
	Name     string        `json:"name"`
	Strategy string        `json:"strategy"`
	PID      int           `json:"pid"`
	Uptime   time.Duration `json:"uptime"`
	Exited   bool          `json:"exited"`
	ExitCode int           `json:"exit_code,omitempty"`
}

// Stats returns current statistics for the child.
func (h *Handle) Stats() Stats {
	s := Stats{
		Name:     h.name,
		Strategy: h.strategy.String(),
		PID:      h.PID(),
		Uptime:   h.Uptime(),
		Exited:   h.Exited(),
	}
	if s.Exited {
		s.ExitCode = h.ExitCode()
	}
	return s
}

func closeAll(files []*os.File) {
	for _, f := range files {
		f.Close() //nolint:errcheck // Closing pipe ends
	}
}
