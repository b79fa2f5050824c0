package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/webui-wrapper/internal/notify"
	"github.com/nerrad567/webui-wrapper/internal/supervisor"
)

// timeLayout is fixed-width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Page size limits for List queries.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// recordTimeout bounds writes made from recorder hooks, which carry no context.
const recordTimeout = 5 * time.Second

// LaunchAttempt is a stored supervisor.Attempt.
type LaunchAttempt struct {
	ID         string    `json:"id"`
	Strategy   string    `json:"strategy"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	PID        int       `json:"pid,omitempty"`
	Succeeded  bool      `json:"succeeded"`
	Error      string    `json:"error,omitempty"`
	Terminated bool      `json:"terminated"`
	Outcome    string    `json:"outcome,omitempty"`
}

// Transition is a stored health state change.
type Transition struct {
	ID         string    `json:"id"`
	Endpoint   string    `json:"endpoint"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Filter controls pagination of List queries.
type Filter struct {
	Limit  int // default 50, max 200
	Offset int // pagination offset
}

func (f Filter) clamp() Filter {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// AttemptList is a page of launch attempts, most recent first.
type AttemptList struct {
	Attempts []LaunchAttempt `json:"attempts"`
	Total    int             `json:"total"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

// TransitionList is a page of transitions, most recent first.
type TransitionList struct {
	Transitions []Transition `json:"transitions"`
	Total       int          `json:"total"`
	Limit       int          `json:"limit"`
	Offset      int          `json:"offset"`
}

// Repository defines the history operations used by the status API.
type Repository interface {
	ListAttempts(ctx context.Context, filter Filter) (*AttemptList, error)
	ListTransitions(ctx context.Context, filter Filter) (*TransitionList, error)
}

// SQLiteRepository stores history in SQLite.
type SQLiteRepository struct {
	db     *sql.DB
	logger Logger
}

// NewSQLiteRepository creates a new history repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, logger: noopLogger{}}
}

// SetLogger sets the logger used when recorder hooks fail.
func (r *SQLiteRepository) SetLogger(logger Logger) {
	r.logger = logger
}

// CreateAttempt inserts a launch attempt. ID is generated if empty.
func (r *SQLiteRepository) CreateAttempt(ctx context.Context, a *LaunchAttempt) error {
	if a.ID == "" {
		a.ID = "att-" + uuid.NewString()[:8]
	}
	if a.StartedAt.IsZero() {
		a.StartedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO launch_attempts (id, strategy, started_at, duration_ms, pid, succeeded, error, terminated, outcome)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Strategy, a.StartedAt.UTC().Format(timeLayout), a.DurationMS,
		nullableInt(a.PID), boolInt(a.Succeeded), nullableString(a.Error),
		boolInt(a.Terminated), nullableString(a.Outcome),
	)
	if err != nil {
		return fmt.Errorf("inserting launch attempt: %w", err)
	}
	return nil
}

// CreateTransition inserts a health transition. ID is generated if empty.
func (r *SQLiteRepository) CreateTransition(ctx context.Context, t *Transition) error {
	if t.ID == "" {
		t.ID = "trn-" + uuid.NewString()[:8]
	}
	if t.OccurredAt.IsZero() {
		t.OccurredAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO health_transitions (id, endpoint, from_state, to_state, occurred_at)
		 VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Endpoint, t.From, t.To, t.OccurredAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting health transition: %w", err)
	}
	return nil
}

// RecordAttempt implements supervisor.AttemptRecorder. Failures are logged.
func (r *SQLiteRepository) RecordAttempt(a supervisor.Attempt) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	row := FromAttempt(a)
	if err := r.CreateAttempt(ctx, &row); err != nil {
		r.logger.Warn("failed to record launch attempt", "strategy", row.Strategy, "error", err)
	}
}

// Notify implements notify.Sink.
func (r *SQLiteRepository) Notify(ctx context.Context, ev notify.Event) error {
	return r.CreateTransition(ctx, &Transition{
		Endpoint:   ev.Endpoint,
		From:       ev.PreviousName(),
		To:         ev.StateName(),
		OccurredAt: ev.At,
	})
}

// FromAttempt converts a supervisor attempt into its stored form.
func FromAttempt(a supervisor.Attempt) LaunchAttempt {
	row := LaunchAttempt{
		Strategy:   a.Strategy.String(),
		StartedAt:  a.Started,
		DurationMS: a.Duration.Milliseconds(),
		PID:        a.PID,
		Succeeded:  a.Succeeded(),
		Terminated: a.Terminated,
	}
	if a.Err != nil {
		row.Error = a.Err.Error()
	}
	if a.Terminated {
		row.Outcome = a.Outcome.String()
	}
	return row
}

// ListAttempts returns launch attempts, most recent first.
func (r *SQLiteRepository) ListAttempts(ctx context.Context, filter Filter) (*AttemptList, error) {
	filter = filter.clamp()

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM launch_attempts").Scan(&total); err != nil {
		return nil, fmt.Errorf("counting launch attempts: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, strategy, started_at, duration_ms, pid, succeeded, error, terminated, outcome
		 FROM launch_attempts ORDER BY started_at DESC LIMIT ? OFFSET ?`,
		filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying launch attempts: %w", err)
	}
	defer rows.Close()

	attempts := []LaunchAttempt{}
	for rows.Next() {
		var a LaunchAttempt
		var startedAt string
		var pid sql.NullInt64
		var errText, outcome sql.NullString
		var succeeded, terminated int

		if err := rows.Scan(&a.ID, &a.Strategy, &startedAt, &a.DurationMS, &pid,
			&succeeded, &errText, &terminated, &outcome); err != nil {
			return nil, fmt.Errorf("scanning launch attempt: %w", err)
		}

		if a.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		a.PID = int(pid.Int64)
		a.Succeeded = succeeded == 1
		a.Terminated = terminated == 1
		a.Error = errText.String
		a.Outcome = outcome.String

		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating launch attempts: %w", err)
	}

	return &AttemptList{
		Attempts: attempts,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}, nil
}

// ListTransitions returns health transitions, most recent first.
func (r *SQLiteRepository) ListTransitions(ctx context.Context, filter Filter) (*TransitionList, error) {
	filter = filter.clamp()

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM health_transitions").Scan(&total); err != nil {
		return nil, fmt.Errorf("counting health transitions: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, endpoint, from_state, to_state, occurred_at
		 FROM health_transitions ORDER BY occurred_at DESC LIMIT ? OFFSET ?`,
		filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying health transitions: %w", err)
	}
	defer rows.Close()

	transitions := []Transition{}
	for rows.Next() {
		var t Transition
		var occurredAt string
		if err := rows.Scan(&t.ID, &t.Endpoint, &t.From, &t.To, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning health transition: %w", err)
		}
		if t.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating health transitions: %w", err)
	}

	return &TransitionList{
		Transitions: transitions,
		Total:       total,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
	}
	if err != nil {
		return time.Time{}, errors.Join(ErrBadTimestamp, fmt.Errorf("%q: %w", s, err))
	}
	return t, nil
}

// nullableString returns nil for empty strings so the column stores NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableInt returns nil for zero so the column stores NULL.
func nullableInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Compile-time interface compliance checks
var (
	_ Repository                 = (*SQLiteRepository)(nil)
	_ supervisor.AttemptRecorder = (*SQLiteRepository)(nil)
	_ notify.Sink                = (*SQLiteRepository)(nil)
)
