package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxRequestTimeout caps a single readiness request so one hung connection
// cannot consume the whole readiness budget.
const maxRequestTimeout = 10 * time.Second

// maxDrainBytes bounds how much of a response body is read before closing.
const maxDrainBytes = 64 << 10

// ReadinessWaiter polls an HTTP URL until it answers 200 OK.
type ReadinessWaiter struct {
	client *http.Client
	logger Logger
}

// NewReadinessWaiter creates a waiter. A nil client uses a plain http.Client
// with no global timeout; each request is bounded by its own context instead.
func NewReadinessWaiter(client *http.Client) *ReadinessWaiter {
	if client == nil {
		client = &http.Client{}
	}
	return &ReadinessWaiter{client: client, logger: noopLogger{}}
}

// SetLogger sets the logger for the waiter.
func (w *ReadinessWaiter) SetLogger(logger Logger) {
	w.logger = logger
}

// Wait issues GET requests to url until one returns 200 or timeout elapses,
// sleeping interval between attempts. Transport errors and non-200 statuses
// are treated alike: logged at debug and retried.
//
// The last sleep is clipped to the deadline, so Wait returns within
// timeout plus the duration of one in-flight request. It returns false
// immediately when ctx is cancelled.
func (w *ReadinessWaiter) Wait(ctx context.Context, url string, timeout, interval time.Duration) bool {
	start := time.Now()
	deadline := start.Add(timeout)

	for attempt := 1; ; attempt++ {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}

		status, err := w.poll(ctx, url, remaining)
		if err == nil && status == http.StatusOK {
			w.logger.Info("server ready",
				"url", url,
				"attempts", attempt,
				"elapsed", time.Since(start).Round(time.Millisecond),
			)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		w.logger.Debug("server not ready yet",
			"url", url,
			"attempt", attempt,
			"status", status,
			"error", err,
		)

		wait := min(interval, time.Until(deadline))
		if wait <= 0 {
			break
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}

	w.logger.Warn("server did not become ready",
		"url", url,
		"timeout", timeout,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return false
}

// poll performs a single GET and returns the status code.
func (w *ReadinessWaiter) poll(ctx context.Context, url string, remaining time.Duration) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, min(remaining, maxRequestTimeout))
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("building readiness request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes)) //nolint:errcheck // Drain for connection reuse

	return resp.StatusCode, nil
}

// WaitReady is a convenience wrapper around a default ReadinessWaiter.
func WaitReady(ctx context.Context, url string, timeout, interval time.Duration) bool {
	return NewReadinessWaiter(nil).Wait(ctx, url, timeout, interval)
}
