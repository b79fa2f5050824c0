package supervisor

import "errors"

// Domain-specific errors for the supervisor package.
var (
	// ErrAllStrategiesFailed is returned by StartResult when no strategy
	// produced a ready server.
	ErrAllStrategiesFailed = errors.New("supervisor: all launch strategies failed")

	// ErrNotReady means the child was spawned but never answered readiness polls.
	ErrNotReady = errors.New("supervisor: server did not become ready")

	// ErrExitedEarly means the child exited before it became ready.
	ErrExitedEarly = errors.New("supervisor: server exited before becoming ready")

	// ErrNoStrategies is returned by Config.Validate for an empty strategy list.
	ErrNoStrategies = errors.New("supervisor: no launch strategies configured")
)
