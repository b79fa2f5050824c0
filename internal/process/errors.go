package process

import (
	"errors"
	"fmt"
)

// Domain-specific errors for the process package.
var (
	// ErrUnknownStrategy is returned by ParseStrategy for unrecognised names.
	ErrUnknownStrategy = errors.New("process: unknown launch strategy")

	// ErrEmptyBinary is returned when a Command has no binary.
	ErrEmptyBinary = errors.New("process: binary is empty")
)

// LaunchError reports a spawn failure for one strategy.
type LaunchError struct {
	Strategy Strategy
	Binary   string
	Err      error
}

// Error implements the error interface.
func (e *LaunchError) Error() string {
	return fmt.Sprintf("process: launching %s (%s): %v", e.Binary, e.Strategy, e.Err)
}

// Unwrap returns the underlying error.
func (e *LaunchError) Unwrap() error {
	return e.Err
}
