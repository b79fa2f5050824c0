package database

import "errors"

// Domain-specific errors for the database package.
var (
	// ErrNoPath is returned by Open when no database path is configured.
	ErrNoPath = errors.New("database: path is empty")

	// ErrMigrationNotFound means an applied version has no file to roll back with.
	ErrMigrationNotFound = errors.New("database: migration not found")
)
