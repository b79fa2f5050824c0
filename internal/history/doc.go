// Package history persists launch attempts and health transitions to SQLite
// so the status API can show what the supervisor did and when.
//
// The repository plugs into the supervisor as an AttemptRecorder and into
// the notify fan-out as a Sink.
package history
