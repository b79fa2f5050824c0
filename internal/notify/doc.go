// Package notify fans a single health observer out to several named sinks.
//
// The supervisor exposes one observer slot. Fanout occupies that slot and
// forwards each transition, as an Event, to every registered Sink in
// registration order. Sinks run on the monitor goroutine, each under its own
// timeout; a failing or panicking sink is logged and skipped.
package notify
