// Package supervisor owns the lifecycle of the external web server.
//
// A Supervisor is an explicit value created by the entry point and handed to
// whatever needs it (status API, CLI). There is no package-level instance.
//
// Start tries each configured launch strategy in order. An attempt is a
// launch, a settle delay and a readiness wait; a failed attempt tears its
// child down before the next strategy is tried. Every attempt is logged and
// passed to the registered AttemptRecorders. On success a health monitor
// begins probing the server's port and reports transitions to the observer.
//
// Stop cancels the monitor and terminates the child. It is bounded by
// ShutdownBudget.
//
//	sup := supervisor.New(cfg, supervisor.WithLogger(logger))
//	if !sup.Start(ctx) {
//	    os.Exit(1)
//	}
//	defer sup.Stop()
//	sup.SetObserver(func(up bool) { ... })
package supervisor
