// Package health answers "is the supervised server reachable?".
//
// It contains three pieces, leaf first:
//
//   - Probe / Prober: a single TCP connect bounded by a timeout. Every failure
//     (refused, timed out, unroutable) is reported as false; no error escapes.
//   - ReadinessWaiter: polls an HTTP URL until it answers 200 or a deadline
//     passes. Used once, after a launch, to confirm the server is serving.
//   - Monitor: a cancellable background loop that probes at a fixed cadence and
//     calls a single observer only when the result differs from the last one.
//
// Example:
//
//	ep := health.Endpoint{Host: "127.0.0.1", Port: 8080, BaseURL: "http://127.0.0.1:8080/"}
//	mon := health.NewMonitor(health.NewProber(ep, time.Second).Probe, 2*time.Second)
//	mon.SetObserver(func(up bool) { log.Printf("server up=%v", up) })
//	mon.Start(ctx)
//	defer mon.Stop()
package health
