// Package telemetry exports supervisor metrics to Prometheus.
//
// A Collector owns a private registry (no global default registry) and
// implements the recorder hooks of the health monitor and the supervisor:
//
//	col := telemetry.NewCollector("webui_wrapper")
//	sup := supervisor.New(cfg,
//	    supervisor.WithHealthRecorder(col),
//	    supervisor.WithAttemptRecorder(col),
//	    supervisor.WithStopRecorder(col),
//	)
//	mux.Handle("/metrics", col.Handler())
package telemetry
