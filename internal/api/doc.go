// Package api serves the wrapper's local status API to the front end.
//
// Routes (all under /api/v1 except /metrics):
//
//	GET  /health              wrapper liveness
//	GET  /server              supervisor status snapshot
//	POST /server/check        immediate probe of the server endpoint
//	GET  /server/attempts     launch attempt history
//	GET  /server/transitions  health transition history
//	GET  /system              runtime and connection statistics
//	GET  /ws                  WebSocket; subscribe to "server.health_changed"
//	GET  /metrics             Prometheus exposition
//
// The Hub is a notify.Sink, so health transitions reach WebSocket clients
// through the same fan-out as every other sink.
package api
