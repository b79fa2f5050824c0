// Package influxdb writes supervisor history to InfluxDB v2.
//
// Three measurements are written:
//   - server_health: one point per health transition (tags endpoint, state)
//   - server_launch: one point per launch attempt (tag strategy)
//   - server_termination: one point per stop (tag outcome)
//
// The Client is a notify.Sink and a supervisor attempt/stop recorder.
// Writes are batched by the official client according to batch_size and
// flush_interval; errors are delivered asynchronously via SetOnError.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
package influxdb
