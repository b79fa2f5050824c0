// Package mqtt publishes the supervised server's health to an MQTT broker.
//
// It manages:
//   - Connection with auto-reconnect and a Last Will on webui/system/status
//   - A retained webui/server/health message updated on every transition
//   - A webui/server/command topic accepting {"command":"check"} requests
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	pub := mqtt.NewHealthPublisher(client, byte(cfg.MQTT.QoS))
//	fanout.Add("mqtt", pub)
//	err = pub.ServeChecks(sup.Check)
package mqtt
