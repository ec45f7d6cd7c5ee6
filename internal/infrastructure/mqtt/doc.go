// Package mqtt provides the MQTT telemetry sink used by the notifier (§4.8).
//
// This package manages:
//   - A publish-only connection to the configured broker with auto-reconnect
//   - Telemetry publishing under knxhost/telemetry/{fb}/{dp}
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The telemetry sink is one of several notifier handlers: every datapoint
// update the notifier routes to it is republished as a small JSON payload,
// letting external dashboards and logging systems observe bus activity
// without joining the bus themselves.
//
//	Notifier → MQTT telemetry sink → broker → external subscribers
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.Telemetry)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.PublishTelemetry("living-room-light", "switch", []byte(`{"value":true}`))
package mqtt
