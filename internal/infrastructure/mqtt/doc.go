// Package mqtt provides MQTT client connectivity for the device service.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing device events with QoS guarantees
//   - Subscriptions for inbound state commands, restored on reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
//	graylogic/core/device/{id}/{created|updated|deleted}   device events
//	graylogic/core/device/{id}/state                       retained current state
//	graylogic/command/device/{id}/state                    inbound state commands
//	graylogic/system/status                                online/offline (retained)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.CoreDeviceEvent(id, "updated")
//	client.Publish(topic, payload, 1, false)
//
// TLS should be enabled (cfg.Broker.TLS) whenever the broker is not local.
package mqtt
