// Package events carries device lifecycle events between the registry and
// the message bus.
//
// Outbound, MQTTPublisher turns committed changes into messages on
// graylogic/core/device/{id}/{event} and keeps a retained copy of each
// device's current state on graylogic/core/device/{id}/state. Fanout hands
// one event to several publishers (MQTT, WebSocket).
//
// Inbound, CommandListener subscribes to graylogic/command/device/+/state
// and applies state commands through the registry, so bus-originated
// changes obey the same IN_USE rules and locking as REST calls.
//
//	pub := events.NewMQTTPublisher(mqttClient, cfg.MQTT.QoS)
//	registry.SetEventPublisher(events.Fanout{pub, hub})
//
//	listener := events.NewCommandListener(mqttClient, registry, cfg.MQTT.QoS)
//	listener.SetLogger(logger)
//	if err := listener.Start(); err != nil { ... }
package events
