package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the device service.
//
// Outbound device events use graylogic/core/device/{id}/{event}; inbound
// state commands use graylogic/command/device/{id}/state.
const (
	// TopicPrefix is the root of every Gray Logic topic.
	TopicPrefix = "graylogic"

	// TopicPrefixCore is the base for topics published by core services.
	TopicPrefixCore = "graylogic/core"

	// TopicPrefixCommand is the base for commands sent to core services.
	TopicPrefixCommand = "graylogic/command"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for Gray Logic MQTT topics.
//
//	topics := mqtt.Topics{}
//	topic := topics.CoreDeviceEvent("6f1c...", "updated")
//	// Returns: "graylogic/core/device/6f1c.../updated"
type Topics struct{}

// CoreDeviceEvent returns the topic for a device lifecycle event.
//
// Example: graylogic/core/device/3b241101-e2bb-4255-8caf-4136c566a962/created
func (Topics) CoreDeviceEvent(deviceID, event string) string {
	return fmt.Sprintf("%s/device/%s/%s", TopicPrefixCore, deviceID, event)
}

// CoreDeviceState returns the retained current-state topic of a device.
//
// Example: graylogic/core/device/3b241101-e2bb-4255-8caf-4136c566a962/state
func (Topics) CoreDeviceState(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/state", TopicPrefixCore, deviceID)
}

// DeviceStateCommand returns the topic on which a device's state can be set.
//
// Example: graylogic/command/device/3b241101-e2bb-4255-8caf-4136c566a962/state
func (Topics) DeviceStateCommand(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/state", TopicPrefixCommand, deviceID)
}

// SystemStatus returns the service status topic carrying online/offline.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllCoreDeviceEvents returns a pattern matching every device event.
//
// Pattern: graylogic/core/device/+/+
func (Topics) AllCoreDeviceEvents() string {
	return fmt.Sprintf("%s/device/+/+", TopicPrefixCore)
}

// AllDeviceStateCommands returns a pattern matching every state command.
//
// Pattern: graylogic/command/device/+/state
func (Topics) AllDeviceStateCommands() string {
	return fmt.Sprintf("%s/device/+/state", TopicPrefixCommand)
}

// ParseDeviceStateCommand extracts the device ID from a state command topic.
// It returns false if topic is not of the form built by DeviceStateCommand.
func (Topics) ParseDeviceStateCommand(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, TopicPrefixCommand+"/device/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/state")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
