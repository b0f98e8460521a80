package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-devices/internal/device"
	"github.com/nerrad567/gray-logic-devices/internal/infrastructure/mqtt"
)

// MQTTClient is the subset of the MQTT client used to publish events.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Message is the JSON payload published for a lifecycle event.
type Message struct {
	Event         device.EventType `json:"event"`
	DeviceID      string           `json:"device_id"`
	Device        *device.Device   `json:"device,omitempty"`
	PreviousState *device.State    `json:"previous_state,omitempty"`
	Timestamp     string           `json:"timestamp"`
}

// stateMessage is the retained payload on a device's state topic.
type stateMessage struct {
	DeviceID  string       `json:"device_id"`
	State     device.State `json:"state"`
	Timestamp string       `json:"timestamp"`
}

// NewMessage builds the payload for an event.
// Deleted events carry no device body.
func NewMessage(event device.Event) Message {
	msg := Message{
		Event:         event.Type,
		DeviceID:      event.Device.ID.String(),
		PreviousState: event.PreviousState,
		Timestamp:     event.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if event.Type != device.EventDeleted {
		dev := event.Device
		msg.Device = &dev
	}
	return msg
}

// MQTTPublisher publishes device lifecycle events to the MQTT bus.
//
// Each event goes to graylogic/core/device/{id}/{event}. When the event
// creates a device or moves its state, the new state is also published
// retained on graylogic/core/device/{id}/state; deletion clears that
// retained message.
type MQTTPublisher struct {
	client MQTTClient
	qos    byte
	topics mqtt.Topics
}

// NewMQTTPublisher creates a publisher sending with the given QoS.
func NewMQTTPublisher(client MQTTClient, qos byte) *MQTTPublisher {
	return &MQTTPublisher{client: client, qos: qos}
}

// PublishDeviceEvent implements device.EventPublisher.
func (p *MQTTPublisher) PublishDeviceEvent(_ context.Context, event device.Event) error {
	id := event.Device.ID.String()

	payload, err := json.Marshal(NewMessage(event))
	if err != nil {
		return fmt.Errorf("marshalling %s event: %w", event.Type, err)
	}
	if err := p.client.Publish(p.topics.CoreDeviceEvent(id, string(event.Type)), payload, p.qos, false); err != nil {
		return fmt.Errorf("publishing %s event for %s: %w", event.Type, id, err)
	}

	switch {
	case event.Type == device.EventDeleted:
		// An empty retained payload removes the retained message.
		if err := p.client.Publish(p.topics.CoreDeviceState(id), nil, p.qos, true); err != nil {
			return fmt.Errorf("clearing retained state for %s: %w", id, err)
		}
	case event.Type == device.EventCreated || event.StateChanged():
		state, err := json.Marshal(stateMessage{
			DeviceID:  id,
			State:     event.Device.State,
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return fmt.Errorf("marshalling state for %s: %w", id, err)
		}
		if err := p.client.Publish(p.topics.CoreDeviceState(id), state, p.qos, true); err != nil {
			return fmt.Errorf("publishing retained state for %s: %w", id, err)
		}
	}

	return nil
}

// Fanout delivers each event to every publisher in order.
// All publishers are attempted; their errors are joined.
type Fanout []device.EventPublisher

// PublishDeviceEvent implements device.EventPublisher.
func (f Fanout) PublishDeviceEvent(ctx context.Context, event device.Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.PublishDeviceEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
