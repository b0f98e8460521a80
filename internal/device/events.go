package device

import (
	"context"
	"time"
)

// EventType identifies a device lifecycle event.
type EventType string

// Lifecycle event types.
const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event describes a committed change to a device.
type Event struct {
	Type   EventType `json:"type"`
	Device Device    `json:"device"`
	// PreviousState is set when the change moved the device to a new state.
	PreviousState *State    `json:"previous_state,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// StateChanged reports whether the event carries a state transition.
func (e Event) StateChanged() bool {
	return e.PreviousState != nil && *e.PreviousState != e.Device.State
}

// EventPublisher delivers lifecycle events to interested parties.
// Events are published only after the change has been committed.
type EventPublisher interface {
	PublishDeviceEvent(ctx context.Context, event Event) error
}

// StateRecorder receives state transitions for time-series storage.
// Implementations must not block.
type StateRecorder interface {
	RecordStateChange(deviceID string, from, to string, at time.Time)
}
