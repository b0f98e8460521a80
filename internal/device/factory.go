package device

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies the current time.
type Clock func() time.Time

// SystemClock returns the wall-clock time in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// Factory builds new Device values. It performs no validation.
type Factory struct {
	clock Clock
	newID func() uuid.UUID
}

// NewFactory creates a Factory stamping creation times from clock.
// A nil clock falls back to SystemClock.
func NewFactory(clock Clock) *Factory {
	if clock == nil {
		clock = SystemClock
	}
	return &Factory{
		clock: clock,
		newID: uuid.New,
	}
}

// New builds a device with a random ID, AVAILABLE state and the current time.
func (f *Factory) New(name, brand string) Device {
	return Device{
		ID:           f.newID(),
		Name:         name,
		Brand:        brand,
		State:        StateAvailable,
		CreationTime: f.clock().UTC(),
	}
}

// Restore builds a device from caller-supplied identity and timestamp.
func (f *Factory) Restore(id uuid.UUID, name, brand string, state State, creationTime time.Time) Device {
	return Device{
		ID:           id,
		Name:         name,
		Brand:        brand,
		State:        state,
		CreationTime: creationTime.UTC(),
	}
}
