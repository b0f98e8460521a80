package device

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StateHistoryEntry represents a single device state transition.
//
// Entries are written in the same transaction as the device change, so the
// history never records a transition that was rolled back.
type StateHistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// DeviceID is the unique identifier of the device.
	DeviceID uuid.UUID `json:"device_id"`

	// PreviousState is nil for the entry written when the device was created.
	PreviousState *State `json:"previous_state,omitempty"`

	// State is the state the device moved into.
	State State `json:"state"`

	// ChangedAt is the time of the transition (UTC).
	ChangedAt time.Time `json:"changed_at"`
}

// StateHistoryRepository reads and prunes device state history.
// Writes go through Tx.RecordStateChange.
//
// Implementations must be thread-safe and use UTC timestamps.
type StateHistoryRepository interface {
	// GetHistory returns recent transitions for the device, newest first.
	// Implementations may clamp limit.
	GetHistory(ctx context.Context, deviceID uuid.UUID, limit int) ([]StateHistoryEntry, error)

	// PruneHistory deletes entries older than the given age and returns
	// the number of rows removed.
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}
