package device

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Device represents a managed device record.
// This matches the devices table in migrations/20260301_090000_devices.up.sql.
type Device struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Brand        string    `json:"brand"`
	State        State     `json:"state"`
	CreationTime time.Time `json:"creation_time"`
}

// InUse reports whether the device is currently marked IN_USE.
// Name, brand and deletion are locked while this is true.
func (d *Device) InUse() bool {
	return d.State == StateInUse
}

// State is the lifecycle state of a device.
//
// The set is closed: any state may be assigned from any other state,
// but only the values below are valid.
type State string

// Device states.
const (
	StateAvailable State = "AVAILABLE"
	StateInUse     State = "IN_USE"
	StateInactive  State = "INACTIVE"
)

// AllStates returns every valid device state in declaration order.
func AllStates() []State {
	return []State{
		StateAvailable,
		StateInUse,
		StateInactive,
	}
}

// ParseState converts a raw string into a State.
// Matching is exact and case-sensitive.
func ParseState(s string) (State, error) {
	for _, st := range AllStates() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", &Error{
		Message: "Device state value is incorrect use: " + StatesDescription(),
		Err:     ErrInvalidState,
	}
}

// IsValid reports whether s is one of the known states.
func (s State) IsValid() bool {
	_, err := ParseState(string(s))
	return err == nil
}

// String implements fmt.Stringer.
func (s State) String() string {
	return string(s)
}

// StatesDescription renders the state set for client-facing messages,
// e.g. "[ AVAILABLE IN_USE INACTIVE ]".
func StatesDescription() string {
	var b strings.Builder
	b.WriteString("[ ")
	for _, st := range AllStates() {
		b.WriteString(string(st))
		b.WriteString(" ")
	}
	b.WriteString("]")
	return b.String()
}

// ListFilter narrows a device listing.
// When both fields are set, Brand wins and State is ignored.
type ListFilter struct {
	Brand *string
	State *State
}

// PageRequest selects a zero-based page of results.
type PageRequest struct {
	Number int
	Size   int
}

// Offset returns the number of rows to skip for this page. It saturates
// at math.MaxInt so a page number far past the end still yields no rows.
func (p PageRequest) Offset() int {
	if p.Number <= 0 || p.Size <= 0 {
		return 0
	}
	if p.Number > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return p.Number * p.Size
}

// Page is one page of a device listing.
type Page struct {
	Items      []Device
	Number     int
	Size       int
	TotalItems int64
}

// TotalPages returns the number of pages needed to hold TotalItems.
func (p *Page) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return int((p.TotalItems + int64(p.Size) - 1) / int64(p.Size))
}

// StateChange describes a single state transition to persist in the history.
// From is nil for the initial state of a newly created device.
type StateChange struct {
	DeviceID  uuid.UUID
	From      *State
	To        State
	ChangedAt time.Time
}
