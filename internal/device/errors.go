package device

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceNotModifiable is returned when a mutation is refused because
	// the device is IN_USE or the change touches an immutable field.
	ErrDeviceNotModifiable = errors.New("device: not modifiable")

	// ErrInvalidDevice is returned when request validation fails.
	// The concrete error is a ValidationErrors map.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidState is returned when a state value is not recognised.
	ErrInvalidState = errors.New("device: invalid state")

	// ErrInvalidID is returned when an identifier is not a valid UUID.
	ErrInvalidID = errors.New("device: invalid id")

	// ErrCreationTimeRequired is returned when a replace request would create
	// a device but carries no creation time.
	ErrCreationTimeRequired = errors.New("device: creation time required")
)

// Error codes carried in client-facing messages.
const (
	CodeDeviceNotFound      = "E00001"
	CodeDeviceNotModifiable = "E00101"
)

// Error is a domain error with a client-facing message.
// It unwraps to one of the sentinel errors above.
type Error struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Unwrap returns the sentinel error for errors.Is.
func (e *Error) Unwrap() error {
	return e.Err
}

func notFoundError(id uuid.UUID) error {
	return &Error{
		Code:    CodeDeviceNotFound,
		Message: fmt.Sprintf("Device with provided id %s wasn't found", id),
		Err:     ErrDeviceNotFound,
	}
}

func inUseUpdateError(id uuid.UUID) error {
	return &Error{
		Code:    CodeDeviceNotModifiable,
		Message: fmt.Sprintf("name or brand fields cannot be updated due to IN_USE state of device with id %s", id),
		Err:     ErrDeviceNotModifiable,
	}
}

func inUseDeleteError(id uuid.UUID) error {
	return &Error{
		Code:    CodeDeviceNotModifiable,
		Message: fmt.Sprintf("device cannot be deleted due to IN_USE state, device id %s", id),
		Err:     ErrDeviceNotModifiable,
	}
}

func creationTimeUpdateError(id uuid.UUID) error {
	return &Error{
		Code:    CodeDeviceNotModifiable,
		Message: fmt.Sprintf("device creation date update error, device id %s", id),
		Err:     ErrDeviceNotModifiable,
	}
}

func creationTimeMissingError() error {
	return &Error{
		Message: "A required field 'creation_time' is missing",
		Err:     ErrCreationTimeRequired,
	}
}

// ParseID parses a device identifier.
// It returns ErrInvalidID (with the message "Invalid UUID format") on failure.
func ParseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &Error{
			Message: "Invalid UUID format",
			Err:     ErrInvalidID,
		}
	}
	return id, nil
}
