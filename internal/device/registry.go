package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Default paging limits.
const (
	DefaultPageSize    = 100
	DefaultMaxPageSize = 1000
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry orchestrates device operations over a Repository.
//
// Every mutation runs as one unit of work: the device is read through the
// locked path, the IN_USE rules are applied, and the change plus its state
// history entry commit together. Nothing is cached between calls.
//
// Side effects (event publishing, state metrics) run after commit and never
// fail the operation.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	history StateHistoryRepository
	factory *Factory
	clock   Clock
	logger  Logger

	events  EventPublisher
	metrics StateRecorder

	defaultPageSize int
	maxPageSize     int
}

// NewRegistry creates a new device registry.
// A nil clock falls back to SystemClock.
func NewRegistry(repo Repository, history StateHistoryRepository, clock Clock) *Registry {
	if clock == nil {
		clock = SystemClock
	}
	return &Registry{
		repo:            repo,
		history:         history,
		factory:         NewFactory(clock),
		clock:           clock,
		logger:          noopLogger{},
		defaultPageSize: DefaultPageSize,
		maxPageSize:     DefaultMaxPageSize,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetEventPublisher sets the publisher notified after each committed change.
func (r *Registry) SetEventPublisher(publisher EventPublisher) {
	r.events = publisher
}

// SetStateRecorder sets the recorder notified of committed state transitions.
func (r *Registry) SetStateRecorder(recorder StateRecorder) {
	r.metrics = recorder
}

// SetPageLimits overrides the default and maximum page sizes.
// Non-positive values keep the current setting.
func (r *Registry) SetPageLimits(defaultSize, maxSize int) {
	if maxSize > 0 {
		r.maxPageSize = maxSize
	}
	if defaultSize > 0 {
		r.defaultPageSize = defaultSize
	}
	if r.defaultPageSize > r.maxPageSize {
		r.defaultPageSize = r.maxPageSize
	}
}

// CreateDevice creates a new AVAILABLE device with a generated ID.
func (r *Registry) CreateDevice(ctx context.Context, req CreateRequest) (*Device, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	dev := r.factory.New(req.Name, req.Brand)

	err := r.repo.InTx(ctx, func(tx Tx) error {
		if err := tx.Save(ctx, &dev); err != nil {
			return err
		}
		return tx.RecordStateChange(ctx, StateChange{
			DeviceID:  dev.ID,
			To:        dev.State,
			ChangedAt: dev.CreationTime,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("creating device: %w", err)
	}

	r.logger.Info("device created", "id", dev.ID, "name", dev.Name, "brand", dev.Brand)
	r.afterCommit(ctx, EventCreated, dev, nil)
	return &dev, nil
}

// GetDevice retrieves a device by ID.
func (r *Registry) GetDevice(ctx context.Context, id uuid.UUID) (*Device, error) {
	dev, err := r.repo.FindByID(ctx, id)
	if err != nil {
		return nil, r.lookupError(id, err)
	}
	return dev, nil
}

// ListDevices returns one page of devices.
// A brand filter takes precedence over a state filter. Unknown filter
// values produce an empty page.
func (r *Registry) ListDevices(ctx context.Context, filter ListFilter, page PageRequest) (*Page, error) {
	page = r.normalisePage(page)

	var (
		result *Page
		err    error
	)
	switch {
	case filter.Brand != nil:
		result, err = r.repo.FindByBrand(ctx, *filter.Brand, page)
	case filter.State != nil:
		result, err = r.repo.FindByState(ctx, *filter.State, page)
	default:
		result, err = r.repo.FindAll(ctx, page)
	}
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	return result, nil
}

// UpdateDevice applies a partial update.
//
// Name and brand may not be supplied while the device is IN_USE; a
// state-only patch is always accepted.
func (r *Registry) UpdateDevice(ctx context.Context, id uuid.UUID, req PatchRequest) (*Device, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var newState *State
	if req.State != nil {
		st, err := ParseState(*req.State)
		if err != nil {
			return nil, err
		}
		newState = &st
	}

	var (
		updated  Device
		previous State
	)
	err := r.repo.InTx(ctx, func(tx Tx) error {
		current, err := tx.FindByIDForUpdate(ctx, id)
		if err != nil {
			return r.lookupError(id, err)
		}

		if req.ChangesNameOrBrand() && current.InUse() {
			return inUseUpdateError(id)
		}

		previous = current.State
		if req.Name != nil {
			current.Name = *req.Name
		}
		if req.Brand != nil {
			current.Brand = *req.Brand
		}
		if newState != nil {
			current.State = *newState
		}

		if err := r.save(ctx, tx, current, previous); err != nil {
			return err
		}
		updated = *current
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("device updated", "id", id, "state", updated.State)
	r.afterCommit(ctx, EventUpdated, updated, &previous)
	return &updated, nil
}

// ReplaceDevice creates or fully replaces the device with the given ID.
//
// For an existing device the request must not carry a creation time, and
// name or brand may only differ from the stored values while the device is
// not IN_USE. For a missing device the creation time is required and the
// device is created with the caller's ID.
//
// The returned bool is true when the device was created.
func (r *Registry) ReplaceDevice(ctx context.Context, id uuid.UUID, req ReplaceRequest) (bool, *Device, error) {
	if err := req.Validate(); err != nil {
		return false, nil, err
	}

	// Validate guarantees State is set.
	state, err := ParseState(*req.State)
	if err != nil {
		return false, nil, err
	}

	var (
		created  bool
		result   Device
		previous *State
	)
	err = r.repo.InTx(ctx, func(tx Tx) error {
		current, err := tx.FindByIDForUpdate(ctx, id)
		switch {
		case errors.Is(err, ErrDeviceNotFound):
			if req.CreationTime == nil {
				return creationTimeMissingError()
			}
			dev := r.factory.Restore(id, req.Name, req.Brand, state, *req.CreationTime)
			if err := tx.Save(ctx, &dev); err != nil {
				return err
			}
			if err := tx.RecordStateChange(ctx, StateChange{
				DeviceID:  dev.ID,
				To:        dev.State,
				ChangedAt: r.clock().UTC(),
			}); err != nil {
				return err
			}
			created = true
			result = dev
			return nil

		case err != nil:
			return fmt.Errorf("loading device %s: %w", id, err)
		}

		if req.CreationTime != nil {
			return creationTimeUpdateError(id)
		}

		changesNameOrBrand := current.Name != req.Name || current.Brand != req.Brand
		if changesNameOrBrand && current.InUse() {
			return inUseUpdateError(id)
		}

		prev := current.State
		previous = &prev
		current.Name = req.Name
		current.Brand = req.Brand
		current.State = state

		if err := r.save(ctx, tx, current, prev); err != nil {
			return err
		}
		result = *current
		return nil
	})
	if err != nil {
		return false, nil, err
	}

	if created {
		r.logger.Info("device created by replace", "id", id, "name", result.Name)
		r.afterCommit(ctx, EventCreated, result, nil)
	} else {
		r.logger.Info("device replaced", "id", id, "state", result.State)
		r.afterCommit(ctx, EventUpdated, result, previous)
	}
	return created, &result, nil
}

// DeleteDevice permanently removes a device that is not IN_USE.
func (r *Registry) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	var deleted Device
	err := r.repo.InTx(ctx, func(tx Tx) error {
		current, err := tx.FindByIDForUpdate(ctx, id)
		if err != nil {
			return r.lookupError(id, err)
		}
		if current.InUse() {
			return inUseDeleteError(id)
		}
		if err := tx.DeleteByID(ctx, id); err != nil {
			return r.lookupError(id, err)
		}
		deleted = *current
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("device deleted", "id", id)
	r.afterCommit(ctx, EventDeleted, deleted, nil)
	return nil
}

// GetStateHistory returns the most recent state transitions of a device.
func (r *Registry) GetStateHistory(ctx context.Context, id uuid.UUID, limit int) ([]StateHistoryEntry, error) {
	if _, err := r.GetDevice(ctx, id); err != nil {
		return nil, err
	}

	entries, err := r.history.GetHistory(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("loading state history: %w", err)
	}
	return entries, nil
}

// save persists the device and records a history entry if its state moved.
func (r *Registry) save(ctx context.Context, tx Tx, dev *Device, previous State) error {
	if err := tx.Save(ctx, dev); err != nil {
		return err
	}
	if dev.State == previous {
		return nil
	}
	return tx.RecordStateChange(ctx, StateChange{
		DeviceID:  dev.ID,
		From:      &previous,
		To:        dev.State,
		ChangedAt: r.clock().UTC(),
	})
}

// lookupError converts a repository miss into the coded not-found error.
func (r *Registry) lookupError(id uuid.UUID, err error) error {
	if errors.Is(err, ErrDeviceNotFound) {
		return notFoundError(id)
	}
	return fmt.Errorf("loading device %s: %w", id, err)
}

// normalisePage applies the default size and clamps out-of-range values.
func (r *Registry) normalisePage(page PageRequest) PageRequest {
	if page.Number < 0 {
		page.Number = 0
	}
	if page.Size <= 0 {
		page.Size = r.defaultPageSize
	}
	if page.Size > r.maxPageSize {
		page.Size = r.maxPageSize
	}
	return page
}

// afterCommit fans a committed change out to the event publisher and the
// state recorder. Failures are logged only.
func (r *Registry) afterCommit(ctx context.Context, typ EventType, dev Device, previous *State) {
	event := Event{
		Type:          typ,
		Device:        dev,
		PreviousState: previous,
		Timestamp:     r.clock().UTC(),
	}

	if r.metrics != nil {
		switch {
		case typ == EventCreated:
			r.metrics.RecordStateChange(dev.ID.String(), "", string(dev.State), event.Timestamp)
		case event.StateChanged():
			r.metrics.RecordStateChange(dev.ID.String(), string(*previous), string(dev.State), event.Timestamp)
		}
	}

	if r.events != nil {
		if err := r.events.PublishDeviceEvent(ctx, event); err != nil {
			r.logger.Warn("publishing device event failed",
				"id", dev.ID,
				"event", typ,
				"error", err,
			)
		}
	}
}
