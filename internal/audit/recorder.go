package audit

import (
	"context"

	"github.com/nerrad567/gray-logic-devices/internal/device"
)

// queueSize is the buffer of pending entries. Entries beyond it are dropped
// to avoid back-pressure on requests.
const queueSize = 256

// EntityDevice is the entity type of device entries.
const EntityDevice = "device"

// Logger is the logging interface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder turns device events into audit entries.
//
// It implements device.EventPublisher. Entries are queued and written
// serially by Run, which suits SQLite's single writer.
type Recorder struct {
	repo   Repository
	queue  chan *AuditLog
	logger Logger
}

// NewRecorder creates a recorder writing to repo. Call Run to start writing.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{
		repo:   repo,
		queue:  make(chan *AuditLog, queueSize),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// PublishDeviceEvent implements device.EventPublisher. It never blocks.
func (r *Recorder) PublishDeviceEvent(ctx context.Context, event device.Event) error {
	entry := NewEntry(ActorFromContext(ctx), event)

	select {
	case r.queue <- entry:
	default:
		r.logger.Warn("audit queue full, dropping entry",
			"action", entry.Action,
			"entity_id", entry.EntityID,
		)
	}
	return nil
}

// Run writes queued entries until ctx is cancelled, then drains what is left.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case entry := <-r.queue:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.queue:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry *AuditLog) {
	// The request context may already be gone.
	if err := r.repo.Create(context.Background(), entry); err != nil {
		r.logger.Error("audit log write failed",
			"action", entry.Action,
			"entity_id", entry.EntityID,
			"error", err,
		)
	}
}

// NewEntry builds the audit entry for a device event.
func NewEntry(actor Actor, event device.Event) *AuditLog {
	details := map[string]any{
		"name":  event.Device.Name,
		"brand": event.Device.Brand,
		"state": string(event.Device.State),
	}
	if event.StateChanged() {
		details["previous_state"] = string(*event.PreviousState)
	}

	return &AuditLog{
		Action:     string(event.Type),
		EntityType: EntityDevice,
		EntityID:   event.Device.ID.String(),
		UserID:     actor.UserID,
		Source:     actor.Source,
		Details:    details,
		CreatedAt:  event.Timestamp.UTC(),
	}
}
