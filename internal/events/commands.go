package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-devices/internal/audit"
	"github.com/nerrad567/gray-logic-devices/internal/device"
	"github.com/nerrad567/gray-logic-devices/internal/infrastructure/mqtt"
)

// commandTimeout bounds a single state command, including any wait for
// the database write lock.
const commandTimeout = 10 * time.Second

// ErrInvalidCommand is returned when a state command cannot be decoded.
var ErrInvalidCommand = errors.New("events: invalid command")

// Subscriber is the subset of the MQTT client used to receive commands.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// DeviceUpdater applies partial updates to devices.
type DeviceUpdater interface {
	UpdateDevice(ctx context.Context, id uuid.UUID, req device.PatchRequest) (*device.Device, error)
}

// Logger is the logging interface used by the listener.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// StateCommand is the payload accepted on a device's state command topic.
//
//	{"state": "IN_USE"}
type StateCommand struct {
	State *string `json:"state"`
}

// CommandListener applies state commands received over MQTT.
//
// A command is a patch carrying only the state, so it is always accepted
// for an existing device regardless of IN_USE. Rejected commands are
// returned to the MQTT client, which logs them.
type CommandListener struct {
	sub     Subscriber
	devices DeviceUpdater
	qos     byte
	topics  mqtt.Topics
	logger  Logger
}

// NewCommandListener creates a listener. Call Start to subscribe.
func NewCommandListener(sub Subscriber, devices DeviceUpdater, qos byte) *CommandListener {
	return &CommandListener{
		sub:     sub,
		devices: devices,
		qos:     qos,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the listener.
func (l *CommandListener) SetLogger(logger Logger) {
	l.logger = logger
}

// Start subscribes to the state command topics of all devices.
func (l *CommandListener) Start() error {
	topic := l.topics.AllDeviceStateCommands()
	if err := l.sub.Subscribe(topic, l.qos, l.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	l.logger.Info("listening for device state commands", "topic", topic)
	return nil
}

// Stop removes the subscription.
func (l *CommandListener) Stop() error {
	return l.sub.Unsubscribe(l.topics.AllDeviceStateCommands())
}

// HandleMessage decodes one state command and applies it.
func (l *CommandListener) HandleMessage(topic string, payload []byte) error {
	rawID, ok := l.topics.ParseDeviceStateCommand(topic)
	if !ok {
		return fmt.Errorf("%w: unexpected topic %q", ErrInvalidCommand, topic)
	}
	id, err := device.ParseID(rawID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	var cmd StateCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("%w: decoding payload: %w", ErrInvalidCommand, err)
	}
	if cmd.State == nil {
		return fmt.Errorf("%w: state is required", ErrInvalidCommand)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	ctx = audit.WithActor(ctx, audit.Actor{Source: audit.SourceMQTT})

	dev, err := l.devices.UpdateDevice(ctx, id, device.PatchRequest{State: cmd.State})
	if err != nil {
		return fmt.Errorf("applying state command for %s: %w", id, err)
	}

	l.logger.Info("device state command applied", "id", dev.ID, "state", dev.State)
	return nil
}
