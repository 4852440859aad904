package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/intercom-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/intercom-core/internal/intercom"
)

const defaultQoS = 1

// MQTTClient is the subset of *mqtt.Client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Logger is the logging surface the bridge needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// DeviceID selects the intercom/{device_id} topic subtree.
	DeviceID string

	// QoS for subscriptions and publishes. Zero means 1.
	QoS byte

	MQTTClient MQTTClient
	Controller *intercom.Controller

	// Logger is optional.
	Logger Logger
}

// Bridge translates MQTT events into engine events and engine state
// changes into MQTT state and servo messages.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	deviceID   string
	qos        byte
	topics     mqtt.Topics
	mqtt       MQTTClient
	controller *intercom.Controller

	mu      sync.Mutex
	started bool
	sub     *intercom.Subscription[intercom.State]
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped sync.Once

	eventsReceived  atomic.Uint64
	eventsRejected  atomic.Uint64
	statesPublished atomic.Uint64
	servoCommands   atomic.Uint64
	publishErrors   atomic.Uint64
	missedStates    atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a bridge. Call Start to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.DeviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	qos := opts.QoS
	if qos == 0 {
		qos = defaultQoS
	}

	return &Bridge{
		deviceID:   opts.DeviceID,
		qos:        qos,
		topics:     mqtt.Topics{DeviceID: opts.DeviceID},
		mqtt:       opts.MQTTClient,
		controller: opts.Controller,
		logger:     opts.Logger,
	}, nil
}

// Start publishes the current state, subscribes to inbound events and
// begins forwarding state changes. The forwarding goroutine runs until
// Stop is called or ctx is done.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrAlreadyStarted
	}

	// Subscribe before reading the initial state so no change falls between them.
	sub := b.controller.Subscribe()
	initial := b.controller.State()

	if err := b.mqtt.Subscribe(b.topics.AllEvents(), b.qos, b.handleEvent); err != nil {
		sub.Close()
		return fmt.Errorf("subscribe to events: %w", err)
	}
	b.logInfo("subscribed to events", "topic", b.topics.AllEvents())

	if err := b.publishState(initial, ""); err != nil {
		b.logError("failed to publish initial state", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.sub = sub
	b.cancel = cancel
	b.started = true

	b.wg.Add(1)
	go b.forwardStates(runCtx, sub, initial)

	b.logInfo("bus bridge started", "device_id", b.deviceID, "state", initial)
	return nil
}

// Stop unsubscribes, ends the forwarding goroutine and waits for it.
// Calling Stop on a bridge that was never started is a no-op.
func (b *Bridge) Stop() {
	b.mu.Lock()
	started := b.started
	b.mu.Unlock()
	if !started {
		return
	}

	b.stopped.Do(func() {
		if b.mqtt.IsConnected() {
			if err := b.mqtt.Unsubscribe(b.topics.AllEvents()); err != nil {
				b.logError("failed to unsubscribe from events", err)
			}
		}
		b.cancel()
		b.sub.Close()
		b.wg.Wait()
		b.logInfo("bus bridge stopped")
	})
}

// forwardStates publishes each state received on sub.
func (b *Bridge) forwardStates(ctx context.Context, sub *intercom.Subscription[intercom.State], previous intercom.State) {
	defer b.wg.Done()

	var seenMissed uint64
	for {
		state, err := sub.Recv(ctx)
		if err != nil {
			if !errors.Is(err, intercom.ErrClosed) && !errors.Is(err, context.Canceled) {
				b.logError("state subscription ended", err)
			}
			return
		}

		if total := sub.Missed(); total > seenMissed {
			b.missedStates.Add(total - seenMissed)
			b.logWarn("state changes missed", "count", total-seenMissed)
			seenMissed = total
		}

		b.handleStateChange(previous, state)
		previous = state
	}
}

// handleStateChange publishes the new state and any servo command it implies.
func (b *Bridge) handleStateChange(previous, next intercom.State) {
	if err := b.publishState(next, previous); err != nil {
		b.logError("failed to publish state", err)
	}

	target, reason, ok := servoTarget(previous, next, b.controller.InactiveAngle(), b.controller.ActiveAngle())
	if !ok {
		return
	}
	if err := b.publishServoCommand(target, reason); err != nil {
		b.logError("failed to publish servo command", err)
	}
}

func (b *Bridge) publishState(state, previous intercom.State) error {
	pending := b.controller.PendingSetupTasks()
	names := make([]string, len(pending))
	for i, task := range pending {
		names[i] = task.String()
	}

	msg := StateMessage{
		DeviceID:      b.deviceID,
		Timestamp:     time.Now().UTC(),
		State:         state,
		Previous:      previous,
		PendingSetup:  names,
		InactiveAngle: uint8(b.controller.InactiveAngle()),
		ActiveAngle:   uint8(b.controller.ActiveAngle()),
	}
	if err := b.publishJSON(b.topics.State(), msg, true); err != nil {
		return err
	}
	b.statesPublished.Add(1)
	b.logDebug("state published", "state", state, "previous", previous)
	return nil
}

func (b *Bridge) publishServoCommand(target intercom.Angle, reason string) error {
	cmd := newServoCommand(target, reason)
	if err := b.publishJSON(b.topics.ServoCommand(), cmd, false); err != nil {
		return err
	}
	b.servoCommands.Add(1)
	b.logInfo("servo command sent", "target_angle", cmd.TargetAngle, "reason", reason, "command_id", cmd.ID)
	return nil
}

func (b *Bridge) publishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	if err := b.mqtt.Publish(topic, payload, b.qos, retained); err != nil {
		b.publishErrors.Add(1)
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// handleEvent is the MQTT handler for intercom/{id}/event/+.
// Malformed events are logged and dropped; the error is also returned so
// the MQTT client can record it.
func (b *Bridge) handleEvent(topic string, payload []byte) error {
	b.eventsReceived.Add(1)

	ev, msg, err := b.parseEvent(topic, payload)
	if err != nil {
		b.eventsRejected.Add(1)
		b.logWarn("event rejected", "topic", topic, "error", err)
		return err
	}

	state := b.controller.Apply(ev)
	b.logDebug("event applied",
		"event", ev.String(),
		"event_id", msg.ID,
		"source", msg.Source,
		"state", state)
	return nil
}

// parseEvent decodes an inbound event. An empty payload is accepted for
// events that carry no data.
func (b *Bridge) parseEvent(topic string, payload []byte) (intercom.Event, EventMessage, error) {
	var msg EventMessage

	kind, ok := b.topics.EventKind(topic)
	if !ok {
		return intercom.Event{}, msg, fmt.Errorf("%w: %s", ErrForeignTopic, topic)
	}

	if len(bytes.TrimSpace(payload)) > 0 {
		if err := json.Unmarshal(payload, &msg); err != nil {
			return intercom.Event{}, msg, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	ev, err := intercom.ParseEvent(kind, msg.Task)
	if err != nil {
		return intercom.Event{}, msg, err
	}
	return ev, msg, nil
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

// BridgeMetrics is a snapshot of the bridge counters.
type BridgeMetrics struct {
	Connected       bool
	EventsReceived  uint64
	EventsRejected  uint64
	StatesPublished uint64
	ServoCommands   uint64
	PublishErrors   uint64
	MissedStates    uint64
}

// GetMetrics returns the current counters.
func (b *Bridge) GetMetrics() BridgeMetrics {
	return BridgeMetrics{
		Connected:       b.mqtt.IsConnected(),
		EventsReceived:  b.eventsReceived.Load(),
		EventsRejected:  b.eventsRejected.Load(),
		StatesPublished: b.statesPublished.Load(),
		ServoCommands:   b.servoCommands.Load(),
		PublishErrors:   b.publishErrors.Load(),
		MissedStates:    b.missedStates.Load(),
	}
}
