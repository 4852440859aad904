package bus

import (
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/intercom-core/internal/intercom"
)

// Servo command reasons.
const (
	ReasonOpen  = "open"
	ReasonClose = "close"
)

// EventMessage is the optional JSON body of an inbound event.
// Topic: intercom/{device_id}/event/{kind}
type EventMessage struct {
	// ID correlates the event in logs. Generated when absent.
	ID string `json:"id,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// Task names the completed setup task; only used by setup_task_done.
	Task string `json:"task,omitempty"`

	// Source identifies the publisher, e.g. "button", "servo", "remote".
	Source string `json:"source,omitempty"`
}

// StateMessage is published retained on every state change.
// Topic: intercom/{device_id}/state
type StateMessage struct {
	DeviceID      string         `json:"device_id"`
	Timestamp     time.Time      `json:"timestamp"`
	State         intercom.State `json:"state"`
	Previous      intercom.State `json:"previous,omitempty"`
	PendingSetup  []string       `json:"pending_setup,omitempty"`
	InactiveAngle uint8          `json:"inactive_angle"`
	ActiveAngle   uint8          `json:"active_angle"`
}

// ServoCommand tells the servo driver where to move.
// Topic: intercom/{device_id}/command/servo
type ServoCommand struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	TargetAngle uint8     `json:"target_angle"`
	Reason      string    `json:"reason"`
}

// newServoCommand builds a command with a fresh ID.
func newServoCommand(target intercom.Angle, reason string) ServoCommand {
	return ServoCommand{
		ID:          uuid.New().String(),
		Timestamp:   time.Now().UTC(),
		TargetAngle: uint8(target),
		Reason:      reason,
	}
}

// servoTarget decides whether a transition needs the servo to move.
// Entering Moving opens; leaving Moving for Waiting closes.
func servoTarget(previous, next intercom.State, inactive, active intercom.Angle) (intercom.Angle, string, bool) {
	switch {
	case next == intercom.StateMoving && previous != intercom.StateMoving:
		return active, ReasonOpen, true
	case previous == intercom.StateMoving && next == intercom.StateWaiting:
		return inactive, ReasonClose, true
	default:
		return 0, "", false
	}
}
