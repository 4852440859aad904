package intercom

import (
	"fmt"
	"sort"
)

// State is one discrete condition of the intercom control logic.
// The string value is the wire form used on MQTT and in the history table.
type State string

const (
	// StateSetup waits for every SetupTask to report completion.
	StateSetup State = "setup"

	// StateWaiting is the idle state; the door is at rest.
	StateWaiting State = "waiting"

	// StateMoving means the actuator has been asked to open the door and
	// has not yet confirmed completion.
	StateMoving State = "moving"

	// StateSettingInactive is the first position of the button-driven
	// three-position ring (adjusting the closed angle).
	StateSettingInactive State = "setting_inactive"

	// StateSettingActive is the second position of the ring (adjusting the
	// open angle).
	StateSettingActive State = "setting_active"
)

// AllStates returns every known state in declaration order.
func AllStates() []State {
	return []State{StateSetup, StateWaiting, StateMoving, StateSettingInactive, StateSettingActive}
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case StateSetup, StateWaiting, StateMoving, StateSettingInactive, StateSettingActive:
		return true
	}
	return false
}

func (s State) String() string {
	return string(s)
}

// ParseState converts a wire value into a State.
func ParseState(value string) (State, error) {
	s := State(value)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownState, value)
	}
	return s, nil
}

// SetupTask names an initialisation dependency that gates leaving StateSetup.
type SetupTask string

const (
	// TaskServo is reported by the actuator driver once the servo is ready.
	TaskServo SetupTask = "servo"

	// TaskNetworkInterface is reported once the network link is usable.
	TaskNetworkInterface SetupTask = "network_interface"
)

// AllSetupTasks returns every known setup task.
func AllSetupTasks() []SetupTask {
	return []SetupTask{TaskServo, TaskNetworkInterface}
}

// Valid reports whether t is one of the known setup tasks.
func (t SetupTask) Valid() bool {
	return t == TaskServo || t == TaskNetworkInterface
}

func (t SetupTask) String() string {
	return string(t)
}

// ParseSetupTask converts a wire value into a SetupTask.
func ParseSetupTask(value string) (SetupTask, error) {
	t := SetupTask(value)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSetupTask, value)
	}
	return t, nil
}

// sortTasks orders tasks by name so snapshots are deterministic.
func sortTasks(tasks []SetupTask) {
	sort.Slice(tasks, func(i, j int) bool { return tasks[i] < tasks[j] })
}

// EventKind discriminates the Event variants.
type EventKind string

const (
	// EventSetupTaskDone carries the SetupTask that completed.
	EventSetupTaskDone EventKind = "setup_task_done"

	// EventRequestOpen asks the intercom to start opening the door.
	EventRequestOpen EventKind = "request_open"

	// EventOpenMotionComplete is the actuator's acknowledgement that it
	// reached the open position.
	EventOpenMotionComplete EventKind = "open_motion_complete"

	// EventButtonPressed is a physical or logical button actuation.
	EventButtonPressed EventKind = "button_pressed"
)

// Event is a stimulus delivered to the Engine.
// Task is only meaningful for EventSetupTaskDone.
type Event struct {
	Kind EventKind
	Task SetupTask
}

// SetupTaskDone reports that task has completed.
func SetupTaskDone(task SetupTask) Event {
	return Event{Kind: EventSetupTaskDone, Task: task}
}

// RequestOpen returns a request-to-open event.
func RequestOpen() Event {
	return Event{Kind: EventRequestOpen}
}

// OpenMotionComplete returns the actuator's motion-complete acknowledgement.
func OpenMotionComplete() Event {
	return Event{Kind: EventOpenMotionComplete}
}

// ButtonPressed returns a button-press event.
func ButtonPressed() Event {
	return Event{Kind: EventButtonPressed}
}

// String renders the event for logs, e.g. "setup_task_done{servo}".
func (e Event) String() string {
	if e.Kind == EventSetupTaskDone {
		return fmt.Sprintf("%s{%s}", e.Kind, e.Task)
	}
	return string(e.Kind)
}

// ParseEvent decodes the wire form of an event.
//
// Parameters:
//   - kind: Event kind, e.g. "button_pressed"
//   - task: Setup task name; required only for "setup_task_done"
//
// Returns:
//   - Event: The decoded event
//   - error: ErrUnknownEvent or ErrUnknownSetupTask when the input is invalid
func ParseEvent(kind, task string) (Event, error) {
	switch EventKind(kind) {
	case EventSetupTaskDone:
		t, err := ParseSetupTask(task)
		if err != nil {
			return Event{}, err
		}
		return SetupTaskDone(t), nil
	case EventRequestOpen:
		return RequestOpen(), nil
	case EventOpenMotionComplete:
		return OpenMotionComplete(), nil
	case EventButtonPressed:
		return ButtonPressed(), nil
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, kind)
	}
}

// Angle is an actuator position in degrees.
type Angle uint8

// Default actuator positions.
const (
	DefaultInactiveAngle Angle = 0
	DefaultActiveAngle   Angle = 30
)
