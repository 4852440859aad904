package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the intercom MQTT hierarchy.
//
// Per-device topics use the scheme: intercom/{device_id}/{category}[/{name}]
const (
	// TopicPrefix is the base for all intercom topics.
	TopicPrefix = "intercom"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "intercom/system"
)

// Topic categories below intercom/{device_id}.
const (
	categoryEvent   = "event"
	categoryState   = "state"
	categoryCommand = "command"
)

// Topics provides builders for one intercom unit's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{DeviceID: "front-door"}
//	topics.State()             // "intercom/front-door/state"
//	topics.Event("button_pressed") // "intercom/front-door/event/button_pressed"
type Topics struct {
	DeviceID string
}

// base returns intercom/{device_id}.
func (t Topics) base() string {
	return fmt.Sprintf("%s/%s", TopicPrefix, t.DeviceID)
}

// State returns the retained topic carrying the current intercom state.
//
// Example: intercom/front-door/state
func (t Topics) State() string {
	return fmt.Sprintf("%s/%s", t.base(), categoryState)
}

// Event returns the inbound topic for one event kind.
//
// Example: intercom/front-door/event/request_open
func (t Topics) Event(kind string) string {
	return fmt.Sprintf("%s/%s/%s", t.base(), categoryEvent, kind)
}

// AllEvents returns a pattern matching every inbound event for the device.
//
// Pattern: intercom/front-door/event/+
func (t Topics) AllEvents() string {
	return t.Event("+")
}

// Command returns the outbound command topic for a collaborator.
//
// Example: intercom/front-door/command/servo
func (t Topics) Command(target string) string {
	return fmt.Sprintf("%s/%s/%s", t.base(), categoryCommand, target)
}

// ServoCommand returns the topic the servo driver listens on.
func (t Topics) ServoCommand() string {
	return t.Command("servo")
}

// EventKind extracts the event kind from an inbound event topic.
// The boolean is false when topic is not an event topic for this device.
func (t Topics) EventKind(topic string) (string, bool) {
	prefix := fmt.Sprintf("%s/%s/", t.base(), categoryEvent)
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	kind := strings.TrimPrefix(topic, prefix)
	if kind == "" || strings.Contains(kind, "/") {
		return "", false
	}
	return kind, true
}

// SystemStatus returns the system status topic used for online/offline
// announcements and the Last Will.
//
// Example: intercom/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
