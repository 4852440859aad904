package bus

import "errors"

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("bus: bridge already started")

	// ErrInvalidPayload is returned for event payloads that are not valid JSON.
	ErrInvalidPayload = errors.New("bus: invalid event payload")

	// ErrForeignTopic is returned for messages outside this device's event topics.
	ErrForeignTopic = errors.New("bus: topic is not an event for this device")
)
