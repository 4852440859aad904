package intercom

import "errors"

// Errors returned by the parsing helpers and the publish channel.
// The Engine itself never returns an error.
var (
	// ErrUnknownState is returned by ParseState for an unrecognised value.
	ErrUnknownState = errors.New("intercom: unknown state")

	// ErrUnknownEvent is returned by ParseEvent for an unrecognised kind.
	ErrUnknownEvent = errors.New("intercom: unknown event")

	// ErrUnknownSetupTask is returned for an unrecognised setup task name.
	ErrUnknownSetupTask = errors.New("intercom: unknown setup task")

	// ErrClosed is returned by Subscription.Recv once the subscription or
	// its broadcaster has been closed and no buffered values remain.
	ErrClosed = errors.New("intercom: channel closed")
)
