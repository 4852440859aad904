package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/intercom-core/internal/intercom"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

var (
	// ErrDeviceIDRequired is returned when an entry or query has no device ID.
	ErrDeviceIDRequired = errors.New("history: device id is required")

	// ErrInvalidState is returned when an entry carries an unknown state.
	ErrInvalidState = errors.New("history: invalid state")

	// ErrInvalidRetention is returned when Prune is given a non-positive age.
	ErrInvalidRetention = errors.New("history: retention must be positive")
)

// Entry is one observed state change.
type Entry struct {
	ID       string         `json:"id"`
	DeviceID string         `json:"device_id"`
	State    intercom.State `json:"state"`

	// Previous is the state observed before this one. It is the recorder's
	// view, so it may skip states the recorder missed.
	Previous intercom.State `json:"previous,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

// NewEntry builds an Entry with a fresh ID and the current UTC time.
func NewEntry(deviceID string, state, previous intercom.State) Entry {
	return Entry{
		ID:         uuid.New().String(),
		DeviceID:   deviceID,
		State:      state,
		Previous:   previous,
		OccurredAt: time.Now().UTC(),
	}
}

// Validate checks the fields a repository needs to store the entry.
func (e Entry) Validate() error {
	if e.DeviceID == "" {
		return ErrDeviceIDRequired
	}
	if !e.State.Valid() {
		return ErrInvalidState
	}
	if e.Previous != "" && !e.Previous.Valid() {
		return ErrInvalidState
	}
	return nil
}

// Repository stores and retrieves state change history.
//
// Implementations must be safe for concurrent use.
type Repository interface {
	// Record appends an entry.
	Record(ctx context.Context, entry Entry) error

	// Recent returns up to limit entries for the device, newest first.
	// A non-positive limit selects the default.
	Recent(ctx context.Context, deviceID string, limit int) ([]Entry, error)

	// Prune deletes entries older than olderThan and returns how many went.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// clampLimit applies the default and upper bound to a Recent limit.
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultRecentLimit
	}
	if limit > maxRecentLimit {
		return maxRecentLimit
	}
	return limit
}
