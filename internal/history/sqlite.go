package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/intercom-core/internal/intercom"
)

// SQLiteRepository implements Repository on the state_history table.
// Timestamps are stored as Unix milliseconds.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a repository using db. The state_history
// migration must already be applied.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts entry. An empty ID or zero time is filled in.
func (r *SQLiteRepository) Record(ctx context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}

	var previous sql.NullString
	if entry.Previous != "" {
		previous = sql.NullString{String: string(entry.Previous), Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO state_history (id, device_id, state, previous, occurred_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ID,
		entry.DeviceID,
		string(entry.State),
		previous,
		entry.OccurredAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}
	return nil
}

// Recent returns the newest entries for deviceID.
// Limit defaults to 50 and is capped at 500.
func (r *SQLiteRepository) Recent(ctx context.Context, deviceID string, limit int) ([]Entry, error) {
	if deviceID == "" {
		return nil, ErrDeviceIDRequired
	}
	limit = clampLimit(limit)

	// rowid breaks ties between entries recorded in the same millisecond.
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, state, previous, occurred_at
		 FROM state_history
		 WHERE device_id = ?
		 ORDER BY occurred_at DESC, rowid DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			entry      Entry
			state      string
			previous   sql.NullString
			occurredAt int64
		)
		if err := rows.Scan(&entry.ID, &entry.DeviceID, &state, &previous, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}

		if entry.State, err = intercom.ParseState(state); err != nil {
			return nil, fmt.Errorf("row %s: %w", entry.ID, err)
		}
		if previous.Valid {
			if entry.Previous, err = intercom.ParseState(previous.String); err != nil {
				return nil, fmt.Errorf("row %s: %w", entry.ID, err)
			}
		}
		entry.OccurredAt = time.UnixMilli(occurredAt).UTC()

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}

	return entries, nil
}

// Prune deletes entries recorded more than olderThan ago.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, ErrInvalidRetention
	}

	cutoff := time.Now().Add(-olderThan).UnixMilli()
	result, err := r.db.ExecContext(ctx, "DELETE FROM state_history WHERE occurred_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting state history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
