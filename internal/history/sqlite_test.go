package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/intercom-core/internal/infrastructure/database"
	"github.com/nerrad567/intercom-core/internal/intercom"
	_ "github.com/nerrad567/intercom-core/migrations"
)

// openTestRepo returns a repository on a migrated in-memory database.
func openTestRepo(t *testing.T) (*SQLiteRepository, *database.DB) {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	require.NoError(t, db.Migrate(ctx))
	return NewSQLiteRepository(db.DB), db
}

func TestSQLiteRepository_RecordAndRecent(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sequence := []struct {
		state, previous intercom.State
	}{
		{intercom.StateWaiting, intercom.StateSetup},
		{intercom.StateMoving, intercom.StateWaiting},
		{intercom.StateWaiting, intercom.StateMoving},
	}
	for i, s := range sequence {
		entry := NewEntry("front-door", s.state, s.previous)
		entry.OccurredAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Record(ctx, entry))
	}
	require.NoError(t, repo.Record(ctx, NewEntry("back-door", intercom.StateWaiting, intercom.StateSetup)))

	entries, err := repo.Recent(ctx, "front-door", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, intercom.StateWaiting, entries[0].State)
	assert.Equal(t, intercom.StateMoving, entries[0].Previous)
	assert.Equal(t, intercom.StateMoving, entries[1].State)
	assert.Equal(t, intercom.StateWaiting, entries[2].State)
	assert.Equal(t, intercom.StateSetup, entries[2].Previous)
	assert.True(t, entries[2].OccurredAt.Equal(base), "OccurredAt = %v, want %v", entries[2].OccurredAt, base)
	assert.NotEmpty(t, entries[0].ID)

	limited, err := repo.Recent(ctx, "front-door", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, entries[0].ID, limited[0].ID)
}

func TestSQLiteRepository_RecordWithoutPrevious(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, Entry{DeviceID: "hall", State: intercom.StateSetup}))

	entries, err := repo.Recent(ctx, "hall", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, intercom.State(""), entries[0].Previous)
	assert.NotEmpty(t, entries[0].ID, "missing ID should be generated")
	assert.False(t, entries[0].OccurredAt.IsZero(), "missing time should be filled")
}

func TestSQLiteRepository_RecordValidation(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		entry Entry
		want  error
	}{
		{"missing device", Entry{State: intercom.StateWaiting}, ErrDeviceIDRequired},
		{"unknown state", Entry{DeviceID: "d", State: "ajar"}, ErrInvalidState},
		{"unknown previous", Entry{DeviceID: "d", State: intercom.StateWaiting, Previous: "ajar"}, ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Record(ctx, tt.entry)
			assert.True(t, errors.Is(err, tt.want), "error = %v, want %v", err, tt.want)
		})
	}

	_, err := repo.Recent(ctx, "", 10)
	assert.True(t, errors.Is(err, ErrDeviceIDRequired))
}

func TestSQLiteRepository_Prune(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	old := NewEntry("front-door", intercom.StateWaiting, intercom.StateSetup)
	old.OccurredAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, repo.Record(ctx, old))
	require.NoError(t, repo.Record(ctx, NewEntry("front-door", intercom.StateMoving, intercom.StateWaiting)))

	deleted, err := repo.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	entries, err := repo.Recent(ctx, "front-door", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, intercom.StateMoving, entries[0].State)

	_, err = repo.Prune(ctx, 0)
	assert.True(t, errors.Is(err, ErrInvalidRetention))
}

func TestSQLiteRepository_RecentRejectsCorruptRow(t *testing.T) {
	repo, db := openTestRepo(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		`INSERT INTO state_history (id, device_id, state, occurred_at) VALUES ('x', 'd', 'ajar', 0)`)
	require.NoError(t, err)

	_, err = repo.Recent(ctx, "d", 10)
	assert.True(t, errors.Is(err, intercom.ErrUnknownState), "error = %v", err)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultRecentLimit, clampLimit(0))
	assert.Equal(t, defaultRecentLimit, clampLimit(-3))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, maxRecentLimit, clampLimit(maxRecentLimit+1))
}
