package database

import (
	"context"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

// useMigrations swaps in fsys for the duration of the test.
func useMigrations(t *testing.T, fsys fs.FS, dir string) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	MigrationsFS, MigrationsDir = fsys, dir
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})
}

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"sql/20260101_090000_doors.up.sql": {Data: []byte(
			`CREATE TABLE test_doors (id TEXT PRIMARY KEY, name TEXT NOT NULL);`)},
		"sql/20260102_090000_door_angle.up.sql": {Data: []byte(
			`ALTER TABLE test_doors ADD COLUMN angle INTEGER NOT NULL DEFAULT 0;`)},
		"sql/20260101_090000_doors.down.sql": {Data: []byte(`DROP TABLE test_doors;`)},
		"sql/README.md":                      {Data: []byte("not a migration")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	return count == 1
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrations(), "sql")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "test_doors") {
		t.Fatal("test_doors table not created")
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO test_doors (id, name, angle) VALUES ('f', 'Front', 30)`); err != nil {
		t.Fatalf("second migration should have added angle: %v", err)
	}

	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("applied = %d migrations, want 2", len(applied))
	}
	if applied[0].Version != "20260101_090000" || applied[1].Version != "20260102_090000" {
		t.Errorf("applied versions = %s, %s", applied[0].Version, applied[1].Version)
	}
	if applied[0].AppliedAt.IsZero() {
		t.Error("AppliedAt not recorded")
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}

	if err := db.Migrate(ctx); err != nil {
		t.Errorf("second Migrate() should be a no-op, got %v", err)
	}
}

func TestMigrationStatus_BeforeMigrate(t *testing.T) {
	useMigrations(t, testMigrations(), "sql")
	db := openTestDB(t)

	applied, pending, err := db.MigrationStatus(context.Background())
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("applied = %d, want 0", len(applied))
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].Name != "doors" || pending[1].Name != "door_angle" {
		t.Errorf("pending names = %q, %q", pending[0].Name, pending[1].Name)
	}
}

func TestMigrate_FailureKeepsEarlierMigrations(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260101_090000_good.up.sql": {Data: []byte(`CREATE TABLE good (id INTEGER);`)},
		"20260102_090000_bad.up.sql":  {Data: []byte(`CREATE TABLE broken (`)},
	}, ".")
	db := openTestDB(t)
	ctx := context.Background()

	err := db.Migrate(ctx)
	if err == nil {
		t.Fatal("Migrate() expected error for broken SQL")
	}
	if !strings.Contains(err.Error(), "20260102_090000") {
		t.Errorf("error %q does not name the failing version", err)
	}

	if !tableExists(t, db, "good") {
		t.Error("earlier migration should stay committed")
	}
	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 1 {
		t.Errorf("applied/pending = %d/%d, want 1/1", len(applied), len(pending))
	}
}

func TestMigrate_NoMigrations(t *testing.T) {
	useMigrations(t, nil, ".")
	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantOk      bool
	}{
		{"20260301_120000_state_history.up.sql", "20260301_120000", "state_history", true},
		{"20260401_080000_add_source_to_history.up.sql", "20260401_080000", "add_source_to_history", true},
		{"20260301_120000_state_history.down.sql", "", "", false},
		{"20260301_120000_state_history.sql", "", "", false},
		{"20260301_120000.up.sql", "", "", false},
		{"invalid.up.sql", "", "", false},
		{"readme.txt", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if version != tt.wantVersion {
				t.Errorf("version = %q, want %q", version, tt.wantVersion)
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
		})
	}
}
