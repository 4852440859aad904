// Package database provides SQLite connectivity and schema migrations for
// the intercom core.
//
// The intercom keeps a small local store, currently the state change
// history. Migrations are plain SQL files named
// YYYYMMDD_HHMMSS_description.up.sql, embedded into the binary by the
// top-level migrations package. There is no rollback; fix forward with a
// new migration.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be nullable or carry a default.
package database
