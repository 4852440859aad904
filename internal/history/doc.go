// Package history records intercom state changes.
//
// A Recorder subscribes to the engine's change broadcast and, for every
// state it observes, appends an Entry to a Repository (SQLite in
// production) and optionally writes a point to a MetricsWriter (InfluxDB).
// Subscribers that fall too far behind lose the oldest changes; the
// recorder logs and counts those gaps rather than stalling the engine.
//
// Usage:
//
//	repo := history.NewSQLiteRepository(db.DB)
//	sub := controller.Subscribe()
//	rec := history.NewRecorder(cfg.Device.ID, repo, influxClient, controller.State())
//	rec.SetLogger(log.Component("history"))
//	go rec.Run(ctx, sub)
package history
