// Intercom Core - door intercom controller.
//
// This is the main entry point for the intercom service. It owns the door
// state machine, listens for button, open-request and servo events on MQTT,
// drives the servo through the open/close cycle and keeps a local history
// of every state change.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/intercom-core/migrations"

	"github.com/nerrad567/intercom-core/internal/bridges/bus"
	"github.com/nerrad567/intercom-core/internal/history"
	"github.com/nerrad567/intercom-core/internal/infrastructure/config"
	"github.com/nerrad567/intercom-core/internal/infrastructure/database"
	"github.com/nerrad567/intercom-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/intercom-core/internal/infrastructure/logging"
	"github.com/nerrad567/intercom-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/intercom-core/internal/intercom"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	defaultEnvFile    = ".env"

	retentionInterval = 6 * time.Hour
	shutdownDrain     = 2 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the service together and blocks until ctx is cancelled.
// Resources are released in reverse order by the deferred closers.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Intercom Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	envFile := getEnv("INTERCOM_ENV_FILE", defaultEnvFile)
	if err := config.LoadEnvFile(envFile); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}

	configPath := getEnv("INTERCOM_CONFIG", defaultConfigPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version).With("device_id", cfg.Device.ID)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	// Database and history
	var db *database.DB
	var historyRepo *history.SQLiteRepository
	if cfg.History.Enabled {
		db, err = database.Open(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		applied, pending, statusErr := db.MigrationStatus(ctx)
		if statusErr != nil {
			return fmt.Errorf("reading migration status: %w", statusErr)
		}
		log.Info("database ready",
			"path", cfg.Database.Path,
			"migrations_applied", len(applied),
			"migrations_pending", len(pending),
		)
		historyRepo = history.NewSQLiteRepository(db.DB)
	} else {
		log.Info("state history disabled")
	}

	// Telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// State machine
	changes := intercom.NewBroadcaster[intercom.State](cfg.Intercom.ChannelCapacity)
	defer changes.Close()

	engine := intercom.NewEngineWithAngles(changes,
		intercom.Angle(cfg.Intercom.InactiveAngle),
		intercom.Angle(cfg.Intercom.ActiveAngle),
	)
	engine.SetLogger(log.Component("engine"))
	controller := intercom.NewController(engine, changes)
	log.Info("state machine ready",
		"state", controller.State(),
		"inactive_angle", controller.InactiveAngle(),
		"active_angle", controller.ActiveAngle(),
		"channel_capacity", changes.Capacity(),
	)

	runCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	if historyRepo != nil {
		stopRecorder := startHistory(runCtx, cfg, controller, historyRepo, influxClient, log)
		defer stopRecorder()
	}

	// MQTT
	// Connect blocks until its own timeout, so skip it once shutdown was requested.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("startup interrupted: %w", err)
	}
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	bridge, err := bus.NewBridge(bus.BridgeOptions{
		DeviceID:   cfg.Device.ID,
		QoS:        byte(cfg.MQTT.QoS),
		MQTTClient: mqttClient,
		Controller: controller,
		Logger:     log.Component("bus"),
	})
	if err != nil {
		return fmt.Errorf("creating bus bridge: %w", err)
	}
	if err := bridge.Start(runCtx); err != nil {
		return fmt.Errorf("starting bus bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bus bridge")
		bridge.Stop()
	}()

	// The bus is our network interface; the servo reports over MQTT unless
	// it is wired directly and ready at boot.
	controller.Apply(intercom.SetupTaskDone(intercom.TaskNetworkInterface))
	if cfg.Intercom.ServoReadyOnStart {
		controller.Apply(intercom.SetupTaskDone(intercom.TaskServo))
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed",
		"state", controller.State(),
		"pending_setup", controller.PendingSetupTasks(),
		"mqtt_subscriptions", mqttClient.SubscriptionCount(),
	)

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up", "state", controller.State())

	m := bridge.GetMetrics()
	log.Info("bus bridge totals",
		"events_received", m.EventsReceived,
		"events_rejected", m.EventsRejected,
		"states_published", m.StatesPublished,
		"servo_commands", m.ServoCommands,
	)
	return nil
}

// startHistory runs the recorder and retention loop. The returned function
// stops the retention loop, then closes the subscription and waits briefly
// for buffered states to drain. It must run before the database is closed.
func startHistory(ctx context.Context, cfg *config.Config, controller *intercom.Controller,
	repo history.Repository, influxClient *influxdb.Client, log *logging.Logger) func() {

	var metrics history.MetricsWriter
	if influxClient != nil {
		metrics = influxClient
	}

	sub := controller.Subscribe()
	recorder := history.NewRecorder(cfg.Device.ID, repo, metrics, controller.State())
	recorder.SetLogger(log.Component("history"))

	// Drain with a fresh context so states queued at shutdown are still stored.
	drainCtx, cancelDrain := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := recorder.Run(drainCtx, sub); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("history recorder stopped", "error", err)
		}
	}()

	retention := time.Duration(cfg.History.RetentionDays) * 24 * time.Hour
	retentionCtx, stopRetention := context.WithCancel(ctx)
	retentionDone := make(chan struct{})
	go func() {
		defer close(retentionDone)
		history.RunRetention(retentionCtx, repo, retention, retentionInterval, log.Component("history"))
	}()

	return func() {
		stopRetention()
		<-retentionDone

		sub.Close()
		select {
		case <-done:
		case <-time.After(shutdownDrain):
			log.Warn("history recorder did not drain in time")
		}
		cancelDrain()
		<-done
		log.Info("history recorder stopped",
			"recorded", recorder.Recorded(),
			"missed", recorder.Missed(),
			"failed", recorder.Failed(),
		)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// healthCheck verifies all connected services. db and influxClient may be nil.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
