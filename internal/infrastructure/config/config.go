package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// maxAngle is the largest actuator angle representable by the servo driver.
const maxAngle = 255

// Config is the root configuration structure for the intercom core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Intercom IntercomConfig `yaml:"intercom"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	History  HistoryConfig  `yaml:"history"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DeviceConfig identifies this intercom unit.
type DeviceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// IntercomConfig contains state machine and actuator settings.
type IntercomConfig struct {
	// InactiveAngle is the servo's closed position in degrees.
	InactiveAngle int `yaml:"inactive_angle"`

	// ActiveAngle is the servo's open position in degrees.
	ActiveAngle int `yaml:"active_angle"`

	// ChannelCapacity is the per-subscriber backlog of the state channel.
	ChannelCapacity int `yaml:"channel_capacity"`

	// ServoReadyOnStart reports the servo setup task as complete at startup
	// instead of waiting for the servo driver to announce itself over MQTT.
	ServoReadyOnStart bool `yaml:"servo_ready_on_start"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// HistoryConfig controls the local state history log.
type HistoryConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// LoadEnvFile loads KEY=value pairs from a dotenv file into the process
// environment so they take part in the INTERCOM_* overrides applied by Load.
// Variables already set in the environment win. A missing file is not an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: INTERCOM_SECTION_KEY
// For example: INTERCOM_DATABASE_PATH, INTERCOM_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:   "intercom-01",
			Name: "Intercom",
		},
		Intercom: IntercomConfig{
			InactiveAngle:   0,
			ActiveAngle:     30,
			ChannelCapacity: 1000,
		},
		Database: DatabaseConfig{
			Path:        "./data/intercom.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "intercom-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: INTERCOM_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("INTERCOM_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	// Actuator angles; unparsable values are left for Validate to reject
	if v := os.Getenv("INTERCOM_INACTIVE_ANGLE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Intercom.InactiveAngle = n
		} else {
			cfg.Intercom.InactiveAngle = -1
		}
	}
	if v := os.Getenv("INTERCOM_ACTIVE_ANGLE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Intercom.ActiveAngle = n
		} else {
			cfg.Intercom.ActiveAngle = -1
		}
	}

	// Database
	if v := os.Getenv("INTERCOM_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("INTERCOM_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("INTERCOM_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("INTERCOM_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("INTERCOM_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("INTERCOM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}

	// Angles must fit the 8-bit servo range and differ, otherwise opening
	// the door would not move the actuator.
	if c.Intercom.InactiveAngle < 0 || c.Intercom.InactiveAngle > maxAngle {
		errs = append(errs, "intercom.inactive_angle must be between 0 and 255")
	}
	if c.Intercom.ActiveAngle < 0 || c.Intercom.ActiveAngle > maxAngle {
		errs = append(errs, "intercom.active_angle must be between 0 and 255")
	}
	if c.Intercom.InactiveAngle == c.Intercom.ActiveAngle {
		errs = append(errs, "intercom.inactive_angle and intercom.active_angle must differ")
	}
	if c.Intercom.ChannelCapacity < 0 {
		errs = append(errs, "intercom.channel_capacity must not be negative")
	}

	if c.History.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when history is enabled")
	}
	if c.History.RetentionDays < 0 {
		errs = append(errs, "history.retention_days must not be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
