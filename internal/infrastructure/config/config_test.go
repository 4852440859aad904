package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig writes content to a temporary config.yaml and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
device:
  id: "front-door"
intercom:
  inactive_angle: 5
  active_angle: 95
  channel_capacity: 64
  servo_ready_on_start: true
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.ID != "front-door" {
		t.Errorf("Device.ID = %q, want %q", cfg.Device.ID, "front-door")
	}
	if cfg.Intercom.InactiveAngle != 5 || cfg.Intercom.ActiveAngle != 95 {
		t.Errorf("angles = %d/%d, want 5/95", cfg.Intercom.InactiveAngle, cfg.Intercom.ActiveAngle)
	}
	if cfg.Intercom.ChannelCapacity != 64 {
		t.Errorf("Intercom.ChannelCapacity = %d, want 64", cfg.Intercom.ChannelCapacity)
	}
	if !cfg.Intercom.ServoReadyOnStart {
		t.Error("Intercom.ServoReadyOnStart = false, want true")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
}

func TestLoad_DefaultsFillMissingSections(t *testing.T) {
	cfg, err := Load(writeConfig(t, "device:\n  id: \"hall\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Intercom.InactiveAngle != 0 || cfg.Intercom.ActiveAngle != 30 {
		t.Errorf("default angles = %d/%d, want 0/30", cfg.Intercom.InactiveAngle, cfg.Intercom.ActiveAngle)
	}
	if cfg.Intercom.ChannelCapacity != 1000 {
		t.Errorf("default ChannelCapacity = %d, want 1000", cfg.Intercom.ChannelCapacity)
	}
	if !cfg.History.Enabled {
		t.Error("history should be enabled by default")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(writeConfig(t, `
device:
  id: ""
intercom:
  active_angle: 300
`))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	for _, want := range []string{"device.id", "intercom.active_angle"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing device ID",
			mutate:  func(c *Config) { c.Device.ID = "" },
			wantErr: true,
		},
		{
			name:    "negative inactive angle",
			mutate:  func(c *Config) { c.Intercom.InactiveAngle = -1 },
			wantErr: true,
		},
		{
			name:    "active angle above 255",
			mutate:  func(c *Config) { c.Intercom.ActiveAngle = 256 },
			wantErr: true,
		},
		{
			name:    "angles equal",
			mutate:  func(c *Config) { c.Intercom.InactiveAngle, c.Intercom.ActiveAngle = 40, 40 },
			wantErr: true,
		},
		{
			name:    "full range allowed",
			mutate:  func(c *Config) { c.Intercom.InactiveAngle, c.Intercom.ActiveAngle = 0, 255 },
			wantErr: false,
		},
		{
			name:    "negative channel capacity",
			mutate:  func(c *Config) { c.Intercom.ChannelCapacity = -5 },
			wantErr: true,
		},
		{
			name:    "history without database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name: "history disabled without database path",
			mutate: func(c *Config) {
				c.Database.Path = ""
				c.History.Enabled = false
			},
			wantErr: false,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "influxdb enabled without URL",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("INTERCOM_DEVICE_ID", "back-door")
	t.Setenv("INTERCOM_INACTIVE_ANGLE", "10")
	t.Setenv("INTERCOM_ACTIVE_ANGLE", "120")
	t.Setenv("INTERCOM_DATABASE_PATH", "/custom/path.db")
	t.Setenv("INTERCOM_MQTT_HOST", "mqtt.example.com")
	t.Setenv("INTERCOM_MQTT_USERNAME", "testuser")
	t.Setenv("INTERCOM_MQTT_PASSWORD", "testpass")
	t.Setenv("INTERCOM_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("INTERCOM_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Device.ID != "back-door" {
		t.Errorf("Device.ID = %q, want %q", cfg.Device.ID, "back-door")
	}
	if cfg.Intercom.InactiveAngle != 10 {
		t.Errorf("Intercom.InactiveAngle = %d, want 10", cfg.Intercom.InactiveAngle)
	}
	if cfg.Intercom.ActiveAngle != 120 {
		t.Errorf("Intercom.ActiveAngle = %d, want 120", cfg.Intercom.ActiveAngle)
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestApplyEnvOverrides_BadAngleFailsValidation(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("INTERCOM_ACTIVE_ANGLE", "wide open")

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for unparsable INTERCOM_ACTIVE_ANGLE")
	}
}

func TestLoadEnvFile(t *testing.T) {
	const key = "INTERCOM_TEST_DOTENV_VALUE"
	t.Cleanup(func() { os.Unsetenv(key) })

	envPath := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envPath, []byte(key+"=from-dotenv\n"), 0600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}

	if err := LoadEnvFile(envPath); err != nil {
		t.Fatalf("LoadEnvFile() error = %v", err)
	}
	if got := os.Getenv(key); got != "from-dotenv" {
		t.Errorf("%s = %q, want %q", key, got, "from-dotenv")
	}
}

func TestLoadEnvFile_Missing(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("LoadEnvFile() error = %v, want nil for missing file", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Device.ID == "" {
		t.Error("defaultConfig should have non-empty Device.ID")
	}
	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig should validate, got %v", err)
	}
}
