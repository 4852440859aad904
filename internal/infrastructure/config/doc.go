// Package config handles loading and validating intercom core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading optional .env files into the environment
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - MQTT passwords and the InfluxDB token should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	if err := config.LoadEnvFile(".env"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.ID)
package config
