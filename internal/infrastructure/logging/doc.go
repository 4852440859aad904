// Package logging provides structured logging for the intercom core.
//
// It wraps log/slog with JSON output for deployed units, text output for
// bench work, level filtering and default service/version fields.
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("state change", "from", "waiting", "to", "moving")
//
// Never log the MQTT password or the InfluxDB token.
package logging
