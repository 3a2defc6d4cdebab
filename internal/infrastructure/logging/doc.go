// Package logging provides structured logging for DeviceHub Core.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text for local development, and a fixed set of default
// fields (service, version) on every entry.
//
// Configuration comes from the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("device taken", "serial_number", serial, "user_id", userID)
//
// Never log passwords, password hashes, or session tokens.
package logging
