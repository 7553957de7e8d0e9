// Package logging provides structured logging for the watchdog.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Optional rotated files: a combined log and an error-only log
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//	  file:
//	    path: "logs/combined.log"
//	    error_path: "logs/error.log"
//	    max_size: 50     # megabytes before rotation
//	    max_backups: 5
//	    max_age: 30      # days
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	defer logger.Close()
//	logger.Info("cycle started", "processes", 3)
//	logger.Error("pm2 query failed", "process", name, "error", err)
//
// # Security
//
// Never log the SMTP password or broker credentials.
package logging
