// Package logging provides structured logging with per-module log levels.
//
// # Overview
//
// Loggers are plain *slog.Logger values tagged with a "module" attribute.
// Records fan out to every available sink:
//   - stdout (text or json) when a terminal, pipe or file is attached
//   - the systemd journal when journald is reachable
//   - an in-memory ring buffer that backs the /api/logs/stream endpoint
//
// # Usage
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"bridge": "debug",
//			"visca":  "warn",
//		},
//	})
//
// Then fetch a module logger:
//
//	logger := logging.GetLogger("ptz")
//	logger.Info("PTZ command executed", "command", "home")
//
// Loggers obtained before Initialize keep working; Initialize rebuilds their
// handlers and applies the configured levels.
//
// # Viewing Logs
//
//	journalctl -t ptzbridge -f
//	journalctl -t ptzbridge MODULE=visca
package logging
