// Package logging provides structured logging with per-module log level configuration.
//
// Loggers are slog loggers tagged with a "module" attribute. Output goes to
// stdout (text or json) when stdout is usable, to the systemd journal when
// journald is running, and always to an in-memory ring buffer that backs
// the /api/logs endpoint.
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"camera": "debug",
//			"http":   "warn",
//		},
//	})
//
//	logger := logging.GetLogger("camera")
//	logger.Info("Capture started", "device", "/dev/video0")
//
// Loggers obtained before Initialize keep working; their level follows the
// configuration once it is applied.
//
// When running under systemd:
//
//	journalctl -t camfeed -f
//	journalctl -t camfeed MODULE=mjpeg
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//	camera = "debug"
package logging
