// Package logging provides structured logging with per-module log levels.
//
// Records go to stdout (text or JSON) and, on hosts running journald, to the
// systemd journal as well. Each module gets its own logger tagged with a
// "module" attribute and its own level, so a noisy capture backend can be
// turned down without silencing the broadcast layer.
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"capture": "debug",
//			"api":     "warn",
//		},
//	})
//
//	logger := logging.GetLogger("capture").With("camera_id", id)
//	logger.Info("Source online")
//
// The matching TOML section:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	capture = "debug"
//
// Journal entries carry SYSLOG_IDENTIFIER=camwatch and upper-cased attribute
// fields, so `journalctl -t camwatch CAMERA_ID=front-door` filters one source.
package logging
