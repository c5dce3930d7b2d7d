package main

import (
	"log/slog"
	"path/filepath"

	"printlapse/internal/config"
	"printlapse/internal/logging"
)

// newLogger builds the daemon logger: the configured format on stdout plus a
// persistent log file under the log directory.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		OutputPaths: []string{
			"stdout",
			filepath.Join(cfg.Paths.LogDir, "printlapsed.log"),
		},
	})
}
