package main

import (
	"os"

	"github.com/sv4u/playlistdl/download/config"
	"github.com/sv4u/playlistdl/download/logging"
)

// EnvLogDir overrides logging.dir.
const EnvLogDir = "PLAYLISTDL_LOG_DIR"

// getLogDir returns PLAYLISTDL_LOG_DIR, the configured log dir, or ".logs".
func getLogDir(cfg *config.Config) string {
	if d := os.Getenv(EnvLogDir); d != "" {
		return d
	}
	if cfg.Logging.Dir != "" {
		return cfg.Logging.Dir
	}
	return ".logs"
}

// openRunLog creates the per-run log directory (<log dir>/run_<timestamp>_<run id>/)
// and the download.log inside it.
func openRunLog(cfg *config.Config) (*logging.RunLog, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, &config.ConfigError{Message: err.Error()}
	}
	return logging.NewRunLog(getLogDir(cfg), "", level, cfg.Logging.JSONEnabled())
}
