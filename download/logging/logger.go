// Package logging builds the loggers used by the download packages: a text
// console logger and a per-run log file under the log directory.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// LogFileName is the name of the log file inside a run directory.
const LogFileName = "download.log"

// ParseLevel parses a level name such as "debug" or "warn".
func ParseLevel(s string) (log.Level, error) {
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// New creates a text logger with timestamps. The writer defaults to
// os.Stderr.
func New(w io.Writer, level log.Level) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Level:           level,
	})
}

// NewRunID returns a random identifier for a run.
func NewRunID() string {
	return uuid.New().String()
}

// RunLog is a log file dedicated to a single run.
type RunLog struct {
	// Logger writes to the run's log file.
	Logger *log.Logger
	ID     string
	Dir    string
	Path   string
	file   *os.File
}

// NewRunLog creates <baseDir>/run_<timestamp>_<runID>/download.log and a
// logger writing to it, JSON-formatted when asJSON is set. An empty runID
// gets a fresh one.
func NewRunLog(baseDir, runID string, level log.Level, asJSON bool) (*RunLog, error) {
	if runID == "" {
		runID = NewRunID()
	}

	ts := strings.ReplaceAll(time.Now().Format(time.RFC3339), ":", "-")
	dir := filepath.Join(baseDir, "run_"+ts+"_"+runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run log directory: %w", err)
	}

	path := filepath.Join(dir, LogFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	opts := log.Options{ReportTimestamp: true, Level: level}
	if asJSON {
		opts.Formatter = log.JSONFormatter
	} else {
		opts.Formatter = log.LogfmtFormatter
	}
	logger := log.NewWithOptions(file, opts).With("run_id", runID)

	return &RunLog{Logger: logger, ID: runID, Dir: dir, Path: path, file: file}, nil
}

// Close closes the log file.
func (r *RunLog) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
