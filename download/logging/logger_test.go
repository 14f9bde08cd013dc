package logging

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    log.Level
		wantErr bool
	}{
		{"debug", log.DebugLevel, false},
		{" INFO ", log.InfoLevel, false},
		{"warn", log.WarnLevel, false},
		{"error", log.ErrorLevel, false},
		{"chatty", log.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, log.WarnLevel)

	logger.Info("hidden_event")
	logger.Warn("visible_event", "track", "Song")

	out := buf.String()
	if strings.Contains(out, "hidden_event") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "visible_event") || !strings.Contains(out, "track=Song") {
		t.Errorf("warn message missing from output: %q", out)
	}
}

func TestNewRunLog_JSON(t *testing.T) {
	base := t.TempDir()
	rl, err := NewRunLog(base, "abc123", log.InfoLevel, true)
	if err != nil {
		t.Fatalf("NewRunLog() failed: %v", err)
	}

	if filepath.Dir(rl.Dir) != base {
		t.Errorf("run dir %q not under %q", rl.Dir, base)
	}
	name := filepath.Base(rl.Dir)
	if !strings.HasPrefix(name, "run_") || !strings.HasSuffix(name, "_abc123") {
		t.Errorf("unexpected run dir name %q", name)
	}
	if rl.Path != filepath.Join(rl.Dir, LogFileName) {
		t.Errorf("Path = %q", rl.Path)
	}

	rl.Logger.Info("track_done", "track", "Song", "degraded", false)
	rl.Logger.Debug("filtered")
	if err := rl.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	f, err := os.Open(rl.Path)
	if err != nil {
		t.Fatalf("Failed to open log: %v", err)
	}
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", scanner.Text(), err)
		}
		lines = append(lines, entry)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d", len(lines))
	}
	entry := lines[0]
	if entry["msg"] != "track_done" || entry["track"] != "Song" || entry["run_id"] != "abc123" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestNewRunLog_GeneratesID(t *testing.T) {
	rl, err := NewRunLog(t.TempDir(), "", log.InfoLevel, false)
	if err != nil {
		t.Fatalf("NewRunLog() failed: %v", err)
	}
	defer rl.Close()
	if len(rl.ID) != 36 {
		t.Errorf("expected a UUID run ID, got %q", rl.ID)
	}
	if err := rl.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if err := rl.Close(); err != nil {
		t.Errorf("second Close() should be a no-op, got %v", err)
	}
}
