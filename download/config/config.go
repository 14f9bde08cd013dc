package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sv4u/playlistdl/download/record"
)

// CurrentVersion is the config schema version written by DefaultConfig.
const CurrentVersion = "1"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// SpotifySettings holds Spotify API credentials and request pacing.
type SpotifySettings struct {
	ClientID     string `yaml:"client_id" toml:"client_id"`
	ClientSecret string `yaml:"client_secret" toml:"client_secret"`
	// Username is informational only; client credentials do not need it.
	Username string `yaml:"username" toml:"username"`

	RateLimitEnabled  *bool         `yaml:"rate_limit_enabled" toml:"rate_limit_enabled"` // nil = true
	RateLimitRequests int           `yaml:"rate_limit_requests" toml:"rate_limit_requests"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window" toml:"rate_limit_window"`
}

// SetDefaults sets default values for SpotifySettings.
func (s *SpotifySettings) SetDefaults() {
	if s.RateLimitEnabled == nil {
		enabled := true
		s.RateLimitEnabled = &enabled
	}
	if s.RateLimitRequests == 0 {
		s.RateLimitRequests = 10
	}
	if s.RateLimitWindow == 0 {
		s.RateLimitWindow = time.Second
	}
}

// LimitEnabled reports whether Spotify API calls are rate limited.
func (s *SpotifySettings) LimitEnabled() bool {
	return s.RateLimitEnabled == nil || *s.RateLimitEnabled
}

// RequireCredentials reports missing Spotify credentials. Only commands that
// export playlists need them.
func (s *SpotifySettings) RequireCredentials() error {
	s.ClientID = strings.TrimSpace(s.ClientID)
	s.ClientSecret = strings.TrimSpace(s.ClientSecret)

	missing := []string{}
	if s.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if s.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if len(missing) > 0 {
		return &ConfigError{
			Message: fmt.Sprintf(
				"Missing Spotify %s. Set spotify.client_id and spotify.client_secret in the configuration file or SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET in the environment",
				strings.Join(missing, " and "),
			),
		}
	}
	return nil
}

// DownloadSettings holds download configuration settings.
type DownloadSettings struct {
	OutputRoot string `yaml:"output_root" toml:"output_root"`
	Format     string `yaml:"format" toml:"format"`
	Bitrate    int    `yaml:"bitrate" toml:"bitrate"`
	YtDlpPath  string `yaml:"ytdlp_path" toml:"ytdlp_path"`

	// Search retry settings
	SearchAttempts   int           `yaml:"search_attempts" toml:"search_attempts"`
	SearchBackoff    time.Duration `yaml:"search_backoff" toml:"search_backoff"`
	SearchMaxBackoff time.Duration `yaml:"search_max_backoff" toml:"search_max_backoff"`
	SearchRateLimit  float64       `yaml:"search_rate_limit" toml:"search_rate_limit"`

	ArtTimeout time.Duration `yaml:"art_timeout" toml:"art_timeout"`

	// Worker pool settings
	// Workers of 0 derives the count from the CPU count.
	Workers int `yaml:"workers" toml:"workers"`
	// MaxWorkers of 0 means no cap.
	MaxWorkers int `yaml:"max_workers" toml:"max_workers"`
	// ReserveCores defaults to 1 when unset.
	ReserveCores *int `yaml:"reserve_cores" toml:"reserve_cores"`
	ChunkFiles   bool `yaml:"chunk_files" toml:"chunk_files"`

	RecordFormat   string `yaml:"record_format" toml:"record_format"`
	KeepRecordFile bool   `yaml:"keep_record_file" toml:"keep_record_file"`
	WriteTextTags  *bool  `yaml:"write_text_tags" toml:"write_text_tags"` // nil = true
}

// SetDefaults sets default values for DownloadSettings.
func (d *DownloadSettings) SetDefaults() {
	if d.OutputRoot == "" {
		d.OutputRoot = "."
	}
	if d.Format == "" {
		d.Format = "mp3"
	}
	if d.Bitrate == 0 {
		d.Bitrate = 192
	}
	if d.YtDlpPath == "" {
		d.YtDlpPath = "yt-dlp"
	}
	if d.SearchAttempts == 0 {
		d.SearchAttempts = 10
	}
	if d.SearchMaxBackoff == 0 {
		d.SearchMaxBackoff = 30 * time.Second
	}
	if d.ArtTimeout == 0 {
		d.ArtTimeout = 10 * time.Second
	}
	if d.ReserveCores == nil {
		reserve := 1
		d.ReserveCores = &reserve
	}
	if d.RecordFormat == "" {
		d.RecordFormat = string(record.FormatCSV)
	}
	if d.WriteTextTags == nil {
		enabled := true
		d.WriteTextTags = &enabled
	}
}

// Reserve returns the number of CPU cores left free for the rest of the
// system.
func (d *DownloadSettings) Reserve() int {
	if d.ReserveCores == nil {
		return 1
	}
	return *d.ReserveCores
}

// TextTags reports whether title and artist frames are written.
func (d *DownloadSettings) TextTags() bool {
	return d.WriteTextTags == nil || *d.WriteTextTags
}

// Validate validates DownloadSettings.
func (d *DownloadSettings) Validate() error {
	if d.Format != "mp3" {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid format: %s. Only mp3 supports embedded cover art", d.Format),
		}
	}
	if d.Bitrate < 32 || d.Bitrate > 320 {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid bitrate: %d. Must be between 32 and 320", d.Bitrate),
		}
	}
	if d.SearchAttempts < 1 {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid search_attempts: %d. Must be at least 1", d.SearchAttempts),
		}
	}
	if d.SearchBackoff < 0 || d.SearchMaxBackoff < 0 || d.ArtTimeout < 0 {
		return &ConfigError{Message: "Durations must not be negative"}
	}
	if d.SearchRateLimit < 0 {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid search_rate_limit: %v. Must not be negative", d.SearchRateLimit),
		}
	}
	if d.Workers < 0 || d.MaxWorkers < 0 {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid worker count: workers=%d max_workers=%d. Must not be negative", d.Workers, d.MaxWorkers),
		}
	}
	if d.Reserve() < 0 {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid reserve_cores: %d. Must not be negative", d.Reserve()),
		}
	}
	if _, err := record.ParseFormat(d.RecordFormat); err != nil {
		return &ConfigError{Message: fmt.Sprintf("Invalid record_format: %v", err)}
	}
	return nil
}

// LoggingSettings holds log output configuration.
type LoggingSettings struct {
	Level string `yaml:"level" toml:"level"`
	// Dir receives one subdirectory per run.
	Dir  string `yaml:"dir" toml:"dir"`
	JSON *bool  `yaml:"json" toml:"json"` // nil = true
}

// SetDefaults sets default values for LoggingSettings.
func (l *LoggingSettings) SetDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Dir == "" {
		l.Dir = ".logs"
	}
	if l.JSON == nil {
		enabled := true
		l.JSON = &enabled
	}
}

// JSONEnabled reports whether a JSON run log is written.
func (l *LoggingSettings) JSONEnabled() bool {
	return l.JSON == nil || *l.JSON
}

// Validate validates LoggingSettings.
func (l *LoggingSettings) Validate() error {
	if _, err := log.ParseLevel(l.Level); err != nil {
		return &ConfigError{Message: fmt.Sprintf("Invalid logging level: %s", l.Level)}
	}
	return nil
}

// Config represents the main configuration model.
type Config struct {
	Version  string           `yaml:"version" toml:"version"`
	Spotify  SpotifySettings  `yaml:"spotify" toml:"spotify"`
	Download DownloadSettings `yaml:"download" toml:"download"`
	Logging  LoggingSettings  `yaml:"logging" toml:"logging"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	c := &Config{Version: CurrentVersion}
	c.SetDefaults()
	return c
}

// SetDefaults sets defaults on every section.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = CurrentVersion
	}
	c.Spotify.SetDefaults()
	c.Download.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate validates Config.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid version: %s. Expected %s", c.Version, CurrentVersion),
		}
	}
	if err := c.Download.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}
