package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvClientID     = "SPOTIFY_CLIENT_ID"
	EnvClientSecret = "SPOTIFY_CLIENT_SECRET"
	EnvOutputRoot   = "PLAYLISTDL_OUTPUT_ROOT"
)

// Load builds the effective configuration. An empty path starts from
// DefaultConfig. Variables from a .env file in the working directory are
// loaded first without overriding the real environment, then environment
// overrides are applied, then defaults and validation.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	var cfg *Config
	if path == "" {
		cfg = &Config{}
	} else {
		var err error
		if cfg, err = parseFile(path); err != nil {
			return nil, err
		}
	}

	ApplyEnv(cfg)
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig loads and validates configuration from a YAML or TOML file
// without consulting the environment.
func LoadConfig(path string) (*Config, error) {
	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &ConfigError{Message: fmt.Sprintf("Configuration file not found: %s", path)}
	}
	if err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("Error reading configuration file: %v", err)}
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, &ConfigError{Message: fmt.Sprintf("Error parsing TOML file: %v", err)}
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, &ConfigError{Message: fmt.Sprintf("Error parsing YAML file: %v", err)}
		}
	}
	return &cfg, nil
}

// LoadDotEnv loads variables from the given files, skipping files that do
// not exist. Variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return &ConfigError{Message: fmt.Sprintf("Error loading %s: %v", p, err)}
		}
	}
	return nil
}

// ApplyEnv overrides credentials and output root from the environment.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvClientID)); v != "" {
		cfg.Spotify.ClientID = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvClientSecret)); v != "" {
		cfg.Spotify.ClientSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvOutputRoot)); v != "" {
		cfg.Download.OutputRoot = v
	}
}
