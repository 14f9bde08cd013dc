package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds configuration for the audio provider.
type Config struct {
	// YtDlpPath is the yt-dlp executable, looked up on PATH when not absolute.
	YtDlpPath string
	// Format is the target audio codec passed to --audio-format.
	Format string
	// Bitrate is the target bitrate in kbps.
	Bitrate int
}

// Provider searches for and downloads audio through yt-dlp.
type Provider struct {
	config Config
	run    Runner
}

// NewProvider creates a new audio provider. Zero config values fall back to
// yt-dlp on PATH, mp3 and 192 kbps.
func NewProvider(config Config) *Provider {
	if config.YtDlpPath == "" {
		config.YtDlpPath = "yt-dlp"
	}
	if config.Format == "" {
		config.Format = "mp3"
	}
	if config.Bitrate <= 0 {
		config.Bitrate = 192
	}
	return &Provider{config: config, run: execRunner}
}

// Search returns the URL of the top video result for query, or "" when the
// search found nothing.
func (p *Provider) Search(ctx context.Context, query string) (string, error) {
	return p.runYtDlpSearch(ctx, query)
}

// Download fetches and transcodes the audio at url, writing it to
// stem.<format>. It returns the produced path.
func (p *Provider) Download(ctx context.Context, url, stem string) (string, error) {
	outputDir := filepath.Dir(stem)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", &DownloadError{
			Message:  fmt.Sprintf("Failed to create output directory: %s", outputDir),
			Original: err,
		}
	}

	if err := p.runYtDlpDownload(ctx, url, stem); err != nil {
		return "", err
	}

	path := stem + "." + p.config.Format
	if _, err := os.Stat(path); err != nil {
		return "", &DownloadError{
			Message:  fmt.Sprintf("Downloaded file not found at %s", path),
			Original: err,
		}
	}
	return path, nil
}

// Format returns the extension of produced audio files.
func (p *Provider) Format() string {
	return p.config.Format
}
