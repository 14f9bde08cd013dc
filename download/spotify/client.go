package spotify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sv4u/spotigo"

	"github.com/sv4u/playlistdl/download/record"
)

// Config holds configuration for the Spotify client.
type Config struct {
	ClientID     string
	ClientSecret string

	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Client exports playlists through the Spotify Web API using client
// credentials.
type Client struct {
	client      *spotigo.Client
	rateLimiter *RateLimiter
	logger      *log.Logger
}

// NewClient creates a new Spotify client.
func NewClient(config Config, logger *log.Logger) (*Client, error) {
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, &SpotifyError{Message: "client ID and client secret are required"}
	}
	if logger == nil {
		logger = log.Default()
	}

	auth, err := spotigo.NewClientCredentials(config.ClientID, config.ClientSecret)
	if err != nil {
		return nil, &SpotifyError{Message: "failed to create auth", Original: err}
	}
	spotigoClient, err := spotigo.NewClient(auth)
	if err != nil {
		return nil, &SpotifyError{Message: "failed to create spotigo client", Original: err}
	}

	return &Client{
		client:      spotigoClient,
		rateLimiter: NewRateLimiter(config.RateLimitEnabled, config.RateLimitRequests, config.RateLimitWindow),
		logger:      logger,
	}, nil
}

// Playlist is an exported playlist.
type Playlist struct {
	ID      string
	Name    string
	URL     string
	Records []record.TrackRecord
	// Skipped counts entries that could not become records.
	Skipped int
}

// ExportPlaylist fetches the playlist and every page of its tracks and
// converts them to records. Local tracks and tracks missing any record field
// are skipped and logged.
func (c *Client) ExportPlaylist(ctx context.Context, playlistIDOrURL string) (*Playlist, error) {
	playlistID, err := spotigo.GetID(strings.TrimSpace(playlistIDOrURL), "playlist")
	if err != nil || playlistID == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlaylist, playlistIDOrURL)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	data, err := c.client.Playlist(ctx, playlistID, nil)
	if err != nil {
		return nil, c.handleError("failed to get playlist", err)
	}

	playlist := &Playlist{ID: playlistID, Name: data.Name}
	if data.ExternalURLs != nil {
		playlist.URL = data.ExternalURLs.Spotify
	}
	if playlist.Name == "" {
		playlist.Name = playlistID
	}

	var entries []PlaylistEntry

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	page, err := c.client.PlaylistTracks(ctx, playlistID, nil)
	if err != nil {
		return nil, c.handleError("failed to get playlist tracks", err)
	}
	for page != nil {
		for _, item := range page.Items {
			entries = append(entries, entryFromItem(item))
		}
		if page.GetNext() == nil {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during pagination: %w", err)
		}
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err = spotigo.NextGeneric[spotigo.PlaylistTrack](c.client, ctx, page)
		if err != nil {
			return nil, c.handleError("failed to paginate playlist tracks", err)
		}
	}

	playlist.Records = Collect(entries, c.logger)
	playlist.Skipped = len(entries) - len(playlist.Records)
	c.logger.Info("playlist_exported",
		"playlist", playlist.Name,
		"tracks", len(entries),
		"records", len(playlist.Records),
		"skipped", playlist.Skipped)
	return playlist, nil
}

// handleError processes spotigo errors into typed errors.
func (c *Client) handleError(message string, err error) error {
	if isRateLimitError(err) {
		return &RateLimitError{RetryAfter: extractRetryAfter(err), Original: err}
	}
	return &SpotifyError{Message: message, Original: err}
}

// isRateLimitError checks if an error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	if httpErr, ok := err.(interface{ StatusCode() int }); ok {
		return httpErr.StatusCode() == http.StatusTooManyRequests
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func extractRetryAfter(err error) int {
	if httpErr, ok := err.(interface{ RetryAfter() int }); ok {
		if retryAfter := httpErr.RetryAfter(); retryAfter > 0 {
			return retryAfter
		}
	}
	return 1
}
