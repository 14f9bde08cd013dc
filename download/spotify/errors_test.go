package spotify

import (
	"errors"
	"testing"
)

func TestRateLimitError(t *testing.T) {
	original := errors.New("HTTP 429")
	err := &RateLimitError{RetryAfter: 10, Original: original}

	if err.Error() == "" {
		t.Error("RateLimitError.Error() should return non-empty string")
	}
	if !errors.Is(err, original) {
		t.Error("RateLimitError should unwrap to the original error")
	}
}

func TestSpotifyError(t *testing.T) {
	original := errors.New("network error")
	err := &SpotifyError{Message: "failed to get playlist", Original: original}

	if err.Error() == "" {
		t.Error("SpotifyError.Error() should return non-empty string")
	}
	if !errors.Is(err, original) {
		t.Error("SpotifyError should unwrap to the original error")
	}
}

func TestClient_HandleError(t *testing.T) {
	c := &Client{}

	var rateErr *RateLimitError
	if err := c.handleError("x", errors.New("HTTP 429 Too Many Requests")); !errors.As(err, &rateErr) {
		t.Errorf("expected RateLimitError, got %T", err)
	} else if rateErr.RetryAfter != 1 {
		t.Errorf("RetryAfter = %d, want default 1", rateErr.RetryAfter)
	}

	var spErr *SpotifyError
	if err := c.handleError("failed", errors.New("connection refused")); !errors.As(err, &spErr) {
		t.Errorf("expected SpotifyError, got %T", err)
	}
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	var spErr *SpotifyError
	if _, err := NewClient(Config{}, nil); !errors.As(err, &spErr) {
		t.Errorf("expected SpotifyError for missing credentials, got %v", err)
	}
}
