package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultArtTimeout bounds a single cover download when no client is given.
const DefaultArtTimeout = 10 * time.Second

// HTTPClient is the subset of *http.Client used to fetch cover art.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetchCover downloads the image at url to destPath. On any failure the
// partially written file is removed and an *ArtError is returned.
func FetchCover(ctx context.Context, client HTTPClient, url, destPath string) (err error) {
	if client == nil {
		client = &http.Client{Timeout: DefaultArtTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &ArtError{URL: url, Message: "failed to create request", Original: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return &ArtError{URL: url, Message: "failed to download cover art", Original: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ArtError{URL: url, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return &ArtError{URL: url, Message: "failed to create output directory", Original: err}
	}
	f, err := os.Create(destPath)
	if err != nil {
		return &ArtError{URL: url, Message: "failed to create cover file", Original: err}
	}
	defer func() {
		if err != nil {
			_ = os.Remove(destPath)
		}
	}()

	if _, err = io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		return &ArtError{URL: url, Message: "failed to write cover art", Original: err}
	}
	if err = f.Close(); err != nil {
		return &ArtError{URL: url, Message: "failed to write cover art", Original: err}
	}
	return nil
}

// CoverFetcher downloads cover art with a fixed HTTP client.
type CoverFetcher struct {
	Client HTTPClient
}

// NewCoverFetcher returns a CoverFetcher whose requests time out after
// timeout. A non-positive timeout uses DefaultArtTimeout.
func NewCoverFetcher(timeout time.Duration) *CoverFetcher {
	if timeout <= 0 {
		timeout = DefaultArtTimeout
	}
	return &CoverFetcher{Client: &http.Client{Timeout: timeout}}
}

// FetchCover downloads url to destPath; see the package-level FetchCover.
func (f *CoverFetcher) FetchCover(ctx context.Context, url, destPath string) error {
	return FetchCover(ctx, f.Client, url, destPath)
}
