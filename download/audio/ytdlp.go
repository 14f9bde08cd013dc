package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/goccy/go-json"
)

// youtubeBase resolves search results that come back as a path suffix.
const youtubeBase = "https://www.youtube.com"

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ytDlpSearchResult represents the result from yt-dlp search.
type ytDlpSearchResult struct {
	URL        string              `json:"url,omitempty"`
	WebpageURL string              `json:"webpage_url,omitempty"`
	ID         string              `json:"id,omitempty"`
	Entries    []ytDlpSearchResult `json:"entries,omitempty"`
}

func (r ytDlpSearchResult) link() string {
	switch {
	case r.WebpageURL != "":
		return r.WebpageURL
	case r.URL != "":
		return r.URL
	case r.ID != "":
		return "/watch?v=" + r.ID
	}
	for _, e := range r.Entries {
		if l := e.link(); l != "" {
			return l
		}
	}
	return ""
}

// resolveURL turns a relative result into an absolute YouTube URL.
func resolveURL(link string) string {
	if strings.HasPrefix(link, "/") {
		return youtubeBase + link
	}
	return link
}

// runYtDlpSearch asks yt-dlp for the single top result of query. An empty
// string with a nil error means the search returned nothing.
func (p *Provider) runYtDlpSearch(ctx context.Context, query string) (string, error) {
	args := []string{
		"--quiet",
		"--no-warnings",
		"--flat-playlist",
		"--default-search", "extract",
		"--dump-json",
		"--",
		"ytsearch1:" + query,
	}

	output, err := p.run(ctx, p.config.YtDlpPath, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if isRateLimited(output) {
			return "", &SearchError{Message: "Rate limited by provider", Original: err}
		}
		return "", &SearchError{
			Message:  fmt.Sprintf("yt-dlp search failed (output: %s)", tail(output)),
			Original: err,
		}
	}

	line := firstLine(output)
	if len(line) == 0 {
		return "", nil
	}

	var result ytDlpSearchResult
	if err := json.Unmarshal(line, &result); err != nil {
		return "", &SearchError{Message: "Failed to parse yt-dlp output", Original: err}
	}
	link := result.link()
	if link == "" {
		return "", nil
	}
	return resolveURL(link), nil
}

// runYtDlpDownload extracts audio from url into stem.<format>.
func (p *Provider) runYtDlpDownload(ctx context.Context, url, stem string) error {
	args := []string{
		"--quiet",
		"--no-warnings",
		"--no-playlist",
		"--encoding", "UTF-8",
		"--format", "bestaudio/best",
		"--extract-audio",
		"--audio-format", p.config.Format,
		"--audio-quality", fmt.Sprintf("%dK", p.config.Bitrate),
		"--output", stem + ".%(ext)s",
		"--",
		url,
	}

	output, err := p.run(ctx, p.config.YtDlpPath, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &DownloadError{Message: "download interrupted", Original: ctxErr}
		}
		if isRateLimited(output) {
			return &DownloadError{Message: "Rate limited by provider", Original: err}
		}
		return &DownloadError{
			Message:  fmt.Sprintf("yt-dlp download failed (output: %s)", tail(output)),
			Original: err,
		}
	}
	return nil
}

func isRateLimited(output []byte) bool {
	s := string(output)
	return strings.Contains(s, "HTTP Error 429") || strings.Contains(s, "rate limit")
}

func firstLine(output []byte) []byte {
	output = bytes.TrimSpace(output)
	if i := bytes.IndexByte(output, '\n'); i >= 0 {
		output = output[:i]
	}
	return bytes.TrimSpace(output)
}

// tail keeps error output short enough for a single log line.
func tail(output []byte) string {
	const max = 512
	s := strings.TrimSpace(string(output))
	if len(s) > max {
		s = "..." + s[len(s)-max:]
	}
	return s
}
