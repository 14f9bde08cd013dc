package audio

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// DefaultMaxAttempts is the number of searches made before giving up on a
// track.
const DefaultMaxAttempts = 10

// Searcher returns the top result URL for a query. An empty URL with a nil
// error means the query matched nothing.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// MatcherConfig controls retry pacing.
type MatcherConfig struct {
	MaxAttempts int
	// Backoff is the delay after the first failed attempt. It doubles after
	// every further failure up to MaxBackoff. Zero retries immediately.
	Backoff    time.Duration
	MaxBackoff time.Duration
	// RateLimit caps search calls per second across all callers sharing the
	// Matcher. Zero disables limiting.
	RateLimit float64
}

// Matcher finds an audio source for a track with bounded retries.
type Matcher struct {
	searcher Searcher
	config   MatcherConfig
	limiter  *rate.Limiter
	logger   *log.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewMatcher creates a Matcher. It is safe for concurrent use when searcher
// is.
func NewMatcher(searcher Searcher, config MatcherConfig, logger *log.Logger) *Matcher {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = log.Default()
	}
	m := &Matcher{
		searcher: searcher,
		config:   config,
		logger:   logger,
		sleep:    sleepContext,
	}
	if config.RateLimit > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}
	return m
}

// Query builds the search string for a track.
func Query(artist, name string) string {
	return fmt.Sprintf("%s - %s", artist, name)
}

// Match searches for "<artist> - <name>" until a result comes back or the
// attempts run out, in which case it returns ErrNoMatch. Backend errors count
// as a failed attempt. Only context cancellation ends the loop early.
func (m *Matcher) Match(ctx context.Context, artist, name string) (string, error) {
	query := Query(artist, name)

	for attempt := 1; attempt <= m.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if m.limiter != nil {
			if err := m.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		url, err := m.searcher.Search(ctx, query)
		if err == nil && url != "" {
			return url, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		remaining := m.config.MaxAttempts - attempt
		if err != nil {
			m.logger.Warn("search_failed", "query", query, "attempts_remaining", remaining, "error", err)
		} else {
			m.logger.Info("search_empty", "query", query, "attempts_remaining", remaining)
		}

		if remaining > 0 {
			if d := m.delay(attempt); d > 0 {
				if err := m.sleep(ctx, d); err != nil {
					return "", err
				}
			}
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNoMatch, query)
}

// delay returns the wait after the given failed attempt (1-based).
func (m *Matcher) delay(attempt int) time.Duration {
	if m.config.Backoff <= 0 {
		return 0
	}
	d := m.config.Backoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if m.config.MaxBackoff > 0 && d >= m.config.MaxBackoff {
			return m.config.MaxBackoff
		}
	}
	if m.config.MaxBackoff > 0 && d > m.config.MaxBackoff {
		return m.config.MaxBackoff
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
