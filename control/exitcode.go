package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/sv4u/playlistdl/download"
	"github.com/sv4u/playlistdl/download/config"
	"github.com/sv4u/playlistdl/download/spotify"
)

// Process exit codes.
const (
	ExitSuccess     = 0
	ExitConfigError = 1
	ExitNetwork     = 2
	ExitFilesystem  = 3
	ExitInterrupted = 4
	ExitPartial     = 5
)

// PartialError reports a run that finished with skipped or unprocessed
// tracks.
type PartialError struct {
	Summary download.Summary
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%d of %d tracks not downloaded", e.Summary.Skipped+e.Summary.NotRun, e.Summary.Total())
}

// partialErr returns a PartialError if the summary has missing tracks.
func partialErr(s download.Summary) error {
	if s.Skipped > 0 || s.NotRun > 0 {
		return &PartialError{Summary: s}
	}
	return nil
}

// ExitCode maps a command error onto a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		partial *PartialError
		cfgErr  *config.ConfigError
		spErr   *spotify.SpotifyError
		rateErr *spotify.RateLimitError
		pathErr *fs.PathError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ExitInterrupted
	case errors.As(err, &partial):
		return ExitPartial
	case errors.As(err, &cfgErr):
		return ExitConfigError
	case errors.As(err, &spErr), errors.As(err, &rateErr), errors.Is(err, spotify.ErrInvalidPlaylist):
		return ExitNetwork
	case errors.As(err, &pathErr):
		return ExitFilesystem
	}
	return ExitConfigError
}
