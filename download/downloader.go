package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"golang.org/x/text/unicode/norm"

	"github.com/sv4u/playlistdl/download/audio"
	"github.com/sv4u/playlistdl/download/batch"
	"github.com/sv4u/playlistdl/download/record"
)

// State is the terminal state of a track.
type State string

const (
	StateSkipped State = "skipped"
	StateDone    State = "done"
)

// Reason explains a skipped track.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonNoMatch     Reason = "no_match"
	ReasonAudioFailed Reason = "audio_failed"
	ReasonCancelled   Reason = "cancelled"
)

// Outcome is the result of running one track through the pipeline.
type Outcome struct {
	Record record.TrackRecord
	State  State
	Reason Reason
	// Degraded marks a DONE track whose audio exists without embedded art.
	Degraded     bool
	ArtifactPath string
	ArtErr       error
	TagErr       error
	Err          error
}

// Status maps the outcome onto the batch summary buckets.
func (o Outcome) Status() batch.Status {
	switch {
	case o.State == StateSkipped:
		return batch.StatusSkipped
	case o.Degraded:
		return batch.StatusDegraded
	}
	return batch.StatusDone
}

// Matcher finds an audio source URL for a track.
type Matcher interface {
	Match(ctx context.Context, artist, name string) (string, error)
}

// AudioFetcher downloads audio from a source URL to stem.<ext> and returns
// the produced path.
type AudioFetcher interface {
	Download(ctx context.Context, url, stem string) (string, error)
}

// CoverFetcher downloads cover art to a local file.
type CoverFetcher interface {
	FetchCover(ctx context.Context, url, destPath string) error
}

// Tagger embeds the art file into the audio file and removes the art file.
type Tagger interface {
	Tag(ctx context.Context, audioPath, artPath string, rec record.TrackRecord) error
}

// Stages are the external steps a track goes through.
type Stages struct {
	Matcher Matcher
	Audio   AudioFetcher
	Cover   CoverFetcher
	Tagger  Tagger
}

// Downloader runs the per-track pipeline: match, fetch art, fetch audio,
// tag. Every failure stays inside the track's Outcome.
type Downloader struct {
	stages    Stages
	outputDir string
	logger    *log.Logger

	// stemLocks serializes tracks that resolve to the same output file.
	stemLocks sync.Map
}

// NewDownloader creates a Downloader writing artifacts into outputDir.
func NewDownloader(outputDir string, stages Stages, logger *log.Logger) *Downloader {
	if logger == nil {
		logger = log.Default()
	}
	return &Downloader{stages: stages, outputDir: outputDir, logger: logger}
}

// OutputStem returns the path, without extension, that rec's files use.
func (d *Downloader) OutputStem(rec record.TrackRecord) string {
	return filepath.Join(d.outputDir, SanitizeFilename(rec.Name))
}

// ProcessTrack runs rec through the pipeline. It never returns an error and
// recovers panics raised by any stage.
func (d *Downloader) ProcessTrack(ctx context.Context, rec record.TrackRecord) (out Outcome) {
	out = Outcome{Record: rec}
	logger := d.logger.With("track", rec.Name, "artist", rec.Artist)

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("panic processing track: %v", r)
			logger.Error("track_panic", "error", out.Err, "stack", string(debug.Stack()))
			if out.ArtifactPath != "" {
				out.State = StateDone
				out.Degraded = true
			} else {
				out.State = StateSkipped
				out.Reason = ReasonAudioFailed
			}
		}
	}()

	stem := d.OutputStem(rec)
	unlock := d.lockStem(stem)
	defer unlock()

	logger.Debug("track_matching")
	url, err := d.stages.Matcher.Match(ctx, rec.Artist, rec.Name)
	if err != nil {
		out.State = StateSkipped
		out.Err = err
		if errors.Is(err, audio.ErrNoMatch) {
			out.Reason = ReasonNoMatch
			logger.Warn("track_skipped", "reason", ReasonNoMatch)
		} else {
			out.Reason = ReasonCancelled
			logger.Warn("track_skipped", "reason", ReasonCancelled, "error", err)
		}
		return out
	}

	artPath := stem + ".jpg"
	logger.Debug("track_fetching_art", "url", rec.ArtURL)
	if err := d.stages.Cover.FetchCover(ctx, rec.ArtURL, artPath); err != nil {
		out.ArtErr = err
		logger.Warn("art_download_failed", "url", rec.ArtURL, "error", err)
	}

	logger.Debug("track_fetching_audio", "source", url)
	audioPath, err := d.stages.Audio.Download(ctx, url, stem)
	if err != nil {
		out.State = StateSkipped
		out.Reason = ReasonAudioFailed
		if ctx.Err() != nil {
			out.Reason = ReasonCancelled
		}
		out.Err = err
		logger.Error("track_skipped", "reason", out.Reason, "source", url, "error", err)
		if out.ArtErr == nil {
			removeQuietly(logger, artPath)
		}
		return out
	}
	out.ArtifactPath = audioPath

	if out.ArtErr != nil {
		out.State = StateDone
		out.Degraded = true
		logger.Warn("track_done", "path", audioPath, "degraded", true, "reason", "no_art")
		return out
	}

	logger.Debug("track_tagging", "path", audioPath)
	if err := d.stages.Tagger.Tag(ctx, audioPath, artPath, rec); err != nil {
		out.TagErr = err
		out.Degraded = true
		logger.Warn("tag_embed_failed", "path", audioPath, "error", err)
	}

	out.State = StateDone
	logger.Info("track_done", "path", audioPath, "degraded", out.Degraded)
	return out
}

func (d *Downloader) lockStem(stem string) func() {
	v, _ := d.stemLocks.LoadOrStore(stem, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func removeQuietly(logger *log.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Debug("remove_failed", "path", path, "error", err)
	}
}

// maxFilenameBytes leaves room for an extension within the usual 255-byte
// filename limit.
const maxFilenameBytes = 240

// SanitizeFilename makes name safe to use as a single path element. It NFC
// normalizes the name, replaces path separators, reserved and control
// characters with '_', removes ".." sequences and leading or trailing dots
// and spaces, and truncates on a rune boundary.
func SanitizeFilename(name string) string {
	name = norm.NFC.String(name)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r), unicode.IsControl(r), r == utf8.RuneError:
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	sanitized := strings.ReplaceAll(b.String(), "..", "_")
	sanitized = strings.Trim(sanitized, ". ")

	if len(sanitized) > maxFilenameBytes {
		cut := maxFilenameBytes
		for cut > 0 && !utf8.RuneStart(sanitized[cut]) {
			cut--
		}
		sanitized = strings.TrimRight(sanitized[:cut], ". ")
	}
	if sanitized == "" {
		return "_"
	}
	return sanitized
}
