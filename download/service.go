package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sv4u/playlistdl/download/audio"
	"github.com/sv4u/playlistdl/download/batch"
	"github.com/sv4u/playlistdl/download/config"
	"github.com/sv4u/playlistdl/download/metadata"
	"github.com/sv4u/playlistdl/download/record"
	"github.com/sv4u/playlistdl/download/spotify"
)

// ServicePhase represents the current execution phase.
type ServicePhase string

const (
	ServicePhaseIdle      ServicePhase = "idle"
	ServicePhaseExporting ServicePhase = "exporting"
	ServicePhaseExecuting ServicePhase = "executing"
	ServicePhaseCompleted ServicePhase = "completed"
	ServicePhaseError     ServicePhase = "error"
)

// Summary is the merged result of a batch run.
type Summary = batch.Summary[Outcome]

// Exporter produces the records of a playlist.
type Exporter interface {
	ExportPlaylist(ctx context.Context, playlistIDOrURL string) (*spotify.Playlist, error)
}

// Service orchestrates a one-shot playlist download: export the playlist to
// a record file, fan the records out to workers, then clean up.
type Service struct {
	config   *config.Config
	exporter Exporter
	stages   Stages
	store    *record.Store
	logger   *log.Logger
	numCPU   func() int

	mu    sync.RWMutex
	phase ServicePhase
}

// ServiceOptions supplies collaborators. Zero fields are built from config.
type ServiceOptions struct {
	// Exporter is only needed for Export and Download.
	Exporter Exporter
	Stages   *Stages
	Logger   *log.Logger
}

// NewService creates a new download service.
func NewService(cfg *config.Config, opts ServiceOptions) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	format, err := record.ParseFormat(cfg.Download.RecordFormat)
	if err != nil {
		return nil, &config.ConfigError{Message: err.Error()}
	}

	stages := DefaultStages(cfg, logger)
	if opts.Stages != nil {
		stages = *opts.Stages
	}

	return &Service{
		config:   cfg,
		exporter: opts.Exporter,
		stages:   stages,
		store:    record.NewStore(format, logger),
		logger:   logger,
		numCPU:   runtime.NumCPU,
		phase:    ServicePhaseIdle,
	}, nil
}

// DefaultStages wires yt-dlp search and download, HTTP cover art, and ID3v2
// tagging from cfg.
func DefaultStages(cfg *config.Config, logger *log.Logger) Stages {
	d := cfg.Download
	provider := audio.NewProvider(audio.Config{
		YtDlpPath: d.YtDlpPath,
		Format:    d.Format,
		Bitrate:   d.Bitrate,
	})
	matcher := audio.NewMatcher(provider, audio.MatcherConfig{
		MaxAttempts: d.SearchAttempts,
		Backoff:     d.SearchBackoff,
		MaxBackoff:  d.SearchMaxBackoff,
		RateLimit:   d.SearchRateLimit,
	}, logger)
	return Stages{
		Matcher: matcher,
		Audio:   provider,
		Cover:   metadata.NewCoverFetcher(d.ArtTimeout),
		Tagger:  metadata.NewEmbedder(logger, d.TextTags()),
	}
}

// Phase returns the current execution phase.
func (s *Service) Phase() ServicePhase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

func (s *Service) setPhase(p ServicePhase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

// Workers returns the pool size for this run.
func (s *Service) Workers() int {
	d := s.config.Download
	if d.Workers > 0 {
		if d.MaxWorkers > 0 {
			return min(d.Workers, d.MaxWorkers)
		}
		return d.Workers
	}
	return batch.WorkerCount(s.numCPU(), d.Reserve(), d.MaxWorkers)
}

// RecordPath returns <output_root>/<name>/<name>.txt for a playlist name.
func (s *Service) RecordPath(playlistName string) string {
	name := SanitizeFilename(playlistName)
	return filepath.Join(s.config.Download.OutputRoot, name, name+".txt")
}

// Export writes the playlist's record file and returns its path.
func (s *Service) Export(ctx context.Context, playlistIDOrURL string) (string, *spotify.Playlist, error) {
	if s.exporter == nil {
		return "", nil, errors.New("no playlist exporter configured")
	}
	s.setPhase(ServicePhaseExporting)

	playlist, err := s.exporter.ExportPlaylist(ctx, playlistIDOrURL)
	if err != nil {
		s.setPhase(ServicePhaseError)
		return "", nil, err
	}

	path := s.RecordPath(playlist.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		s.setPhase(ServicePhaseError)
		return "", nil, fmt.Errorf("failed to create playlist directory: %w", err)
	}
	written, err := s.store.Write(path, playlist.Records)
	if err != nil {
		s.setPhase(ServicePhaseError)
		return "", nil, err
	}

	s.logger.Info("record_file_written", "path", path, "records", written, "format", s.store.Format())
	return path, playlist, nil
}

// Run downloads every record in recordPath into the file's directory. The
// record file is removed afterwards unless keep_record_file is set or the
// run was interrupted.
func (s *Service) Run(ctx context.Context, recordPath string) (Summary, error) {
	s.setPhase(ServicePhaseExecuting)

	records, err := s.store.Collect(recordPath)
	if err != nil {
		s.setPhase(ServicePhaseError)
		return Summary{}, err
	}

	outputDir := filepath.Dir(recordPath)
	downloader := NewDownloader(outputDir, s.stages, s.logger)
	executor := batch.NewExecutor[Outcome](downloader, batch.Options{
		Workers:    s.Workers(),
		ChunkFiles: s.config.Download.ChunkFiles,
		WorkDir:    outputDir,
		Store:      s.store,
		Logger:     s.logger,
	})

	start := time.Now()
	s.logger.Info("batch_started", "records", len(records), "workers", min(s.Workers(), len(records)), "output", outputDir)
	summary := executor.Run(ctx, records)
	s.logger.Info("batch_finished",
		"done", summary.Done,
		"degraded", summary.Degraded,
		"skipped", summary.Skipped,
		"not_run", summary.NotRun,
		"elapsed", time.Since(start).Round(time.Millisecond))

	if err := ctx.Err(); err != nil {
		s.setPhase(ServicePhaseError)
		return summary, err
	}

	if !s.config.Download.KeepRecordFile {
		if err := os.Remove(recordPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("record_file_remove_failed", "path", recordPath, "error", err)
		}
	}
	s.setPhase(ServicePhaseCompleted)
	return summary, nil
}

// Download exports the playlist and runs the batch over it.
func (s *Service) Download(ctx context.Context, playlistIDOrURL string) (Summary, error) {
	path, _, err := s.Export(ctx, playlistIDOrURL)
	if err != nil {
		return Summary{}, err
	}
	return s.Run(ctx, path)
}
