package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/sv4u/playlistdl/download/record"
)

// Status classifies the end state of one processed track.
type Status int

const (
	StatusDone Status = iota
	StatusDegraded
	StatusSkipped
)

// Result is the outcome of processing one track.
type Result interface {
	Status() Status
}

// Processor handles a single track. It must not panic and must report every
// failure through its result.
type Processor[R Result] interface {
	ProcessTrack(ctx context.Context, rec record.TrackRecord) R
}

// Summary aggregates results after every worker has finished.
type Summary[R Result] struct {
	Workers  int
	Done     int
	Degraded int
	Skipped  int
	// NotRun counts records never started because the context was cancelled.
	NotRun int
	// Results holds each chunk's results in processing order.
	Results [][]R
}

// Total is the number of records that reached a terminal state.
func (s Summary[R]) Total() int {
	return s.Done + s.Degraded + s.Skipped
}

// Options configures an Executor.
type Options struct {
	Workers int
	// ChunkFiles makes each worker round-trip its chunk through
	// <WorkDir>/.chunk-<index>.txt before processing it.
	ChunkFiles bool
	WorkDir    string
	Store      *record.Store
	Logger     *log.Logger
}

// Executor runs a Processor over records with a fixed pool of goroutines,
// one per chunk.
type Executor[R Result] struct {
	processor Processor[R]
	opts      Options
	logger    *log.Logger
}

// NewExecutor creates a new executor. Fewer than one worker means one.
func NewExecutor[R Result](processor Processor[R], opts Options) *Executor[R] {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Store == nil {
		opts.Store = record.NewStore(record.FormatCSV, opts.Logger)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Executor[R]{processor: processor, opts: opts, logger: logger}
}

// Run partitions records and processes every chunk concurrently, returning
// once all workers are done. The worker count is clamped to len(records) so
// no worker starts with an empty chunk. Cancelling ctx stops each worker
// before its next track.
func (e *Executor[R]) Run(ctx context.Context, records []record.TrackRecord) Summary[R] {
	workers := min(e.opts.Workers, len(records))
	if workers < 1 {
		return Summary[R]{}
	}

	// workers >= 1 here, so Partition cannot fail.
	chunks, _ := Partition(records, workers)

	results := make([][]R, len(chunks))
	var g errgroup.Group
	for i, chunk := range chunks {
		g.Go(func() error {
			results[i] = e.runChunk(ctx, i, chunk)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary[R]{Workers: workers, Results: results}
	for i, rs := range results {
		summary.NotRun += len(chunks[i]) - len(rs)
		for _, r := range rs {
			switch r.Status() {
			case StatusDone:
				summary.Done++
			case StatusDegraded:
				summary.Degraded++
			case StatusSkipped:
				summary.Skipped++
			}
		}
	}
	return summary
}

func (e *Executor[R]) runChunk(ctx context.Context, index int, chunk []record.TrackRecord) []R {
	logger := e.logger.With("worker", index)
	logger.Info("worker_started", "tracks", len(chunk))

	results := make([]R, 0, len(chunk))
	process := func(rec record.TrackRecord) bool {
		if ctx.Err() != nil {
			return false
		}
		results = append(results, e.processor.ProcessTrack(ctx, rec))
		return true
	}

	done := 0
	if e.opts.ChunkFiles {
		done = e.runChunkFile(ctx, index, chunk, logger, process)
	}
	for _, rec := range chunk[done:] {
		if !process(rec) {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		logger.Warn("worker_interrupted", "processed", len(results), "remaining", len(chunk)-len(results))
	} else {
		logger.Info("worker_finished", "processed", len(results))
	}
	return results
}

// ChunkFileName names a worker's chunk file. The dot prefix keeps it apart
// from record files, which are named after sanitized playlist names and
// never start with a dot.
func ChunkFileName(index int) string {
	return fmt.Sprintf(".chunk-%d.txt", index)
}

// runChunkFile writes the chunk to its own record file and processes it by
// reading the file back. It returns how many records of chunk it consumed;
// on any file error the caller continues from there with the in-memory
// slice.
func (e *Executor[R]) runChunkFile(ctx context.Context, index int, chunk []record.TrackRecord, logger *log.Logger, process func(record.TrackRecord) bool) int {
	path := filepath.Join(e.opts.WorkDir, ChunkFileName(index))
	written, err := e.opts.Store.Write(path, chunk)
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("chunk_file_remove_failed", "path", path, "error", err)
		}
	}()
	if err != nil {
		logger.Warn("chunk_file_write_failed", "path", path, "error", err)
		return 0
	}
	if written != len(chunk) {
		// Records that the store refused would be lost; use the slice.
		logger.Warn("chunk_file_incomplete", "path", path, "written", written, "tracks", len(chunk))
		return 0
	}

	consumed := 0
	for rec, err := range e.opts.Store.ReadAll(path) {
		if err != nil {
			logger.Warn("chunk_file_read_failed", "path", path, "error", err)
			return consumed
		}
		if !process(rec) {
			// Cancelled; the caller's loop stops immediately too.
			return consumed
		}
		consumed++
	}
	return consumed
}
