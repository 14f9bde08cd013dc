// Package batch splits a playlist's records across a fixed set of workers
// and runs them concurrently.
package batch

import (
	"errors"
	"fmt"
)

// ErrInvalidWorkerCount is returned by Partition for fewer than one worker.
var ErrInvalidWorkerCount = errors.New("worker count must be at least 1")

// Partition splits items into exactly workers contiguous chunks. Every chunk
// but the last holds len(items)/workers items; the last also takes the
// remainder. Chunks share the backing array of items and must be treated as
// read-only.
func Partition[T any](items []T, workers int) ([][]T, error) {
	if workers < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkerCount, workers)
	}

	base := len(items) / workers
	chunks := make([][]T, workers)
	for i := 0; i < workers-1; i++ {
		chunks[i] = items[i*base : (i+1)*base : (i+1)*base]
	}
	chunks[workers-1] = items[(workers-1)*base : len(items) : len(items)]
	return chunks, nil
}

// WorkerCount derives the pool size from the CPU count. It reserves buffer
// cores, never goes below one, and is capped by max when max is positive.
func WorkerCount(cpus, buffer, max int) int {
	native := cpus - buffer
	if native < 1 {
		native = 1
	}
	if max <= 0 {
		return native
	}
	return min(max, native)
}
