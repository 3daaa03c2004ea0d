package chunkproc

import (
	"context"
	"time"
)

// Mock is a delay-only Processor: it sleeps a configured delay to
// simulate work, then reports every point in the chunk as processed.
// It is used by tests that need a deterministic chunk outcome without a
// database; cmd/planningd does not wire it.
type Mock struct {
	// Delay is slept before returning, simulating chunk processing time.
	Delay time.Duration
}

// Process implements Processor.
func (m *Mock) Process(ctx context.Context, chunk []Point, chunkIndex int) (Result, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	return Result{
		ChunkIndex:      chunkIndex,
		ProcessedPoints: len(chunk),
		Status:          StatusOK,
	}, nil
}
