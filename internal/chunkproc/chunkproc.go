// Package chunkproc defines the chunk-processing contract the batch
// orchestrator dispatches to: an opaque function turning one chunk of
// coordinates into a ChunkResult. The orchestrator never inspects how a
// Processor computes its result, only its timing and terminal status.
package chunkproc

import "context"

// Point is one coordinate submitted in a batch, carrying the caller's
// external id and its position in the original request.
type Point struct {
	ID       int
	Lat      float64
	Lon      float64
	InputIdx int
}

// Status is a ChunkResult's terminal outcome.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Result is what a Processor returns for one chunk. The orchestrator's
// normalizeResult step always sets ChunkIndex, and fills Status and
// DurationMs when a Processor leaves them zero; ProcessedPoints is filled
// with the chunk length when zero unless Status is failed. Implementations
// only need to set what they can observe.
type Result struct {
	ChunkIndex      int
	ProcessedPoints int
	Status          Status
	ErrorMessage    string
	DurationMs      float64

	// FranchiseHistogram and FiberNodeHistogram count routed points by
	// resolved franchise/fiber-node id. Populated only by processors
	// that route individual points (RoutingProcessor); nil otherwise.
	FranchiseHistogram map[int]int
	FiberNodeHistogram map[int]int
}

// Processor turns one chunk into a Result. Implementations must be pure
// with respect to the job store: they never read or write job state,
// only the chunk they were given. They must also be safe for concurrent
// use across chunks from the same or different jobs.
type Processor interface {
	Process(ctx context.Context, chunk []Point, chunkIndex int) (Result, error)
}
