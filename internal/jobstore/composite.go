package jobstore

import (
	"context"
	"fmt"
	"time"

	"github.com/fiberplan/planning-service/internal/jobstore/memstore"
	"github.com/fiberplan/planning-service/internal/obs"
)

// durable is the subset of pgstore.DB the composite store depends on,
// kept as an interface so tests can substitute a stub without a
// database.
type durable interface {
	EnsureSchema(ctx context.Context) error
	CreateJob(ctx context.Context, jobID string, totalPoints, totalChunks int) error
	UpdateJobStatus(ctx context.Context, jobID string, status Status, setStarted, setFinished bool, errorMessage string) error
	PersistChunkResult(ctx context.Context, jobID string, result ChunkResult) error
	GetJob(ctx context.Context, jobID string) (*Job, bool, error)
	GetChunkResults(ctx context.Context, jobID string) ([]ChunkResult, error)
	ActiveJobCount(ctx context.Context) (int, error)
	MarkIncompleteJobsFailed(ctx context.Context) (int, error)
	Metrics(ctx context.Context) (Metrics, error)
}

// idGenerator produces a new job id; satisfied by uuid.NewString.
type idGenerator func() string

// compositeStore layers memstore.Cache in front of a durable pgstore.DB,
// implementing the Store contract: the cache serves reads and admission
// checks, the durable layer is the system of record hydration falls
// back to on cache miss.
type compositeStore struct {
	cache     *memstore.Cache
	durable   durable
	newID     idGenerator
	emitter   obs.Emitter
	metrics   *obs.Metrics
	chunkSize int
}

// New constructs the composite Store. chunkSize is needed only to
// reconstruct chunk sizing on cache-miss hydration.
func New(cache *memstore.Cache, durableStore durable, newID idGenerator, emitter obs.Emitter, metrics *obs.Metrics, chunkSize int) Store {
	if emitter == nil {
		emitter = obs.NullEmitter{}
	}
	return &compositeStore{
		cache:     cache,
		durable:   durableStore,
		newID:     newID,
		emitter:   emitter,
		metrics:   metrics,
		chunkSize: chunkSize,
	}
}

func (s *compositeStore) EnsureSchema(ctx context.Context) error {
	return s.durable.EnsureSchema(ctx)
}

func (s *compositeStore) CreateJob(ctx context.Context, totalPoints int, chunkSizes []int, maxActive int) (*Job, bool, error) {
	jobID := s.newID()
	job, ok := s.cache.CreateIfCapacity(jobID, totalPoints, chunkSizes, maxActive)
	if !ok {
		return nil, false, nil
	}

	if err := s.durable.CreateJob(ctx, jobID, totalPoints, len(chunkSizes)); err != nil {
		s.cache.PopJob(jobID)
		return nil, false, fmt.Errorf("create_job: %w", err)
	}
	return job, true, nil
}

func (s *compositeStore) MarkSubmissionFailed(ctx context.Context, jobID string, reason string) error {
	s.cache.UpdateJob(jobID, func(j *Job) {
		j.Status = StatusFailed
		j.ErrorMessage = reason
		j.FinishedAt = time.Now()
	})
	return s.durable.UpdateJobStatus(ctx, jobID, StatusFailed, false, true, reason)
}

func (s *compositeStore) TransitionProcessing(ctx context.Context, jobID string) error {
	s.cache.UpdateJob(jobID, func(j *Job) {
		j.Status = StatusProcessing
		j.StartedAt = time.Now()
	})
	return s.durable.UpdateJobStatus(ctx, jobID, StatusProcessing, true, false, "")
}

func (s *compositeStore) AppendChunkResult(ctx context.Context, jobID string, result ChunkResult) error {
	if err := s.durable.PersistChunkResult(ctx, jobID, result); err != nil {
		return fmt.Errorf("append_chunk_result: %w", err)
	}
	s.cache.AppendResult(jobID, result)
	return nil
}

func (s *compositeStore) FinishJob(ctx context.Context, jobID string, failed bool, errorMessage string) error {
	status := StatusCompleted
	if failed {
		status = StatusFailed
	}
	s.cache.UpdateJob(jobID, func(j *Job) {
		j.Status = status
		j.ErrorMessage = errorMessage
		j.FinishedAt = time.Now()
	})
	if err := s.durable.UpdateJobStatus(ctx, jobID, status, false, true, errorMessage); err != nil {
		return fmt.Errorf("finish_job: %w", err)
	}
	s.cache.EnforceMemoryLimit()
	s.drainEvictionMetrics()
	return nil
}

func (s *compositeStore) GetJob(ctx context.Context, jobID string) (*Job, bool, error) {
	if job, ok := s.cache.GetJob(jobID); ok {
		return &job, true, nil
	}
	return s.hydrate(ctx, jobID)
}

// hydrate reconstructs a cache-shaped view from the durable layer: chunk
// sizes are rebuilt from total_points/total_chunks (every chunk equals
// chunkSize except the last, which takes the remainder; total_chunks=1
// is the degenerate single-chunk case) and aggregates are recomputed
// from the persisted chunk rows.
func (s *compositeStore) hydrate(ctx context.Context, jobID string) (*Job, bool, error) {
	job, ok, err := s.durable.GetJob(ctx, jobID)
	if err != nil {
		return nil, false, fmt.Errorf("hydrate: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	job.ChunkSizes = reconstructChunkSizes(job.TotalPoints, job.TotalChunks, s.chunkSize)

	results, err := s.durable.GetChunkResults(ctx, jobID)
	if err != nil {
		return nil, false, fmt.Errorf("hydrate: chunk results: %w", err)
	}
	job.Results = results

	var total, max float64
	for _, r := range results {
		total += r.DurationMs
		if r.DurationMs > max {
			max = r.DurationMs
		}
	}
	if len(results) > 0 {
		job.AvgDurationMs = total / float64(len(results))
	}
	job.MaxDurationMs = max
	job.TotalDurationMs = total

	s.cache.SetJob(*job)
	return job, true, nil
}

func reconstructChunkSizes(totalPoints, totalChunks, chunkSize int) []int {
	if totalChunks <= 1 {
		return []int{totalPoints}
	}
	sizes := make([]int, totalChunks)
	for i := 0; i < totalChunks-1; i++ {
		sizes[i] = chunkSize
	}
	sizes[totalChunks-1] = totalPoints - chunkSize*(totalChunks-1)
	return sizes
}

func (s *compositeStore) PopJob(ctx context.Context, jobID string) error {
	s.cache.PopJob(jobID)
	return nil
}

func (s *compositeStore) CleanupFinished(ctx context.Context) {
	s.cache.CleanupFinished()
	s.drainEvictionMetrics()
}

func (s *compositeStore) ActiveJobCount(ctx context.Context) (int, error) {
	return s.cache.ActiveJobCount(), nil
}

func (s *compositeStore) MarkIncompleteJobsFailed(ctx context.Context) (int, error) {
	return s.durable.MarkIncompleteJobsFailed(ctx)
}

func (s *compositeStore) Metrics(ctx context.Context) (Metrics, error) {
	return s.durable.Metrics(ctx)
}

func (s *compositeStore) drainEvictionMetrics() {
	if s.metrics == nil {
		return
	}
	for reason, count := range s.cache.DrainEvictionCounts() {
		s.metrics.IncCacheEvictions(reason, count)
	}
}
