package jobstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiberplan/planning-service/internal/jobstore/memstore"
)

type stubDurable struct {
	jobs         map[string]*Job
	chunkResults map[string][]ChunkResult
	createErr    error
}

func newStubDurable() *stubDurable {
	return &stubDurable{jobs: make(map[string]*Job), chunkResults: make(map[string][]ChunkResult)}
}

func (s *stubDurable) EnsureSchema(ctx context.Context) error { return nil }

func (s *stubDurable) CreateJob(ctx context.Context, jobID string, totalPoints, totalChunks int) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.jobs[jobID] = &Job{JobID: jobID, TotalPoints: totalPoints, TotalChunks: totalChunks, Status: StatusQueued, CreatedAt: time.Now()}
	return nil
}

func (s *stubDurable) UpdateJobStatus(ctx context.Context, jobID string, status Status, setStarted, setFinished bool, errorMessage string) error {
	j, ok := s.jobs[jobID]
	if !ok {
		return errors.New("not found")
	}
	j.Status = status
	j.ErrorMessage = errorMessage
	if setStarted {
		j.StartedAt = time.Now()
	}
	if setFinished {
		j.FinishedAt = time.Now()
	}
	return nil
}

func (s *stubDurable) PersistChunkResult(ctx context.Context, jobID string, result ChunkResult) error {
	s.chunkResults[jobID] = append(s.chunkResults[jobID], result)
	j := s.jobs[jobID]
	j.ProcessedChunks++
	if result.Status == ChunkFailed {
		j.FailedChunks++
	}
	return nil
}

func (s *stubDurable) GetJob(ctx context.Context, jobID string) (*Job, bool, error) {
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, false, nil
	}
	cp := *j
	return &cp, true, nil
}

func (s *stubDurable) GetChunkResults(ctx context.Context, jobID string) ([]ChunkResult, error) {
	return s.chunkResults[jobID], nil
}

func (s *stubDurable) ActiveJobCount(ctx context.Context) (int, error) { return 0, nil }

func (s *stubDurable) MarkIncompleteJobsFailed(ctx context.Context) (int, error) { return 0, nil }

func (s *stubDurable) Metrics(ctx context.Context) (Metrics, error) { return Metrics{}, nil }

func sequentialIDs(prefix string) idGenerator {
	n := 0
	return func() string {
		n++
		return prefix + string(rune('0'+n))
	}
}

func TestCompositeStore_CreateJob_CompensatesOnDurableFailure(t *testing.T) {
	durable := newStubDurable()
	durable.createErr = errors.New("db down")
	store := New(memstore.New(time.Minute, 0), durable, sequentialIDs("job-"), nil, nil, 1000)

	job, ok, err := store.CreateJob(context.Background(), 10, []int{10}, 5)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Nil(t, job)

	active, _ := store.ActiveJobCount(context.Background())
	assert.Equal(t, 0, active)
}

func TestCompositeStore_Hydrate_OnCacheMiss(t *testing.T) {
	durable := newStubDurable()
	cache := memstore.New(time.Minute, 0)
	store := New(cache, durable, sequentialIDs("job-"), nil, nil, 1000)

	ctx := context.Background()
	job, ok, err := store.CreateJob(ctx, 2500, []int{1000, 1000, 500}, 5)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.AppendChunkResult(ctx, job.JobID, ChunkResult{ChunkIndex: 0, ProcessedPoints: 1000, Status: ChunkOK, DurationMs: 5}))
	require.NoError(t, store.AppendChunkResult(ctx, job.JobID, ChunkResult{ChunkIndex: 1, ProcessedPoints: 1000, Status: ChunkOK, DurationMs: 7}))
	require.NoError(t, store.AppendChunkResult(ctx, job.JobID, ChunkResult{ChunkIndex: 2, ProcessedPoints: 500, Status: ChunkOK, DurationMs: 3}))

	require.NoError(t, store.PopJob(ctx, job.JobID))

	hydrated, ok, err := store.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int{1000, 1000, 500}, hydrated.ChunkSizes)
	assert.Len(t, hydrated.Results, 3)
}

func TestReconstructChunkSizes_SingleChunk(t *testing.T) {
	assert.Equal(t, []int{7}, reconstructChunkSizes(7, 1, 1000))
}

func TestReconstructChunkSizes_Multi(t *testing.T) {
	assert.Equal(t, []int{1000, 1000, 500}, reconstructChunkSizes(2500, 3, 1000))
}
