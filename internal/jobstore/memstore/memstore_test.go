package memstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiberplan/planning-service/internal/jobstore"
)

func TestCreateIfCapacity_AdmitsUntilMax(t *testing.T) {
	c := New(time.Minute, 0)

	for i := 0; i < 3; i++ {
		job, ok := c.CreateIfCapacity("job-"+string(rune('a'+i)), 10, []int{10}, 3)
		require.True(t, ok)
		assert.Equal(t, jobstore.StatusQueued, job.Status)
	}

	_, ok := c.CreateIfCapacity("job-overflow", 10, []int{10}, 3)
	assert.False(t, ok)
}

func TestAppendResult_RollingAggregates(t *testing.T) {
	c := New(time.Minute, 0)
	_, ok := c.CreateIfCapacity("job-1", 2, []int{1, 1}, 5)
	require.True(t, ok)

	require.True(t, c.AppendResult("job-1", jobstore.ChunkResult{ChunkIndex: 0, ProcessedPoints: 1, Status: jobstore.ChunkOK, DurationMs: 10}))
	require.True(t, c.AppendResult("job-1", jobstore.ChunkResult{ChunkIndex: 1, ProcessedPoints: 1, Status: jobstore.ChunkFailed, DurationMs: 30}))

	job, ok := c.GetJob("job-1")
	require.True(t, ok)
	assert.Equal(t, 2, job.ProcessedChunks)
	assert.Equal(t, 1, job.FailedChunks)
	assert.Equal(t, 20.0, job.AvgDurationMs)
	assert.Equal(t, 30.0, job.MaxDurationMs)
}

func TestCleanupFinished_EvictsByTTL(t *testing.T) {
	c := New(time.Millisecond, 0)
	job, ok := c.CreateIfCapacity("job-1", 1, []int{1}, 5)
	require.True(t, ok)
	job.Status = jobstore.StatusCompleted
	job.FinishedAt = time.Now().Add(-time.Hour)
	c.SetJob(*job)

	c.CleanupFinished()

	_, ok = c.GetJob("job-1")
	assert.False(t, ok)
}

func TestPopJob_RemovesEntry(t *testing.T) {
	c := New(time.Minute, 0)
	_, ok := c.CreateIfCapacity("job-1", 1, []int{1}, 5)
	require.True(t, ok)

	job, ok := c.PopJob("job-1")
	require.True(t, ok)
	assert.Equal(t, "job-1", job.JobID)

	_, ok = c.GetJob("job-1")
	assert.False(t, ok)
}
