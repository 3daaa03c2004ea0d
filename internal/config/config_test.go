package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	require.NoError(t, os.Setenv(key, value))
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func TestLoad_RejectsMissingDatabaseURL(t *testing.T) {
	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalidDatabaseURL)
}

func TestLoad_ReadsDatabaseURLFallback(t *testing.T) {
	withEnv(t, "DATABASE_URL", "postgres://localhost/test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, 50000, cfg.MaxBatchCoordinates)
	assert.Equal(t, 1000, cfg.BatchChunkSize)
}

func TestLoad_PrefixedEnvOverridesDefault(t *testing.T) {
	withEnv(t, "DATABASE_URL", "postgres://localhost/test")
	withEnv(t, "PLANNING_MAX_ACTIVE_JOBS", "12")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.MaxActiveJobs)
}

func TestValidate_RejectsNonPositiveTunables(t *testing.T) {
	base := Config{DatabaseURL: "x", MaxBatchCoordinates: 1, BatchChunkSize: 1, MaxActiveJobs: 1, ExecutorMaxWorkers: 1, ChunkExecutorMaxWorkers: 1, ChunkTimeoutSeconds: 1, MaxStoredResultsMemoryMB: 1}

	cfg := base
	cfg.MaxActiveJobs = 0
	assert.ErrorIs(t, cfg.Validate(), ErrMaxActiveJobs)

	cfg = base
	cfg.BatchChunkSize = 0
	assert.ErrorIs(t, cfg.Validate(), ErrChunkSize)

	cfg = base
	cfg.MaxBatchCoordinates = 0
	assert.ErrorIs(t, cfg.Validate(), ErrMaxBatchCoordinates)

	cfg = base
	cfg.MaxStoredResultsMemoryMB = 0
	assert.ErrorIs(t, cfg.Validate(), ErrMaxStoredResultsMB)
}

func TestDurationHelpers(t *testing.T) {
	cfg := Config{
		ChunkTimeoutSeconds:   30,
		RequestTimeoutSeconds: 5,
		MockChunkDelaySeconds: 0.02,
		JobRetentionSeconds:   300,
	}

	assert.Equal(t, 30*time.Second, cfg.ChunkTimeout())
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 20*time.Millisecond, cfg.MockChunkDelay())
	assert.Equal(t, 300*time.Second, cfg.JobRetention())
}
