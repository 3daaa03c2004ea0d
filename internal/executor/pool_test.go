package executor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobPool_Submit_RunsTask(t *testing.T) {
	pool := NewJobPool(2, 4)
	defer pool.Shutdown(context.Background())

	var ran atomic.Bool
	done := make(chan struct{})
	err := pool.Submit(func(ctx context.Context) {
		ran.Store(true)
		close(done)
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
	assert.True(t, ran.Load())
}

func TestJobPool_Submit_SaturatedQueue(t *testing.T) {
	pool := NewJobPool(1, 1)
	defer pool.Shutdown(context.Background())

	block := make(chan struct{})
	require.NoError(t, pool.Submit(func(ctx context.Context) { <-block }))
	require.NoError(t, pool.Submit(func(ctx context.Context) {}))

	err := pool.Submit(func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrPoolSaturated)
	close(block)
}

func TestJobPool_Shutdown_DrainsInFlight(t *testing.T) {
	pool := NewJobPool(1, 1)
	var completed atomic.Bool
	require.NoError(t, pool.Submit(func(ctx context.Context) {
		time.Sleep(10 * time.Millisecond)
		completed.Store(true)
	}))

	err := pool.Shutdown(context.Background())
	require.NoError(t, err)
	assert.True(t, completed.Load())
}

func TestChunkPool_Run_CompletesBeforeTimeout(t *testing.T) {
	pool := NewChunkPool(2)
	result, err, timedOut := Run(context.Background(), pool, time.Second, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.False(t, timedOut)
	assert.Equal(t, 42, result)
}

func TestChunkPool_Run_TimesOut(t *testing.T) {
	pool := NewChunkPool(2)
	_, err, timedOut := Run(context.Background(), pool, 10*time.Millisecond, func(ctx context.Context) (int, error) {
		time.Sleep(time.Second)
		return 1, nil
	})
	assert.True(t, timedOut)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChunkPool_Run_BoundsConcurrency(t *testing.T) {
	pool := NewChunkPool(1)
	var inFlight atomic.Int32
	var maxInFlight atomic.Int32

	run := func() {
		Run(context.Background(), pool, time.Second, func(ctx context.Context) (int, error) {
			n := inFlight.Add(1)
			if n > maxInFlight.Load() {
				maxInFlight.Store(n)
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			return 0, nil
		})
	}

	done := make(chan struct{}, 2)
	go func() { run(); done <- struct{}{} }()
	go func() { run(); done <- struct{}{} }()
	<-done
	<-done

	assert.LessOrEqual(t, maxInFlight.Load(), int32(1))
}
