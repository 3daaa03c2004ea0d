package executor

import (
	"context"
	"sync"
	"time"
)

// ChunkPool bounds concurrent chunk processing to a fixed worker count
// and enforces a per-call deadline. Unlike JobPool, callers block on
// Run until the result is ready or the deadline expires.
type ChunkPool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// NewChunkPool creates a pool admitting at most workers concurrent
// in-flight calls to Run.
func NewChunkPool(workers int) *ChunkPool {
	return &ChunkPool{sem: make(chan struct{}, workers)}
}

// Run blocks until fn completes or timeout elapses, whichever comes
// first, dispatching fn onto a bounded worker slot. If the deadline
// fires first, Run returns immediately with timedOut=true; fn
// keeps running in the background (cancellation of its context is
// attempted but not awaited) and the worker slot it holds is released
// only when fn itself returns, so a stuck fn still counts against the
// pool's concurrency limit.
func Run[T any](ctx context.Context, pool *ChunkPool, timeout time.Duration, fn func(context.Context) (T, error)) (result T, err error, timedOut bool) {
	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	select {
	case pool.sem <- struct{}{}:
	case <-callCtx.Done():
		waitErr := callCtx.Err()
		if cancel != nil {
			cancel()
		}
		var zero T
		return zero, waitErr, waitErr == context.DeadlineExceeded
	}

	done := make(chan struct{})
	var (
		res   T
		fnErr error
	)

	pool.wg.Add(1)
	go func() {
		defer pool.wg.Done()
		defer func() { <-pool.sem }()
		res, fnErr = fn(callCtx)
		close(done)
		if cancel != nil {
			cancel()
		}
	}()

	select {
	case <-done:
		return res, fnErr, false
	case <-callCtx.Done():
		if callCtx.Err() == context.DeadlineExceeded {
			var zero T
			return zero, context.DeadlineExceeded, true
		}
		<-done
		return res, fnErr, false
	}
}

// Shutdown waits for in-flight Run calls to finish, up to ctx's
// deadline. New calls to Run are not blocked by Shutdown; callers are
// expected to stop submitting before invoking it.
func (p *ChunkPool) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
