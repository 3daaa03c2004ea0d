// Package executor provides two bounded, process-lifetime worker pools:
// a JobPool that runs the per-job driver in the background, and a
// ChunkPool that runs one chunk's processor under a deadline.
package executor

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolSaturated is returned by JobPool.Submit when every worker is
// busy and the submission channel is full.
var ErrPoolSaturated = errors.New("executor: pool saturated")

// JobPool runs submitted functions on a bounded set of background
// goroutines. Submit never blocks the caller: it either hands the task
// to a buffered channel or fails fast with ErrPoolSaturated.
type JobPool struct {
	tasks chan func(context.Context)
	wg    sync.WaitGroup

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	shutdown bool
}

// NewJobPool starts workers goroutines reading from a queueDepth-buffered
// channel.
func NewJobPool(workers, queueDepth int) *JobPool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &JobPool{
		tasks:  make(chan func(context.Context), queueDepth),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *JobPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			task(p.ctx)
		case <-p.ctx.Done():
			return
		}
	}
}

// Submit enqueues task without blocking. Returns ErrPoolSaturated if the
// queue is full, or an error if the pool has begun shutting down.
func (p *JobPool) Submit(task func(context.Context)) error {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return errors.New("executor: job pool is shutting down")
	}
	p.mu.Unlock()

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolSaturated
	}
}

// Shutdown stops accepting new submissions, closes the task channel, and
// waits for in-flight jobs to finish draining. It does not cancel the
// context driving already-dispatched tasks — job drivers are expected to
// run to completion.
func (p *JobPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return nil
	}
	p.shutdown = true
	p.mu.Unlock()

	close(p.tasks)

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
