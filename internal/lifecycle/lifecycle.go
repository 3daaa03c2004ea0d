// Package lifecycle owns process-wide startup and shutdown: schema
// bootstrap, crash recovery of jobs orphaned by a previous process, and
// orderly draining of the executor pools and database connections on
// exit.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/fiberplan/planning-service/internal/jobstore"
)

// ErrAlreadyRunning is returned by Start when the manager has already
// been started and not yet stopped.
var ErrAlreadyRunning = errors.New("lifecycle: already running")

// ErrNotRunning is returned by Stop when the manager was never started
// or has already been stopped.
var ErrNotRunning = errors.New("lifecycle: not running")

// Closer shuts down a pooled resource the manager owns, such as the
// executor pools (drain in-flight work) or a *sql.DB (close
// connections).
type Closer interface {
	Shutdown(ctx context.Context) error
}

// CloserFunc adapts a plain function to Closer.
type CloserFunc func(ctx context.Context) error

// Shutdown calls f.
func (f CloserFunc) Shutdown(ctx context.Context) error { return f(ctx) }

// AsCloser wraps an io.Closer (e.g. *spatial.Gateway, *sql.DB) as a
// Closer, ignoring the context since Close has no cancellation path.
func AsCloser(c io.Closer) Closer {
	return CloserFunc(func(ctx context.Context) error { return c.Close() })
}

// Manager sequences the one-time startup checks and the ordered
// shutdown of every pooled resource the service holds.
type Manager struct {
	store   jobstore.Store
	closers []Closer
	logger  *log.Logger

	mu      sync.Mutex
	running bool
}

// New constructs a Manager. closers are shut down in the given order
// when Stop is called — list pools before the database connections that
// back them, so in-flight work finishes before its store disappears.
// A nil logger defaults to log.Default().
func New(store jobstore.Store, logger *log.Logger, closers ...Closer) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{store: store, closers: closers, logger: logger}
}

// Start bootstraps the durable schema, then recovers any job left
// processing or queued by a process that exited without finishing it
// — each is marked failed with a fixed restart message so job_status
// and job_result never hang on a job nothing is driving anymore.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrAlreadyRunning
	}

	if err := m.store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("lifecycle: ensure schema: %w", err)
	}

	recovered, err := m.store.MarkIncompleteJobsFailed(ctx)
	if err != nil {
		return fmt.Errorf("lifecycle: recover incomplete jobs: %w", err)
	}
	if recovered > 0 {
		m.logger.Printf("lifecycle: marked %d incomplete job(s) failed after restart", recovered)
	}

	m.running = true
	return nil
}

// Stop shuts down every registered Closer in order, collecting (not
// short-circuiting on) individual failures so one stuck pool doesn't
// prevent the database connections behind it from also closing.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return ErrNotRunning
	}
	m.running = false
	m.mu.Unlock()

	var errs []error
	for _, closer := range m.closers {
		if err := closer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
