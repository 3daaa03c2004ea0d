package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiberplan/planning-service/internal/jobstore"
)

type stubStore struct {
	jobstore.Store
	ensureSchemaErr error
	recoverCount    int
	recoverErr      error
	ensureCalled    bool
	recoverCalled   bool
}

func (s *stubStore) EnsureSchema(ctx context.Context) error {
	s.ensureCalled = true
	return s.ensureSchemaErr
}

func (s *stubStore) MarkIncompleteJobsFailed(ctx context.Context) (int, error) {
	s.recoverCalled = true
	return s.recoverCount, s.recoverErr
}

type stubCloser struct {
	called bool
	err    error
}

func (c *stubCloser) Shutdown(ctx context.Context) error {
	c.called = true
	return c.err
}

func TestStart_BootstrapsSchemaAndRecoversJobs(t *testing.T) {
	store := &stubStore{recoverCount: 3}
	manager := New(store, nil)

	err := manager.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, store.ensureCalled)
	assert.True(t, store.recoverCalled)
}

func TestStart_TwiceReturnsAlreadyRunning(t *testing.T) {
	store := &stubStore{}
	manager := New(store, nil)
	require.NoError(t, manager.Start(context.Background()))

	err := manager.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestStart_SchemaFailureAborts(t *testing.T) {
	store := &stubStore{ensureSchemaErr: errors.New("connection refused")}
	manager := New(store, nil)

	err := manager.Start(context.Background())
	require.Error(t, err)
	assert.False(t, store.recoverCalled)
}

func TestStop_DrainsClosersInOrder(t *testing.T) {
	store := &stubStore{}
	pool := &stubCloser{}
	db := &stubCloser{}
	var order []string
	manager := New(store, nil,
		CloserFunc(func(ctx context.Context) error { order = append(order, "pool"); return pool.Shutdown(ctx) }),
		CloserFunc(func(ctx context.Context) error { order = append(order, "db"); return db.Shutdown(ctx) }),
	)
	require.NoError(t, manager.Start(context.Background()))

	err := manager.Stop(context.Background())
	require.NoError(t, err)
	assert.True(t, pool.called)
	assert.True(t, db.called)
	assert.Equal(t, []string{"pool", "db"}, order)
}

func TestStop_WithoutStartReturnsNotRunning(t *testing.T) {
	manager := New(&stubStore{}, nil)
	err := manager.Stop(context.Background())
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestStop_JoinsMultipleCloserErrors(t *testing.T) {
	store := &stubStore{}
	failingA := &stubCloser{err: errors.New("pool drain timeout")}
	failingB := &stubCloser{err: errors.New("db close failed")}
	manager := New(store, nil, failingA, failingB)
	require.NoError(t, manager.Start(context.Background()))

	err := manager.Stop(context.Background())
	require.Error(t, err)
	assert.True(t, failingA.called)
	assert.True(t, failingB.called)
}
