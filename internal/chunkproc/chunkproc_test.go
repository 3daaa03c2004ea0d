package chunkproc

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiberplan/planning-service/internal/apperr"
	"github.com/fiberplan/planning-service/internal/routing"
)

func TestMock_Process(t *testing.T) {
	m := &Mock{Delay: time.Millisecond}
	chunk := []Point{{ID: 1}, {ID: 2}, {ID: 3}}

	result, err := m.Process(context.Background(), chunk, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ChunkIndex)
	assert.Equal(t, 3, result.ProcessedPoints)
	assert.Equal(t, StatusOK, result.Status)
}

func TestMock_Process_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &Mock{Delay: time.Second}
	_, err := m.Process(ctx, []Point{{ID: 1}}, 0)
	require.Error(t, err)
}

type stubRouter struct {
	results map[string]routing.Result
	err     map[string]error
}

func (s *stubRouter) Route(ctx context.Context, lon, lat float64) (routing.Result, error) {
	key := coordKey(lon, lat)
	if err, ok := s.err[key]; ok {
		return routing.Result{}, err
	}
	return s.results[key], nil
}

func coordKey(lon, lat float64) string {
	return fmt.Sprintf("%g,%g", lon, lat)
}

func TestRoutingProcessor_Process_MixedOutcomes(t *testing.T) {
	router := &stubRouter{
		results: map[string]routing.Result{
			coordKey(1, 1): {FranchiseID: 7, FiberNodeID: 42},
		},
		err: map[string]error{
			coordKey(2, 2): apperr.New(apperr.CodeOutsideFranchise, "outside"),
		},
	}
	p := &RoutingProcessor{Router: router}

	chunk := []Point{{Lon: 1, Lat: 1}, {Lon: 2, Lat: 2}}
	result, err := p.Process(context.Background(), chunk, 0)
	require.NoError(t, err)
	assert.Equal(t, len(chunk), result.ProcessedPoints)
	assert.Equal(t, StatusOK, result.Status)
	assert.Equal(t, 1, result.FranchiseHistogram[7])
	assert.Contains(t, result.ErrorMessage, "outside_franchise")
}

func TestRoutingProcessor_Process_AllFail(t *testing.T) {
	router := &stubRouter{
		err: map[string]error{
			coordKey(9, 9): apperr.New(apperr.CodeOutsideFranchise, "outside"),
		},
	}
	p := &RoutingProcessor{Router: router}

	chunk := []Point{{Lon: 9, Lat: 9}}
	result, err := p.Process(context.Background(), chunk, 0)
	require.NoError(t, err)
	assert.Equal(t, len(chunk), result.ProcessedPoints)
	assert.Equal(t, StatusFailed, result.Status)
}
