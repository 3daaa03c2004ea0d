package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiberplan/planning-service/internal/apperr"
	"github.com/fiberplan/planning-service/internal/spatial"
)

const testDefaultCostPerMeter = 700.0

type stubStore struct {
	franchiseID int
	franchiseOK bool

	fiberNode   spatial.FiberNodeRef
	fiberNodeOK bool

	fiberCoords   spatial.LonLat
	fiberCoordsOK bool

	sourceRN, targetRN int
	roadOK             bool

	roadNodeCoords   spatial.LonLat
	roadNodeCoordsOK bool

	path   spatial.ShortestPath
	pathOK bool

	err error
}

func (s *stubStore) ResolveFranchise(ctx context.Context, lon, lat float64) (int, bool, error) {
	return s.franchiseID, s.franchiseOK, s.err
}

func (s *stubStore) NearestFiberNode(ctx context.Context, franchiseID int, lon, lat float64) (spatial.FiberNodeRef, bool, error) {
	return s.fiberNode, s.fiberNodeOK, s.err
}

func (s *stubStore) NearestRoadNode(ctx context.Context, franchiseID int, lon, lat float64) (int, bool, error) {
	if lon == s.fiberCoords.Lon && lat == s.fiberCoords.Lat {
		return s.targetRN, s.roadOK, s.err
	}
	return s.sourceRN, s.roadOK, s.err
}

func (s *stubStore) FiberNodeCoords(ctx context.Context, nodeID int) (spatial.LonLat, bool, error) {
	return s.fiberCoords, s.fiberCoordsOK, s.err
}

func (s *stubStore) RoadNodeCoords(ctx context.Context, franchiseID, nodeID int) (spatial.LonLat, bool, error) {
	return s.roadNodeCoords, s.roadNodeCoordsOK, s.err
}

func (s *stubStore) ShortestPath(ctx context.Context, franchiseID, sourceRN, targetRN int) (spatial.ShortestPath, bool, error) {
	return s.path, s.pathOK, s.err
}

func TestRoute_OutsideFranchise(t *testing.T) {
	store := &stubStore{franchiseOK: false}
	r := New(store, nil, nil, testDefaultCostPerMeter)

	_, err := r.Route(context.Background(), 1, 1)
	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperr.CodeOutsideFranchise, appErr.Code)
}

func TestRoute_NoFiberNode(t *testing.T) {
	store := &stubStore{franchiseID: 7, franchiseOK: true, fiberNodeOK: false}
	r := New(store, nil, nil, testDefaultCostPerMeter)

	_, err := r.Route(context.Background(), 1, 1)
	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperr.CodeNoFiberNode, appErr.Code)
}

func TestRoute_DegenerateSameNode(t *testing.T) {
	store := &stubStore{
		franchiseID:   7,
		franchiseOK:   true,
		fiberNode:     spatial.FiberNodeRef{NodeID: 42, DistanceM: 12},
		fiberNodeOK:   true,
		fiberCoords:   spatial.LonLat{Lon: 1, Lat: 1},
		fiberCoordsOK: true,
		sourceRN:      5,
		targetRN:      5,
		roadOK:        true,

		roadNodeCoords:   spatial.LonLat{Lon: 3, Lat: 4},
		roadNodeCoordsOK: true,
	}
	r := New(store, nil, nil, testDefaultCostPerMeter)

	result, err := r.Route(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.DistanceM)
	assert.Equal(t, 0.0, result.EstimatedCost)
	assert.Equal(t, 0, result.EdgeCount)
	assert.Equal(t, 5, result.SourceRN)
	assert.Equal(t, 5, result.TargetRN)
	require.NotNil(t, result.Geometry)
	assert.JSONEq(t, `{"type":"LineString","coordinates":[[3,4],[3,4]]}`, string(result.Geometry))
}

func TestRoute_DefaultCostPerMeterFallback(t *testing.T) {
	store := &stubStore{
		franchiseID:   7,
		franchiseOK:   true,
		fiberNode:     spatial.FiberNodeRef{NodeID: 42, DistanceM: 12},
		fiberNodeOK:   true,
		fiberCoords:   spatial.LonLat{Lon: 1, Lat: 1},
		fiberCoordsOK: true,
		sourceRN:      5,
		targetRN:      9,
		roadOK:        true,
		path:          spatial.ShortestPath{DistanceM: 100, CostSum: 0, EdgeCount: 3},
		pathOK:        true,
	}
	r := New(store, nil, nil, testDefaultCostPerMeter)

	result, err := r.Route(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 100*testDefaultCostPerMeter, result.EstimatedCost)
}

func TestRoute_RouteNotFound(t *testing.T) {
	store := &stubStore{
		franchiseID:   7,
		franchiseOK:   true,
		fiberNode:     spatial.FiberNodeRef{NodeID: 42, DistanceM: 12},
		fiberNodeOK:   true,
		fiberCoords:   spatial.LonLat{Lon: 1, Lat: 1},
		fiberCoordsOK: true,
		sourceRN:      5,
		targetRN:      9,
		roadOK:        true,
		pathOK:        false,
	}
	r := New(store, nil, nil, testDefaultCostPerMeter)

	_, err := r.Route(context.Background(), 0, 0)
	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperr.CodeRouteNotFound, appErr.Code)
}
