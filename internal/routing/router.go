package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fiberplan/planning-service/internal/apperr"
	"github.com/fiberplan/planning-service/internal/obs"
	"github.com/fiberplan/planning-service/internal/spatial"
)

// Store is the subset of spatial.Gateway the router depends on. Defining
// it here (rather than importing *spatial.Gateway directly everywhere)
// lets tests substitute a stub store without a database.
type Store interface {
	ResolveFranchise(ctx context.Context, lon, lat float64) (int, bool, error)
	NearestFiberNode(ctx context.Context, franchiseID int, lon, lat float64) (spatial.FiberNodeRef, bool, error)
	NearestRoadNode(ctx context.Context, franchiseID int, lon, lat float64) (int, bool, error)
	FiberNodeCoords(ctx context.Context, nodeID int) (spatial.LonLat, bool, error)
	RoadNodeCoords(ctx context.Context, franchiseID, nodeID int) (spatial.LonLat, bool, error)
	ShortestPath(ctx context.Context, franchiseID, sourceRN, targetRN int) (spatial.ShortestPath, bool, error)
}

// Router implements the single-point routing algorithm over a Store.
type Router struct {
	store           Store
	emitter         obs.Emitter
	metrics         *obs.Metrics
	defaultCostPerM float64
}

// New constructs a Router. emitter and metrics may be nil; a nil emitter
// behaves like obs.NullEmitter and metrics methods are nil-receiver-safe.
// defaultCostPerMeter is the configured fallback cost rate (the
// PLANNING_DEFAULT_COST_PER_METER setting, normally 700.0) applied when a
// shortest path carries a zero cost_sum.
func New(store Store, emitter obs.Emitter, metrics *obs.Metrics, defaultCostPerMeter float64) *Router {
	if emitter == nil {
		emitter = obs.NullEmitter{}
	}
	return &Router{store: store, emitter: emitter, metrics: metrics, defaultCostPerM: defaultCostPerMeter}
}

// Route resolves (lon, lat) to a franchise, snaps it to the nearest
// fiber node and road graph, and expands the shortest path between the
// snapped road nodes.
func (r *Router) Route(ctx context.Context, lon, lat float64) (Result, error) {
	start := time.Now()
	result, err := r.route(ctx, lon, lat)
	outcome := "ok"
	if err != nil {
		outcome = outcomeCode(err)
	}
	r.metrics.ObserveRouteDuration(float64(time.Since(start).Microseconds())/1000, outcome)
	r.emitter.Emit(obs.Event{
		Ctx: ctx,
		Msg: "route_computed",
		Meta: map[string]any{
			"outcome": outcome,
			"lon":     lon,
			"lat":     lat,
		},
		At: time.Now(),
	})
	return result, err
}

func (r *Router) route(ctx context.Context, lon, lat float64) (Result, error) {
	franchiseID, ok, err := r.store.ResolveFranchise(ctx, lon, lat)
	if err != nil {
		return Result{}, fmt.Errorf("resolve_franchise: %w", err)
	}
	if !ok {
		return Result{}, errOutsideFranchise(lon, lat)
	}

	fiberNode, ok, err := r.store.NearestFiberNode(ctx, franchiseID, lon, lat)
	if err != nil {
		return Result{}, fmt.Errorf("nearest_fiber_node: %w", err)
	}
	if !ok {
		return Result{}, errNoFiberNode(franchiseID)
	}

	fiberCoords, ok, err := r.store.FiberNodeCoords(ctx, fiberNode.NodeID)
	if err != nil {
		return Result{}, fmt.Errorf("fiber_node_coords: %w", err)
	}
	if !ok {
		return Result{}, errFiberNodeGeometryMissing(fiberNode.NodeID)
	}

	sourceRN, ok, err := r.store.NearestRoadNode(ctx, franchiseID, lon, lat)
	if err != nil {
		return Result{}, fmt.Errorf("nearest_road_node(source): %w", err)
	}
	if !ok {
		return Result{}, errRoadSnapFailed(franchiseID)
	}

	targetRN, ok, err := r.store.NearestRoadNode(ctx, franchiseID, fiberCoords.Lon, fiberCoords.Lat)
	if err != nil {
		return Result{}, fmt.Errorf("nearest_road_node(target): %w", err)
	}
	if !ok {
		return Result{}, errRoadSnapFailed(franchiseID)
	}

	if sourceRN == targetRN {
		nodeCoords, ok, err := r.store.RoadNodeCoords(ctx, franchiseID, sourceRN)
		if err != nil {
			return Result{}, fmt.Errorf("road_node_coords: %w", err)
		}
		if !ok {
			return Result{}, errRoadSnapFailed(franchiseID)
		}
		return Result{
			FranchiseID:   franchiseID,
			FiberNodeID:   fiberNode.NodeID,
			SourceRN:      sourceRN,
			TargetRN:      targetRN,
			DistanceM:     0,
			EstimatedCost: 0,
			EdgeCount:     0,
			Geometry:      degenerateLineString(nodeCoords),
		}, nil
	}

	path, ok, err := r.store.ShortestPath(ctx, franchiseID, sourceRN, targetRN)
	if err != nil {
		return Result{}, fmt.Errorf("shortest_path: %w", err)
	}
	if !ok {
		return Result{}, errRouteNotFound(franchiseID, sourceRN, targetRN)
	}

	estimatedCost := path.CostSum
	if estimatedCost == 0 {
		estimatedCost = path.DistanceM * r.defaultCostPerM
	}

	return Result{
		FranchiseID:   franchiseID,
		FiberNodeID:   fiberNode.NodeID,
		SourceRN:      sourceRN,
		TargetRN:      targetRN,
		DistanceM:     path.DistanceM,
		EstimatedCost: estimatedCost,
		EdgeCount:     path.EdgeCount,
		Geometry:      path.Geometry,
	}, nil
}

// degenerateLineString builds the GeoJSON LineString for the
// sourceRN==targetRN case: a two-vertex line collapsed onto the shared
// node's coordinates, matching what the spatial store's ST_AsGeoJSON
// would produce for a zero-length path.
func degenerateLineString(coords spatial.LonLat) spatial.RouteGeometry {
	geom, err := json.Marshal(struct {
		Type        string       `json:"type"`
		Coordinates [][2]float64 `json:"coordinates"`
	}{
		Type: "LineString",
		Coordinates: [][2]float64{
			{coords.Lon, coords.Lat},
			{coords.Lon, coords.Lat},
		},
	})
	if err != nil {
		return nil
	}
	return spatial.RouteGeometry(geom)
}

func outcomeCode(err error) string {
	if appErr, ok := err.(*apperr.Error); ok {
		return string(appErr.Code)
	}
	return string(apperr.CodeInternalError)
}
