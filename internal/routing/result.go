// Package routing implements the single-point routing algorithm over the
// spatial store: resolve a coordinate to a franchise, snap it to the
// nearest fiber node and road graph, and expand a shortest path between
// the two snapped road nodes.
package routing

import "github.com/fiberplan/planning-service/internal/spatial"

// Result is the outcome of routing a single coordinate.
type Result struct {
	FranchiseID   int                   `json:"franchise_id"`
	FiberNodeID   int                   `json:"fiber_node_id"`
	SourceRN      int                   `json:"source_rn"`
	TargetRN      int                   `json:"target_rn"`
	DistanceM     float64               `json:"distance_m"`
	EstimatedCost float64               `json:"estimated_cost"`
	EdgeCount     int                   `json:"edge_count"`
	Geometry      spatial.RouteGeometry `json:"geometry"`
}
