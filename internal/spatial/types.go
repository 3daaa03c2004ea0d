// Package spatial is a thin typed adapter over the PostGIS/pgRouting
// spatial store: franchise/fiber-node/road-node lookups and shortest-path
// edge aggregation. It issues only parameter-bound SQL and never mutates
// the spatial schema — ingestion of source GeoJSON into this schema is an
// external, out-of-scope pipeline.
package spatial

import "encoding/json"

// District is an administrative region that owns one or more franchise
// zones. Read-only; ingested externally.
type District struct {
	ID   int
	Name string
}

// FranchiseZone is the polygon a consumer coordinate resolves into; it
// owns a contiguous road subgraph and a set of fiber nodes.
type FranchiseZone struct {
	ID         int
	DistrictID int
	Name       string
}

// FiberNodeRef identifies a fiber node and its distance from a query
// point, as returned by NearestFiberNode.
type FiberNodeRef struct {
	NodeID    int
	DistanceM float64
}

// LonLat is a WGS84 coordinate pair.
type LonLat struct {
	Lon float64
	Lat float64
}

// RouteGeometry is the GeoJSON LineString geometry of an aggregated
// shortest path, kept as raw JSON since the spatial store already
// serializes it via ST_AsGeoJSON — the Go layer never decodes or
// re-encodes geometry.
type RouteGeometry json.RawMessage

// MarshalJSON passes the raw GeoJSON through unchanged.
func (g RouteGeometry) MarshalJSON() ([]byte, error) {
	if len(g) == 0 {
		return []byte("null"), nil
	}
	return g, nil
}

// UnmarshalJSON stores the raw GeoJSON unchanged.
func (g *RouteGeometry) UnmarshalJSON(data []byte) error {
	*g = append((*g)[0:0], data...)
	return nil
}

// ShortestPath is the aggregated result of a pgRouting Dijkstra expansion
// restricted to one franchise's edge set.
type ShortestPath struct {
	DistanceM float64
	CostSum   float64
	EdgeCount int
	Geometry  RouteGeometry
}

// CatalogSummary is the read-only counts view consumed by /catalog/summary.
type CatalogSummary struct {
	Districts  int
	Franchises int
	FiberNodes int
	RoadNodes  int
	RoadEdges  int
}

// HealthReport is the composed health check consumed by /health.
type HealthReport struct {
	DBOK        bool
	PostGISOK   bool
	PgRoutingOK bool
}

// OK reports whether every sub-check passed.
func (h HealthReport) OK() bool {
	return h.DBOK && h.PostGISOK && h.PgRoutingOK
}
