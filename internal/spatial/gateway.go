package spatial

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

// Gateway is the parameter-bound SQL adapter over the spatial store.
// It opens against a pre-provisioned PostGIS/pgRouting schema rather
// than bootstrapping one — the ingestion pipeline that owns
// districts/franchise_zones/fiber_nodes/road_nodes/road_edges is out
// of scope for this service.
type Gateway struct {
	db *sql.DB
}

// Open connects to the spatial store using a PostgreSQL DSN and verifies
// connectivity before returning.
func Open(ctx context.Context, dsn string) (*Gateway, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open spatial store: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping spatial store: %w", err)
	}

	return &Gateway{db: db}, nil
}

// NewWithDB wraps an already-open *sql.DB, used by tests that point at a
// stub driver or a disposable schema.
func NewWithDB(db *sql.DB) *Gateway {
	return &Gateway{db: db}
}

// Close releases the underlying connection pool.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// ResolveFranchise returns the franchise zone containing the given
// coordinate. Ambiguity (the point lies in multiple overlapping zones,
// which ingestion is expected to prevent but which this query tolerates)
// is broken deterministically by lowest franchise_id. Returns
// (0, false, nil) when no zone contains the point.
func (g *Gateway) ResolveFranchise(ctx context.Context, lon, lat float64) (franchiseID int, ok bool, err error) {
	const query = `
		SELECT franchise_id
		FROM franchise_zones
		WHERE ST_Contains(geom, ST_SetSRID(ST_MakePoint($1, $2), 4326))
		ORDER BY franchise_id
		LIMIT 1`

	row := g.db.QueryRowContext(ctx, query, lon, lat)
	if err := row.Scan(&franchiseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("resolve_franchise: %w", err)
	}
	return franchiseID, true, nil
}

// NearestFiberNode returns the closest fiber node inside franchiseID,
// measured as true geodesic distance (geography cast). Returns
// (zero, false, nil) when the franchise has no fiber nodes.
func (g *Gateway) NearestFiberNode(ctx context.Context, franchiseID int, lon, lat float64) (FiberNodeRef, bool, error) {
	const query = `
		SELECT node_id,
		       ST_Distance(geom::geography, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography) AS distance_m
		FROM fiber_nodes
		WHERE franchise_id = $1
		ORDER BY geom <-> ST_SetSRID(ST_MakePoint($2, $3), 4326)
		LIMIT 1`

	var ref FiberNodeRef
	row := g.db.QueryRowContext(ctx, query, franchiseID, lon, lat)
	if err := row.Scan(&ref.NodeID, &ref.DistanceM); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FiberNodeRef{}, false, nil
		}
		return FiberNodeRef{}, false, fmt.Errorf("nearest_fiber_node: %w", err)
	}
	return ref, true, nil
}

// NearestRoadNode returns the id of the road node nearest the coordinate,
// restricted to franchiseID. Returns (0, false, nil) when the franchise
// has no road nodes.
func (g *Gateway) NearestRoadNode(ctx context.Context, franchiseID int, lon, lat float64) (int, bool, error) {
	const query = `
		SELECT node_id
		FROM road_nodes
		WHERE franchise_id = $1
		ORDER BY geom <-> ST_SetSRID(ST_MakePoint($2, $3), 4326)
		LIMIT 1`

	var nodeID int
	row := g.db.QueryRowContext(ctx, query, franchiseID, lon, lat)
	if err := row.Scan(&nodeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("nearest_road_node: %w", err)
	}
	return nodeID, true, nil
}

// FiberNodeCoords returns the coordinates of a fiber node by id.
func (g *Gateway) FiberNodeCoords(ctx context.Context, nodeID int) (LonLat, bool, error) {
	const query = `SELECT ST_X(geom), ST_Y(geom) FROM fiber_nodes WHERE node_id = $1`

	var ll LonLat
	row := g.db.QueryRowContext(ctx, query, nodeID)
	if err := row.Scan(&ll.Lon, &ll.Lat); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LonLat{}, false, nil
		}
		return LonLat{}, false, fmt.Errorf("fiber_node_coords: %w", err)
	}
	return ll, true, nil
}

// RoadNodeCoords returns the coordinates of a road node within a
// franchise. Both ids are bound as query parameters.
func (g *Gateway) RoadNodeCoords(ctx context.Context, franchiseID, nodeID int) (LonLat, bool, error) {
	const query = `
		SELECT ST_X(geom), ST_Y(geom)
		FROM road_nodes
		WHERE franchise_id = $1 AND node_id = $2`

	var ll LonLat
	row := g.db.QueryRowContext(ctx, query, franchiseID, nodeID)
	if err := row.Scan(&ll.Lon, &ll.Lat); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LonLat{}, false, nil
		}
		return LonLat{}, false, fmt.Errorf("road_node_coords: %w", err)
	}
	return ll, true, nil
}

// ShortestPath computes the shortest path between two road nodes, using
// pgr_dijkstra over the edge set restricted to franchiseID (undirected,
// weighted by cost). franchiseID is always a store-derived value, per the
// gateway's parameter-binding contract. Returns (zero, false, nil) when
// no path connects the nodes.
func (g *Gateway) ShortestPath(ctx context.Context, franchiseID, sourceRN, targetRN int) (ShortestPath, bool, error) {
	const query = `
		WITH path AS (
			SELECT d.seq, d.edge, d.cost
			FROM pgr_dijkstra(
				format(
					'SELECT id, source, target, cost, cost AS reverse_cost FROM road_edges WHERE franchise_id = %s',
					$1::text
				),
				$2, $3,
				directed := false
			) d
			WHERE d.edge >= 0
		)
		SELECT
			COALESCE(SUM(e.length_m), 0),
			COALESCE(SUM(path.cost), 0),
			COUNT(*),
			ST_AsGeoJSON(ST_LineMerge(ST_Collect(e.geom)))
		FROM path
		JOIN road_edges e ON e.id = path.edge`

	var (
		sp       ShortestPath
		geomText sql.NullString
		edgeCnt  sql.NullInt64
	)
	row := g.db.QueryRowContext(ctx, query, franchiseID, sourceRN, targetRN)
	if err := row.Scan(&sp.DistanceM, &sp.CostSum, &edgeCnt, &geomText); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ShortestPath{}, false, nil
		}
		return ShortestPath{}, false, fmt.Errorf("shortest_path: %w", err)
	}
	if !edgeCnt.Valid || edgeCnt.Int64 == 0 {
		return ShortestPath{}, false, nil
	}
	sp.EdgeCount = int(edgeCnt.Int64)
	if geomText.Valid {
		sp.Geometry = RouteGeometry(geomText.String)
	}
	return sp, true, nil
}

// Summary returns the catalog-wide entity counts behind /catalog/summary.
func (g *Gateway) Summary(ctx context.Context) (CatalogSummary, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM districts),
			(SELECT COUNT(*) FROM franchise_zones),
			(SELECT COUNT(*) FROM fiber_nodes),
			(SELECT COUNT(*) FROM road_nodes),
			(SELECT COUNT(*) FROM road_edges)`

	var s CatalogSummary
	row := g.db.QueryRowContext(ctx, query)
	if err := row.Scan(&s.Districts, &s.Franchises, &s.FiberNodes, &s.RoadNodes, &s.RoadEdges); err != nil {
		return CatalogSummary{}, fmt.Errorf("summary: %w", err)
	}
	return s, nil
}

// DistrictCount pairs a district with the number of franchise zones it
// owns, as returned by ListDistricts.
type DistrictCount struct {
	District
	FranchiseCount int
}

// ListDistricts returns every district with its franchise count,
// ordered by name.
func (g *Gateway) ListDistricts(ctx context.Context) ([]DistrictCount, error) {
	const query = `
		SELECT d.district_id, d.name, COUNT(f.franchise_id)
		FROM districts d
		LEFT JOIN franchise_zones f ON d.district_id = f.district_id
		GROUP BY d.district_id, d.name
		ORDER BY d.name`

	rows, err := g.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list_districts: %w", err)
	}
	defer rows.Close()

	var out []DistrictCount
	for rows.Next() {
		var d DistrictCount
		if err := rows.Scan(&d.ID, &d.Name, &d.FranchiseCount); err != nil {
			return nil, fmt.Errorf("list_districts: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// FranchiseCount pairs a franchise zone with its fiber node count, as
// returned by ListFranchises.
type FranchiseCount struct {
	FranchiseZone
	FiberNodeCount int
}

// ListFranchises returns every franchise zone with its fiber node
// count, optionally restricted to one district, ordered by franchise id.
func (g *Gateway) ListFranchises(ctx context.Context, districtID int) ([]FranchiseCount, error) {
	query := `
		SELECT f.franchise_id, f.district_id, COUNT(n.node_id)
		FROM franchise_zones f
		LEFT JOIN fiber_nodes n ON n.franchise_id = f.franchise_id`
	args := []any{}
	if districtID != 0 {
		query += ` WHERE f.district_id = $1`
		args = append(args, districtID)
	}
	query += ` GROUP BY f.franchise_id, f.district_id ORDER BY f.franchise_id`

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list_franchises: %w", err)
	}
	defer rows.Close()

	var out []FranchiseCount
	for rows.Next() {
		var f FranchiseCount
		if err := rows.Scan(&f.ID, &f.DistrictID, &f.FiberNodeCount); err != nil {
			return nil, fmt.Errorf("list_franchises: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// HealthCheck runs the three independent checks behind /health: a bare
// connectivity probe and an extension-presence check for each of
// PostGIS and pgRouting. Each check is attempted even if an earlier one
// fails, so the report always reflects every sub-system's real state.
func (g *Gateway) HealthCheck(ctx context.Context) HealthReport {
	var report HealthReport

	if err := g.db.PingContext(ctx); err == nil {
		report.DBOK = true
	}
	_ = g.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'postgis')`).Scan(&report.PostGISOK)
	_ = g.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'pgrouting')`).Scan(&report.PgRoutingOK)

	return report
}
