package routing

import "github.com/fiberplan/planning-service/internal/apperr"

// errOutsideFranchise reports that a coordinate falls outside every
// known franchise zone.
func errOutsideFranchise(lon, lat float64) *apperr.Error {
	return apperr.New(apperr.CodeOutsideFranchise, "coordinate (%.6f, %.6f) is outside every franchise zone", lon, lat)
}

func errNoFiberNode(franchiseID int) *apperr.Error {
	return apperr.New(apperr.CodeNoFiberNode, "franchise %d has no fiber nodes", franchiseID)
}

func errFiberNodeGeometryMissing(nodeID int) *apperr.Error {
	return apperr.New(apperr.CodeFiberNodeGeomMissing, "fiber node %d has no recorded coordinates", nodeID)
}

func errRoadSnapFailed(franchiseID int) *apperr.Error {
	return apperr.New(apperr.CodeRoadSnapFailed, "could not snap coordinate to the road graph in franchise %d", franchiseID)
}

func errRouteNotFound(franchiseID, source, target int) *apperr.Error {
	return apperr.New(apperr.CodeRouteNotFound, "no path between road nodes %d and %d in franchise %d", source, target, franchiseID)
}
