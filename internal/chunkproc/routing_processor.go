package chunkproc

import (
	"context"
	"fmt"

	"github.com/fiberplan/planning-service/internal/apperr"
	"github.com/fiberplan/planning-service/internal/routing"
)

// Router is the subset of routing.Router a RoutingProcessor dispatches
// to, kept as an interface so tests can substitute a stub instead of a
// live spatial store.
type Router interface {
	Route(ctx context.Context, lon, lat float64) (routing.Result, error)
}

// RoutingProcessor is the production Processor: it calls Router.Route
// for every point in the chunk and aggregates a per-chunk summary. It is
// selected at wiring time in place of Mock; nothing in this package
// enables it by default. A chunk is never "done" until every point in
// it has been individually routed or classified as failed.
type RoutingProcessor struct {
	Router Router
}

// Process routes every point in chunk, classifying failures by their
// apperr.Code, and returns a Result summarizing the chunk. A point-level
// routing failure does not fail the chunk unless every point fails; the
// chunk's own Status reflects whether any point succeeded, and the first
// error encountered is recorded in ErrorMessage for diagnostics.
func (p *RoutingProcessor) Process(ctx context.Context, chunk []Point, chunkIndex int) (Result, error) {
	var (
		processed     int
		firstErr      error
		franchiseHist = map[int]int{}
		fiberHist     = map[int]int{}
	)

	for _, point := range chunk {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		route, err := p.Router.Route(ctx, point.Lon, point.Lat)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		processed++
		franchiseHist[route.FranchiseID]++
		fiberHist[route.FiberNodeID]++
	}

	result := Result{
		ChunkIndex:         chunkIndex,
		ProcessedPoints:    len(chunk),
		Status:             StatusOK,
		FranchiseHistogram: franchiseHist,
		FiberNodeHistogram: fiberHist,
	}
	if processed == 0 && len(chunk) > 0 {
		result.Status = StatusFailed
	}
	if firstErr != nil {
		result.ErrorMessage = classifyMessage(firstErr)
	}
	return result, nil
}

func classifyMessage(err error) string {
	if appErr, ok := err.(*apperr.Error); ok {
		return fmt.Sprintf("%s: %s", appErr.Code, appErr.Message)
	}
	return err.Error()
}
