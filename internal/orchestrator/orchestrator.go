// Package orchestrator drives batch job admission and the per-job chunk
// dispatch loop, composing the job store, the two executor pools, a
// chunk processor, and the single-point router behind one application
// surface.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/fiberplan/planning-service/internal/apperr"
	"github.com/fiberplan/planning-service/internal/chunkproc"
	"github.com/fiberplan/planning-service/internal/executor"
	"github.com/fiberplan/planning-service/internal/jobstore"
	"github.com/fiberplan/planning-service/internal/obs"
	"github.com/fiberplan/planning-service/internal/routing"
)

// Config holds the admission/dispatch tunables the orchestrator needs,
// populated from the process-wide configuration at wiring time.
type Config struct {
	SecureMaxPoints     int
	MaxBatchCoordinates int
	ChunkSize           int
	MaxActiveJobs       int
	ChunkTimeout        time.Duration
	ExecutorMaxWorkers  int
}

// effectiveMaxPoints is the smaller of the configurable soft limit and
// the hard ceiling, so no deployment configuration can raise admission
// above SecureMaxPoints.
func (c Config) effectiveMaxPoints() int {
	if c.MaxBatchCoordinates > 0 && c.MaxBatchCoordinates < c.SecureMaxPoints {
		return c.MaxBatchCoordinates
	}
	return c.SecureMaxPoints
}

// Orchestrator composes the job store, executor pools, chunk processor,
// and router into the batch-job and single-point routing surface.
type Orchestrator struct {
	store     jobstore.Store
	jobPool   *executor.JobPool
	chunkPool *executor.ChunkPool
	processor chunkproc.Processor
	router    *routing.Router
	cfg       Config
	emitter   obs.Emitter
	metrics   *obs.Metrics
}

// New constructs an Orchestrator. emitter and metrics may be nil.
func New(
	store jobstore.Store,
	jobPool *executor.JobPool,
	chunkPool *executor.ChunkPool,
	processor chunkproc.Processor,
	router *routing.Router,
	cfg Config,
	emitter obs.Emitter,
	metrics *obs.Metrics,
) *Orchestrator {
	if emitter == nil {
		emitter = obs.NullEmitter{}
	}
	return &Orchestrator{
		store:     store,
		jobPool:   jobPool,
		chunkPool: chunkPool,
		processor: processor,
		router:    router,
		cfg:       cfg,
		emitter:   emitter,
		metrics:   metrics,
	}
}

// UploadBatch admits a new batch job and hands its driver to the job
// pool, returning as soon as admission succeeds — the chunk dispatch
// loop itself runs in the background.
func (o *Orchestrator) UploadBatch(ctx context.Context, coordinates []Coordinate) (*UploadResponse, error) {
	if len(coordinates) == 0 {
		return nil, apperr.New(apperr.CodeValidationError, "batch must contain at least one coordinate")
	}
	if len(coordinates) > o.cfg.effectiveMaxPoints() {
		return nil, apperr.New(apperr.CodeBatchTooLarge, "batch of %d points exceeds the maximum of %d", len(coordinates), o.cfg.effectiveMaxPoints())
	}
	if details := validateCoordinates(coordinates); len(details) > 0 {
		return nil, apperr.ValidationFailed("one or more coordinates are out of range", details...)
	}

	sizes := chunkSizes(len(coordinates), o.cfg.ChunkSize)

	o.store.CleanupFinished(ctx)

	job, ok, err := o.store.CreateJob(ctx, len(coordinates), sizes, o.cfg.MaxActiveJobs)
	if err != nil {
		return nil, apperr.New(apperr.CodePersistenceError, "failed to create job: %v", err)
	}
	if !ok {
		return nil, apperr.New(apperr.CodeServerBusy, "at most %d jobs may be active at once", o.cfg.MaxActiveJobs)
	}
	o.metrics.IncJobsAdmitted()

	points := toChunkPoints(coordinates)
	submitErr := o.jobPool.Submit(func(bgCtx context.Context) {
		o.runJob(bgCtx, job.JobID, points, sizes)
	})
	if submitErr != nil {
		_ = o.store.MarkSubmissionFailed(ctx, job.JobID, fmt.Sprintf("Background processing failed: %v", submitErr))
		return nil, apperr.New(apperr.CodeExecutorUnavailable, "job pool unavailable: %v", submitErr)
	}

	return &UploadResponse{
		JobID:       job.JobID,
		Status:      jobstore.StatusQueued,
		TotalPoints: job.TotalPoints,
		TotalChunks: job.TotalChunks,
		ChunkSizes:  job.ChunkSizes,
	}, nil
}

// validateCoordinates checks every point's lat/lon against the data
// model's bounds (lat ∈ [-90,90], lon ∈ [-180,180]), returning one
// FieldError per out-of-range coordinate, indexed by its position in the
// batch.
func validateCoordinates(coordinates []Coordinate) []apperr.FieldError {
	var details []apperr.FieldError
	for i, c := range coordinates {
		if c.Lat < -90 || c.Lat > 90 {
			details = append(details, apperr.FieldError{
				Field:   fmt.Sprintf("coordinates[%d].lat", i),
				Message: fmt.Sprintf("must be between -90 and 90, got %g", c.Lat),
			})
		}
		if c.Lon < -180 || c.Lon > 180 {
			details = append(details, apperr.FieldError{
				Field:   fmt.Sprintf("coordinates[%d].lon", i),
				Message: fmt.Sprintf("must be between -180 and 180, got %g", c.Lon),
			})
		}
	}
	return details
}

func toChunkPoints(coordinates []Coordinate) []chunkproc.Point {
	points := make([]chunkproc.Point, len(coordinates))
	for i, c := range coordinates {
		points[i] = chunkproc.Point{ID: c.ID, Lat: c.Lat, Lon: c.Lon, InputIdx: i}
	}
	return points
}

// runJob is the per-job driver: it dispatches chunks to the chunk pool
// in ascending index order, awaiting each before submitting the next,
// and performs the job's terminal transition once every chunk has been
// accounted for.
func (o *Orchestrator) runJob(ctx context.Context, jobID string, points []chunkproc.Point, sizes []int) {
	defer func() {
		if r := recover(); r != nil {
			_ = o.store.FinishJob(ctx, jobID, true, fmt.Sprintf("Background processing failed: %v", r))
		}
	}()

	if err := o.store.TransitionProcessing(ctx, jobID); err != nil {
		_ = o.store.FinishJob(ctx, jobID, true, fmt.Sprintf("Background processing failed: %v", err))
		return
	}

	hadFailures := false
	offset := 0
	for idx, size := range sizes {
		chunk := points[offset : offset+size]
		offset += size

		result := o.runChunk(ctx, chunk, idx)
		if result.Status == chunkproc.StatusFailed {
			hadFailures = true
		}

		persistErr := o.store.AppendChunkResult(ctx, jobID, jobstore.ChunkResult{
			ChunkIndex:      result.ChunkIndex,
			ProcessedPoints: result.ProcessedPoints,
			Status:          toJobstoreChunkStatus(result.Status),
			ErrorMessage:    result.ErrorMessage,
			DurationMs:      result.DurationMs,
		})
		if persistErr != nil {
			hadFailures = true
		}

		o.emitter.Emit(obs.Event{
			Ctx:   ctx,
			JobID: jobID,
			Msg:   "chunk_completed",
			Meta:  map[string]any{"chunk_index": idx, "status": string(result.Status)},
			At:    time.Now(),
		})
	}

	errorMessage := ""
	if hadFailures {
		errorMessage = "One or more chunks failed."
	}
	_ = o.store.FinishJob(ctx, jobID, hadFailures, errorMessage)
	o.metrics.IncJobsTerminal(hadFailures)
}

// runChunk submits one chunk to the chunk pool, enforces the deadline,
// and normalizes the result per the processor contract: missing
// defaults are filled in, and any failure (timeout or error) is
// synthesized into a failed ChunkResult rather than propagated.
func (o *Orchestrator) runChunk(ctx context.Context, chunk []chunkproc.Point, chunkIndex int) chunkproc.Result {
	start := time.Now()
	result, err, timedOut := executor.Run(ctx, o.chunkPool, o.cfg.ChunkTimeout, func(callCtx context.Context) (chunkproc.Result, error) {
		return o.processor.Process(callCtx, chunk, chunkIndex)
	})
	durationMs := float64(time.Since(start).Microseconds()) / 1000

	if timedOut {
		o.metrics.IncChunkTimeouts()
		o.metrics.ObserveChunkDuration(durationMs, "failed")
		return chunkproc.Result{
			ChunkIndex:      chunkIndex,
			ProcessedPoints: len(chunk),
			Status:          chunkproc.StatusFailed,
			ErrorMessage:    fmt.Sprintf("Chunk timeout after %v seconds.", o.cfg.ChunkTimeout.Seconds()),
			DurationMs:      durationMs,
		}
	}
	if err != nil {
		o.metrics.ObserveChunkDuration(durationMs, "failed")
		return chunkproc.Result{
			ChunkIndex:      chunkIndex,
			ProcessedPoints: len(chunk),
			Status:          chunkproc.StatusFailed,
			ErrorMessage:    err.Error(),
			DurationMs:      durationMs,
		}
	}

	result = normalizeResult(result, chunkIndex, len(chunk), durationMs)
	o.metrics.ObserveChunkDuration(durationMs, string(result.Status))
	return result
}

// normalizeResult fills in defaults a Processor may leave zero-valued:
// chunk_index, processed_points, status=ok, duration_ms.
func normalizeResult(result chunkproc.Result, chunkIndex, chunkLen int, observedDurationMs float64) chunkproc.Result {
	result.ChunkIndex = chunkIndex
	if result.ProcessedPoints == 0 && result.Status != chunkproc.StatusFailed {
		result.ProcessedPoints = chunkLen
	}
	if result.Status == "" {
		result.Status = chunkproc.StatusOK
	}
	if result.DurationMs == 0 {
		result.DurationMs = observedDurationMs
	}
	return result
}

func toJobstoreChunkStatus(status chunkproc.Status) jobstore.ChunkStatus {
	if status == chunkproc.StatusFailed {
		return jobstore.ChunkFailed
	}
	return jobstore.ChunkOK
}

// JobStatus returns a job's current lifecycle state.
func (o *Orchestrator) JobStatus(ctx context.Context, jobID string) (*StatusResponse, error) {
	o.store.CleanupFinished(ctx)
	job, ok, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !ok {
		return nil, apperr.New(apperr.CodeJobNotFound, "job %s not found", jobID)
	}
	return &StatusResponse{
		JobID:           job.JobID,
		Status:          job.Status,
		TotalPoints:     job.TotalPoints,
		TotalChunks:     job.TotalChunks,
		ProcessedChunks: job.ProcessedChunks,
		FailedChunks:    job.FailedChunks,
		ErrorMessage:    job.ErrorMessage,
	}, nil
}

// JobResult returns a job's full result view once it has reached a
// terminal state, then pops it from the cache (durable records remain
// for later hydration).
func (o *Orchestrator) JobResult(ctx context.Context, jobID string) (*ResultResponse, error) {
	o.store.CleanupFinished(ctx)
	job, ok, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !ok {
		return nil, apperr.New(apperr.CodeJobNotFound, "job %s not found", jobID)
	}
	if !job.Status.Terminal() {
		return nil, apperr.New(apperr.CodeJobNotReady, "job %s is still %s", jobID, job.Status)
	}

	response := &ResultResponse{
		JobID:           job.JobID,
		Status:          job.Status,
		TotalPoints:     job.TotalPoints,
		ProcessedChunks: job.ProcessedChunks,
		FailedChunks:    job.FailedChunks,
		ErrorMessage:    job.ErrorMessage,
		Results:         job.Results,
		AvgDurationMs:   job.AvgDurationMs,
		MaxDurationMs:   job.MaxDurationMs,
	}
	_ = o.store.PopJob(ctx, jobID)
	return response, nil
}

// JobsMetrics returns the durable metrics view plus capacity configuration.
func (o *Orchestrator) JobsMetrics(ctx context.Context) (*MetricsResponse, error) {
	metrics, err := o.store.Metrics(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &MetricsResponse{
		CountByStatus:      metrics.CountByStatus,
		AvgChunkDurationMs: metrics.AvgChunkDurationMs,
		AvgJobDurationMs:   metrics.AvgJobDurationMs,
		MaxActiveJobs:      o.cfg.MaxActiveJobs,
		ExecutorMaxWorkers: o.cfg.ExecutorMaxWorkers,
	}, nil
}

// ComputeRoute directly invokes the single-point router.
func (o *Orchestrator) ComputeRoute(ctx context.Context, lat, lon float64) (*routing.Result, error) {
	result, err := o.router.Route(ctx, lon, lat)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Shutdown drains both executor pools; no new job submissions are
// accepted once shutdown begins.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	if err := o.jobPool.Shutdown(ctx); err != nil {
		return fmt.Errorf("job pool shutdown: %w", err)
	}
	if err := o.chunkPool.Shutdown(ctx); err != nil {
		return fmt.Errorf("chunk pool shutdown: %w", err)
	}
	return nil
}
