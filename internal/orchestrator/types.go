package orchestrator

import "github.com/fiberplan/planning-service/internal/jobstore"

// Coordinate is one point in an upload-batch request.
type Coordinate struct {
	ID  int     `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// UploadResponse is the 202 body for upload_batch.
type UploadResponse struct {
	JobID       string          `json:"job_id"`
	Status      jobstore.Status `json:"status"`
	TotalPoints int             `json:"total_points"`
	TotalChunks int             `json:"total_chunks"`
	ChunkSizes  []int           `json:"chunk_sizes"`
}

// StatusResponse is the body for job_status.
type StatusResponse struct {
	JobID           string          `json:"job_id"`
	Status          jobstore.Status `json:"status"`
	TotalPoints     int             `json:"total_points"`
	TotalChunks     int             `json:"total_chunks"`
	ProcessedChunks int             `json:"processed_chunks"`
	FailedChunks    int             `json:"failed_chunks"`
	ErrorMessage    string          `json:"error_message,omitempty"`
}

// ResultResponse is the body for job_result.
type ResultResponse struct {
	JobID           string                 `json:"job_id"`
	Status          jobstore.Status        `json:"status"`
	TotalPoints     int                    `json:"total_points"`
	ProcessedChunks int                    `json:"processed_chunks"`
	FailedChunks    int                    `json:"failed_chunks"`
	ErrorMessage    string                 `json:"error_message,omitempty"`
	Results         []jobstore.ChunkResult `json:"chunk_results"`
	AvgDurationMs   float64                `json:"avg_chunk_duration_ms"`
	MaxDurationMs   float64                `json:"max_chunk_duration_ms"`
}

// MetricsResponse is the body for jobs_metrics.
type MetricsResponse struct {
	CountByStatus      map[jobstore.Status]int `json:"count_by_status"`
	AvgChunkDurationMs float64                 `json:"avg_chunk_duration_ms"`
	AvgJobDurationMs   float64                 `json:"avg_job_duration_ms"`
	MaxActiveJobs      int                     `json:"max_active_jobs"`
	ExecutorMaxWorkers int                     `json:"executor_max_workers"`
}
