// Package pgstore is the durable job layer: two Postgres tables
// (batch_jobs, batch_chunk_results) accessed through short-lived,
// per-call operations, never a long transaction spanning chunk
// execution.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fiberplan/planning-service/internal/jobstore"
)

// DB is the durable job store, backed by *sql.DB opened against a
// PostgreSQL DSN via the "pgx" driver (see cmd/planningd wiring).
type DB struct {
	db *sql.DB
}

// New wraps an already-open *sql.DB. The database/sql driver used to
// open it is the caller's concern (pgx/v5/stdlib in production, any
// compatible driver in tests).
func New(db *sql.DB) *DB {
	return &DB{db: db}
}

// EnsureSchema creates batch_jobs and batch_chunk_results if absent,
// along with the indices the read paths depend on.
func (d *DB) EnsureSchema(ctx context.Context) error {
	const jobsTable = `
		CREATE TABLE IF NOT EXISTS batch_jobs (
			job_id uuid PRIMARY KEY,
			total_points int NOT NULL,
			total_chunks int NOT NULL,
			processed_chunks int NOT NULL DEFAULT 0,
			failed_chunks int NOT NULL DEFAULT 0,
			status text NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now(),
			started_at timestamptz,
			finished_at timestamptz,
			error_message text
		)`
	const jobsStatusIndex = `CREATE INDEX IF NOT EXISTS idx_batch_jobs_status ON batch_jobs (status)`
	const chunkResultsTable = `
		CREATE TABLE IF NOT EXISTS batch_chunk_results (
			id serial PRIMARY KEY,
			job_id uuid NOT NULL REFERENCES batch_jobs (job_id) ON DELETE CASCADE,
			chunk_index int NOT NULL,
			processed_points int NOT NULL,
			status text NOT NULL,
			error_message text,
			duration_ms int NOT NULL
		)`
	const chunkResultsJobIndex = `CREATE INDEX IF NOT EXISTS idx_batch_chunk_results_job_id ON batch_chunk_results (job_id)`

	for _, stmt := range []string{jobsTable, jobsStatusIndex, chunkResultsTable, chunkResultsJobIndex} {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// CreateJob inserts a new queued job row.
func (d *DB) CreateJob(ctx context.Context, jobID string, totalPoints, totalChunks int) error {
	const query = `
		INSERT INTO batch_jobs (job_id, total_points, total_chunks, status)
		VALUES ($1, $2, $3, $4)`
	_, err := d.db.ExecContext(ctx, query, jobID, totalPoints, totalChunks, jobstore.StatusQueued)
	if err != nil {
		return fmt.Errorf("create_job: %w", err)
	}
	return nil
}

// UpdateJobStatus transitions a job's status, optionally stamping
// started_at/finished_at and recording an error message.
func (d *DB) UpdateJobStatus(ctx context.Context, jobID string, status jobstore.Status, setStarted, setFinished bool, errorMessage string) error {
	query := `UPDATE batch_jobs SET status = $1`
	args := []any{status}
	argn := 2

	if setStarted {
		query += ", started_at = now()"
	}
	if setFinished {
		query += ", finished_at = now()"
	}
	if errorMessage != "" {
		query += fmt.Sprintf(", error_message = $%d", argn)
		args = append(args, errorMessage)
		argn++
	}
	query += fmt.Sprintf(" WHERE job_id = $%d", argn)
	args = append(args, jobID)

	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update_job_status: %w", err)
	}
	return nil
}

// PersistChunkResult inserts one chunk result and atomically increments
// processed_chunks (and failed_chunks when the chunk failed) in a single
// transaction.
func (d *DB) PersistChunkResult(ctx context.Context, jobID string, result jobstore.ChunkResult) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist_chunk_result: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insert = `
		INSERT INTO batch_chunk_results (job_id, chunk_index, processed_points, status, error_message, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(ctx, insert, jobID, result.ChunkIndex, result.ProcessedPoints, result.Status, nullableString(result.ErrorMessage), int(result.DurationMs)); err != nil {
		return fmt.Errorf("persist_chunk_result: insert: %w", err)
	}

	const update = `
		UPDATE batch_jobs
		SET processed_chunks = processed_chunks + 1,
		    failed_chunks = failed_chunks + CASE WHEN $2 = $3 THEN 1 ELSE 0 END
		WHERE job_id = $1`
	if _, err := tx.ExecContext(ctx, update, jobID, result.Status, jobstore.ChunkFailed); err != nil {
		return fmt.Errorf("persist_chunk_result: update counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persist_chunk_result: commit: %w", err)
	}
	return nil
}

// GetJob reads a job row, or (nil, false, nil) if it doesn't exist.
func (d *DB) GetJob(ctx context.Context, jobID string) (*jobstore.Job, bool, error) {
	const query = `
		SELECT job_id, total_points, total_chunks, processed_chunks, failed_chunks,
		       status, created_at, started_at, finished_at, error_message
		FROM batch_jobs WHERE job_id = $1`

	var (
		job          jobstore.Job
		startedAt    sql.NullTime
		finishedAt   sql.NullTime
		errorMessage sql.NullString
	)
	row := d.db.QueryRowContext(ctx, query, jobID)
	err := row.Scan(&job.JobID, &job.TotalPoints, &job.TotalChunks, &job.ProcessedChunks, &job.FailedChunks,
		&job.Status, &job.CreatedAt, &startedAt, &finishedAt, &errorMessage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get_job: %w", err)
	}
	job.StartedAt = startedAt.Time
	job.FinishedAt = finishedAt.Time
	job.ErrorMessage = errorMessage.String
	return &job, true, nil
}

// GetChunkResults reads every chunk result for a job, ordered by
// chunk_index.
func (d *DB) GetChunkResults(ctx context.Context, jobID string) ([]jobstore.ChunkResult, error) {
	const query = `
		SELECT chunk_index, processed_points, status, COALESCE(error_message, ''), duration_ms
		FROM batch_chunk_results
		WHERE job_id = $1
		ORDER BY chunk_index`

	rows, err := d.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("get_chunk_results: %w", err)
	}
	defer rows.Close()

	var results []jobstore.ChunkResult
	for rows.Next() {
		var (
			r          jobstore.ChunkResult
			durationMs int
		)
		if err := rows.Scan(&r.ChunkIndex, &r.ProcessedPoints, &r.Status, &r.ErrorMessage, &durationMs); err != nil {
			return nil, fmt.Errorf("get_chunk_results: scan: %w", err)
		}
		r.DurationMs = float64(durationMs)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get_chunk_results: %w", err)
	}
	return results, nil
}

// ActiveJobCount counts durable jobs not yet in a terminal state.
func (d *DB) ActiveJobCount(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM batch_jobs WHERE status IN ($1, $2)`
	var count int
	row := d.db.QueryRowContext(ctx, query, jobstore.StatusQueued, jobstore.StatusProcessing)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("active_job_count: %w", err)
	}
	return count, nil
}

// MarkIncompleteJobsFailed is the startup recovery pass: every job not
// in a terminal state is marked failed with a fixed restart message.
// Returns the number of jobs affected.
func (d *DB) MarkIncompleteJobsFailed(ctx context.Context) (int, error) {
	const query = `
		UPDATE batch_jobs
		SET status = $1, finished_at = now(), error_message = $2
		WHERE status IN ($3, $4)`
	res, err := d.db.ExecContext(ctx, query,
		jobstore.StatusFailed, "Server restarted during execution.",
		jobstore.StatusQueued, jobstore.StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("mark_incomplete_jobs_failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark_incomplete_jobs_failed: rows affected: %w", err)
	}
	return int(n), nil
}

// Metrics returns counts by status plus average chunk and job durations.
func (d *DB) Metrics(ctx context.Context) (jobstore.Metrics, error) {
	metrics := jobstore.Metrics{CountByStatus: make(map[jobstore.Status]int)}

	const statusQuery = `SELECT status, COUNT(*) FROM batch_jobs GROUP BY status`
	rows, err := d.db.QueryContext(ctx, statusQuery)
	if err != nil {
		return metrics, fmt.Errorf("metrics: status counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status jobstore.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return metrics, fmt.Errorf("metrics: scan status counts: %w", err)
		}
		metrics.CountByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return metrics, fmt.Errorf("metrics: status counts: %w", err)
	}

	const chunkAvgQuery = `SELECT COALESCE(AVG(duration_ms), 0) FROM batch_chunk_results`
	if err := d.db.QueryRowContext(ctx, chunkAvgQuery).Scan(&metrics.AvgChunkDurationMs); err != nil {
		return metrics, fmt.Errorf("metrics: avg chunk duration: %w", err)
	}

	const jobAvgQuery = `
		SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (finished_at - started_at)) * 1000), 0)
		FROM batch_jobs
		WHERE started_at IS NOT NULL AND finished_at IS NOT NULL`
	if err := d.db.QueryRowContext(ctx, jobAvgQuery).Scan(&metrics.AvgJobDurationMs); err != nil {
		return metrics, fmt.Errorf("metrics: avg job duration: %w", err)
	}

	return metrics, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
