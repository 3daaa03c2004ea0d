// Package memstore is the in-process job cache: a map guarded by one
// mutex, admission-checked against max_active_jobs and evicted by TTL
// and approximate memory pressure.
package memstore

import (
	"sort"
	"sync"
	"time"

	"github.com/fiberplan/planning-service/internal/jobstore"
)

// chunkResultOverhead and entryBaseOverhead approximate the serialized
// size of one chunk result and one job entry's fixed fields, used only
// for the memory-pressure eviction estimate. The budget only needs to
// hold within an order of magnitude.
const (
	chunkResultOverhead = 128
	entryBaseOverhead   = 256
)

// entry is one cached job plus the bookkeeping fields eviction needs
// that don't belong on the shared jobstore.Job type.
type entry struct {
	job           jobstore.Job
	lastUpdatedAt time.Time
}

// Cache is the in-memory job store. All access goes through mu; no
// method blocks on I/O, so holding the lock across a call is safe.
type Cache struct {
	mu             sync.Mutex
	jobs           map[string]*entry
	retention      time.Duration
	maxMemoryBytes int64
	evictions      map[string]int // reason -> count, drained by DrainEvictionCounts
}

// New constructs an empty Cache. retention is the TTL for terminal
// entries; maxMemoryBytes is the approximate-size budget that triggers
// memory-pressure eviction.
func New(retention time.Duration, maxMemoryBytes int64) *Cache {
	return &Cache{
		jobs:           make(map[string]*entry),
		retention:      retention,
		maxMemoryBytes: maxMemoryBytes,
		evictions:      make(map[string]int),
	}
}

// CreateIfCapacity admits a new queued job if fewer than maxActive
// entries are currently queued or processing. Returns (nil, false) when
// at capacity. Atomic with respect to other admissions: the whole
// check-then-insert runs under mu.
func (c *Cache) CreateIfCapacity(jobID string, totalPoints int, chunkSizes []int, maxActive int) (*jobstore.Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeCountLocked() >= maxActive {
		return nil, false
	}

	now := time.Now()
	job := jobstore.Job{
		JobID:       jobID,
		TotalPoints: totalPoints,
		TotalChunks: len(chunkSizes),
		ChunkSizes:  chunkSizes,
		Status:      jobstore.StatusQueued,
		CreatedAt:   now,
		Results:     make([]jobstore.ChunkResult, 0, len(chunkSizes)),
	}
	c.jobs[jobID] = &entry{job: job, lastUpdatedAt: now}
	return &job, true
}

// SetJob inserts or overwrites a cache entry wholesale, used by
// jobstore.Store to seed the cache after hydrating from the durable
// layer.
func (c *Cache) SetJob(job jobstore.Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs[job.JobID] = &entry{job: job, lastUpdatedAt: time.Now()}
}

// GetJob returns a copy of the cached job, or (zero, false) on miss.
func (c *Cache) GetJob(jobID string) (jobstore.Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.jobs[jobID]
	if !ok {
		return jobstore.Job{}, false
	}
	return e.job, true
}

// UpdateJob applies mutate to the cached job under the lock and refreshes
// last_updated_at. Returns false if the job isn't cached.
func (c *Cache) UpdateJob(jobID string, mutate func(*jobstore.Job)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.jobs[jobID]
	if !ok {
		return false
	}
	mutate(&e.job)
	e.lastUpdatedAt = time.Now()
	return true
}

// AppendResult appends a chunk result, updates the rolling
// average/max/total duration, and bumps the processed/failed counters.
// Returns false if the job isn't cached.
func (c *Cache) AppendResult(jobID string, result jobstore.ChunkResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.jobs[jobID]
	if !ok {
		return false
	}

	job := &e.job
	job.Results = append(job.Results, result)
	job.ProcessedChunks++
	if result.Status == jobstore.ChunkFailed {
		job.FailedChunks++
	}

	n := float64(len(job.Results))
	job.TotalDurationMs += result.DurationMs
	job.AvgDurationMs = job.TotalDurationMs / n
	if result.DurationMs > job.MaxDurationMs {
		job.MaxDurationMs = result.DurationMs
	}

	e.lastUpdatedAt = time.Now()
	return true
}

// PopJob removes a job from the cache, returning it if present.
func (c *Cache) PopJob(jobID string) (jobstore.Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.jobs[jobID]
	if !ok {
		return jobstore.Job{}, false
	}
	delete(c.jobs, jobID)
	return e.job, true
}

// ActiveJobCount returns the number of queued+processing entries.
func (c *Cache) ActiveJobCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeCountLocked()
}

func (c *Cache) activeCountLocked() int {
	n := 0
	for _, e := range c.jobs {
		if !e.job.Status.Terminal() {
			n++
		}
	}
	return n
}

// CleanupFinished evicts terminal entries older than retention, then
// enforces the memory-pressure budget. Called on every upload_batch and
// job_status read, matching the eviction trigger points.
func (c *Cache) CleanupFinished() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpiredLocked()
	c.enforceMemoryLimitLocked()
}

// EnforceMemoryLimit runs only the memory-pressure pass, used once per
// job after its terminal transition.
func (c *Cache) EnforceMemoryLimit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enforceMemoryLimitLocked()
}

func (c *Cache) evictExpiredLocked() {
	if c.retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-c.retention)
	evicted := 0
	for id, e := range c.jobs {
		if !e.job.Status.Terminal() {
			continue
		}
		if c.ageAnchor(e).Before(cutoff) {
			delete(c.jobs, id)
			evicted++
		}
	}
	if evicted > 0 {
		c.evictions["ttl"] += evicted
	}
}

// ageAnchor picks the timestamp eviction ages against: finished_at, else
// last_updated_at, else created_at.
func (c *Cache) ageAnchor(e *entry) time.Time {
	if !e.job.FinishedAt.IsZero() {
		return e.job.FinishedAt
	}
	if !e.lastUpdatedAt.IsZero() {
		return e.lastUpdatedAt
	}
	return e.job.CreatedAt
}

func (c *Cache) enforceMemoryLimitLocked() {
	if c.maxMemoryBytes <= 0 {
		return
	}
	if c.approxSizeLocked() <= c.maxMemoryBytes {
		return
	}

	type candidate struct {
		id  string
		age time.Time
	}
	var candidates []candidate
	for id, e := range c.jobs {
		if !e.job.Status.Terminal() {
			continue
		}
		candidates = append(candidates, candidate{id: id, age: c.ageAnchor(e)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].age.Before(candidates[j].age)
	})

	evicted := 0
	for _, cand := range candidates {
		if c.approxSizeLocked() <= c.maxMemoryBytes {
			break
		}
		delete(c.jobs, cand.id)
		evicted++
	}
	if evicted > 0 {
		c.evictions["memory_pressure"] += evicted
	}
}

// approxSizeLocked estimates the total serialized size of every cached
// entry: a per-entry fixed overhead plus a per-chunk-result overhead,
// substituting for a real json.Marshal-then-len measurement per the
// memory budget's order-of-magnitude tolerance.
func (c *Cache) approxSizeLocked() int64 {
	var total int64
	for _, e := range c.jobs {
		total += entryBaseOverhead + int64(len(e.job.Results))*chunkResultOverhead
	}
	return total
}

// DrainEvictionCounts returns and resets the accumulated eviction counts
// by reason, for the composite jobstore to forward to obs.Metrics.
func (c *Cache) DrainEvictionCounts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	drained := c.evictions
	c.evictions = make(map[string]int)
	return drained
}
