package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus-compatible instrumentation for the batch-job
// subsystem and the routing pipeline: a small set of gauges, histograms,
// and counters registered once at construction and updated via plain
// methods so the orchestrator, executor, and routing packages never
// import prometheus directly.
//
// Metrics exposed (all namespaced "planning"):
//
//  1. jobs_active (gauge): jobs currently queued or processing.
//  2. jobs_admitted_total / jobs_completed_total / jobs_failed_total
//     (counters): terminal and admission outcomes.
//  3. chunk_duration_ms (histogram): wall time per chunk, labeled by status.
//  4. chunk_timeouts_total (counter): chunks that hit the per-chunk deadline.
//  5. cache_evictions_total (counter): cache entries removed by TTL or
//     memory-pressure eviction, labeled by reason.
//  6. route_duration_ms (histogram): single-point route computation time,
//     labeled by outcome code.
type Metrics struct {
	jobsActive     prometheus.Gauge
	jobsAdmitted   prometheus.Counter
	jobsCompleted  prometheus.Counter
	jobsFailed     prometheus.Counter
	chunkDuration  *prometheus.HistogramVec
	chunkTimeouts  prometheus.Counter
	cacheEvictions *prometheus.CounterVec
	routeDuration  *prometheus.HistogramVec
}

// NewMetrics registers every collector with the given registry. A nil
// registry uses prometheus.DefaultRegisterer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		jobsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "planning",
			Name:      "jobs_active",
			Help:      "Number of batch jobs currently queued or processing.",
		}),
		jobsAdmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "planning",
			Name:      "jobs_admitted_total",
			Help:      "Total batch jobs accepted by upload_batch.",
		}),
		jobsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "planning",
			Name:      "jobs_completed_total",
			Help:      "Total batch jobs that reached status=completed.",
		}),
		jobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "planning",
			Name:      "jobs_failed_total",
			Help:      "Total batch jobs that reached status=failed.",
		}),
		chunkDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "planning",
			Name:      "chunk_duration_ms",
			Help:      "Chunk processing wall time in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000},
		}, []string{"status"}),
		chunkTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "planning",
			Name:      "chunk_timeouts_total",
			Help:      "Total chunks that exceeded chunk_timeout_seconds.",
		}),
		cacheEvictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planning",
			Name:      "cache_evictions_total",
			Help:      "Total job cache entries evicted, labeled by reason.",
		}, []string{"reason"}), // reason: ttl, memory_pressure
		routeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "planning",
			Name:      "route_duration_ms",
			Help:      "Single-point route computation time in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000},
		}, []string{"outcome"}),
	}
}

// SetJobsActive sets the current queued+processing job count.
func (m *Metrics) SetJobsActive(n int) {
	if m == nil {
		return
	}
	m.jobsActive.Set(float64(n))
}

// IncJobsAdmitted increments the admitted-job counter.
func (m *Metrics) IncJobsAdmitted() {
	if m == nil {
		return
	}
	m.jobsAdmitted.Inc()
}

// IncJobsTerminal increments the completed or failed counter.
func (m *Metrics) IncJobsTerminal(failed bool) {
	if m == nil {
		return
	}
	if failed {
		m.jobsFailed.Inc()
		return
	}
	m.jobsCompleted.Inc()
}

// ObserveChunkDuration records a chunk's wall-clock duration in
// milliseconds, labeled by its terminal status ("ok" or "failed").
func (m *Metrics) ObserveChunkDuration(durationMs float64, status string) {
	if m == nil {
		return
	}
	m.chunkDuration.WithLabelValues(status).Observe(durationMs)
}

// IncChunkTimeouts increments the chunk-timeout counter.
func (m *Metrics) IncChunkTimeouts() {
	if m == nil {
		return
	}
	m.chunkTimeouts.Inc()
}

// IncCacheEvictions increments the cache-eviction counter for the given
// reason ("ttl" or "memory_pressure").
func (m *Metrics) IncCacheEvictions(reason string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.cacheEvictions.WithLabelValues(reason).Add(float64(count))
}

// ObserveRouteDuration records a single-point route computation's
// wall-clock duration in milliseconds, labeled by outcome code (e.g. "ok",
// "outside_franchise").
func (m *Metrics) ObserveRouteDuration(durationMs float64, outcome string) {
	if m == nil {
		return
	}
	m.routeDuration.WithLabelValues(outcome).Observe(durationMs)
}
