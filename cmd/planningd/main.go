// Command planningd serves the geographic routing and batch-upload API:
// single-point routing backed by PostGIS/pgRouting, and asynchronous
// batch jobs dispatched over a bounded worker pool.
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/fiberplan/planning-service/internal/chunkproc"
	"github.com/fiberplan/planning-service/internal/config"
	"github.com/fiberplan/planning-service/internal/executor"
	"github.com/fiberplan/planning-service/internal/httpapi"
	"github.com/fiberplan/planning-service/internal/jobstore"
	"github.com/fiberplan/planning-service/internal/jobstore/memstore"
	"github.com/fiberplan/planning-service/internal/jobstore/pgstore"
	"github.com/fiberplan/planning-service/internal/lifecycle"
	"github.com/fiberplan/planning-service/internal/obs"
	"github.com/fiberplan/planning-service/internal/orchestrator"
	"github.com/fiberplan/planning-service/internal/routing"
	"github.com/fiberplan/planning-service/internal/spatial"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("planningd: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()

	// 1. Spatial gateway — the read path for routing and catalog queries.
	gateway, err := spatial.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}

	// 2. Durable job store — a second connection pool, since its
	// workload (short read/write transactions under the executor
	// pools) is independent of the spatial gateway's.
	jobsDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	jobsDB.SetMaxOpenConns(25)
	jobsDB.SetMaxIdleConns(5)
	jobsDB.SetConnMaxLifetime(5 * time.Minute)

	// 3. Observability — one Prometheus registry, one emitter fan-out
	// to structured logs and OTel spans.
	registry := prometheus.NewRegistry()
	metrics := obs.NewMetrics(registry)
	emitter := obs.NewMultiEmitter(obs.NewLogEmitter(os.Stdout, false), obs.NewOTelEmitter())

	// 4. Job store composing the in-process cache with the durable layer.
	cache := memstore.New(cfg.JobRetention(), int64(cfg.MaxStoredResultsMemoryMB)*1024*1024)
	durableStore := pgstore.New(jobsDB)
	store := jobstore.New(cache, durableStore, uuid.NewString, emitter, metrics, cfg.BatchChunkSize)

	// 5. Routing and the two executor pools driving batch dispatch.
	router := routing.New(gateway, emitter, metrics, cfg.DefaultCostPerMeter)
	jobPool := executor.NewJobPool(cfg.ExecutorMaxWorkers, cfg.MaxActiveJobs)
	chunkPool := executor.NewChunkPool(cfg.ChunkExecutorMaxWorkers)
	processor := &chunkproc.RoutingProcessor{Router: router}

	orch := orchestrator.New(store, jobPool, chunkPool, processor, router, orchestrator.Config{
		SecureMaxPoints:     config.SecureMaxPoints,
		MaxBatchCoordinates: cfg.MaxBatchCoordinates,
		ChunkSize:           cfg.BatchChunkSize,
		MaxActiveJobs:       cfg.MaxActiveJobs,
		ChunkTimeout:        cfg.ChunkTimeout(),
		ExecutorMaxWorkers:  cfg.ExecutorMaxWorkers,
	}, emitter, metrics)

	manager := lifecycle.New(store, log.Default(), orch, lifecycle.AsCloser(gateway), lifecycle.AsCloser(jobsDB))
	if err := manager.Start(ctx); err != nil {
		return err
	}

	api := httpapi.New(orch, gateway, cfg.MaxRequestBodyBytes)
	mux := http.NewServeMux()
	mux.Handle("/", api.Routes())
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    ":8080",
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Println("planningd listening on :8080")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Println("planningd: shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("planningd: http shutdown: %v", err)
	}
	return manager.Stop(shutdownCtx)
}
