// Package config loads runtime settings for the planning service from
// environment variables, with defaults matching a development deployment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidDatabaseURL   = errors.New("database_url must not be empty")
	ErrInvalidPositive      = errors.New("value must be positive")
	ErrMaxActiveJobs        = errors.New("max_active_jobs must be positive")
	ErrChunkSize            = errors.New("batch_chunk_size must be positive")
	ErrMaxBatchCoordinates  = errors.New("max_batch_coordinates must be positive")
	ErrMaxStoredResultsMB   = errors.New("max_stored_results_memory_mb must be positive")
)

// SecureMaxPoints is the hard ceiling on a single batch upload, independent
// of the configurable max_batch_coordinates soft default.
const SecureMaxPoints = 100000

// Config holds every tunable named in the service's configuration table.
type Config struct {
	DatabaseURL               string        `mapstructure:"database_url"`
	DefaultCostPerMeter        float64       `mapstructure:"default_cost_per_meter"`
	MaxBatchCoordinates        int           `mapstructure:"max_batch_coordinates"`
	BatchChunkSize             int           `mapstructure:"batch_chunk_size"`
	MaxRequestBodyBytes        int64         `mapstructure:"max_request_body_bytes"`
	RateLimitWindowSeconds     int           `mapstructure:"rate_limit_window_seconds"`
	RateLimitRequestsPerWindow int           `mapstructure:"rate_limit_requests_per_window"`
	RequestTimeoutSeconds      int           `mapstructure:"request_timeout_seconds"`
	MockChunkDelaySeconds      float64       `mapstructure:"mock_chunk_delay_seconds"`
	JobRetentionSeconds        int           `mapstructure:"job_retention_seconds"`
	ExecutorMaxWorkers         int           `mapstructure:"executor_max_workers"`
	MaxActiveJobs              int           `mapstructure:"max_active_jobs"`
	ChunkTimeoutSeconds        int           `mapstructure:"chunk_timeout_seconds"`
	ChunkExecutorMaxWorkers    int           `mapstructure:"chunk_executor_max_workers"`
	MaxStoredResultsMemoryMB   int           `mapstructure:"max_stored_results_memory_mb"`
	LogLevel                   string        `mapstructure:"log_level"`
}

// ChunkTimeout returns ChunkTimeoutSeconds as a time.Duration.
func (c Config) ChunkTimeout() time.Duration {
	return time.Duration(c.ChunkTimeoutSeconds) * time.Second
}

// RequestTimeout returns RequestTimeoutSeconds as a time.Duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// MockChunkDelay returns MockChunkDelaySeconds as a time.Duration.
func (c Config) MockChunkDelay() time.Duration {
	return time.Duration(c.MockChunkDelaySeconds * float64(time.Second))
}

// JobRetention returns JobRetentionSeconds as a time.Duration.
func (c Config) JobRetention() time.Duration {
	return time.Duration(c.JobRetentionSeconds) * time.Second
}

// Load reads configuration from the environment (prefixed PLANNING_) layered
// on top of built-in defaults, then validates the result.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PLANNING")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Allow an unprefixed DATABASE_URL, the conventional name most
	// deployment tooling already sets.
	_ = v.BindEnv("database_url", "PLANNING_DATABASE_URL", "DATABASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database_url", "")
	v.SetDefault("default_cost_per_meter", 700.0)
	v.SetDefault("max_batch_coordinates", 50000)
	v.SetDefault("batch_chunk_size", 1000)
	v.SetDefault("max_request_body_bytes", 5_000_000)
	v.SetDefault("rate_limit_window_seconds", 60)
	v.SetDefault("rate_limit_requests_per_window", 10)
	v.SetDefault("request_timeout_seconds", 30)
	v.SetDefault("mock_chunk_delay_seconds", 0.02)
	v.SetDefault("job_retention_seconds", 300)
	v.SetDefault("executor_max_workers", 3)
	v.SetDefault("max_active_jobs", 5)
	v.SetDefault("chunk_timeout_seconds", 30)
	v.SetDefault("chunk_executor_max_workers", 8)
	v.SetDefault("max_stored_results_memory_mb", 200)
	v.SetDefault("log_level", "INFO")
}

// Validate rejects configuration combinations that can never produce a
// working service, so misconfiguration fails at startup rather than at
// first request.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrInvalidDatabaseURL
	}
	if c.MaxBatchCoordinates <= 0 {
		return ErrMaxBatchCoordinates
	}
	if c.BatchChunkSize <= 0 {
		return ErrChunkSize
	}
	if c.MaxActiveJobs <= 0 {
		return ErrMaxActiveJobs
	}
	if c.ExecutorMaxWorkers <= 0 {
		return fmt.Errorf("executor_max_workers: %w", ErrInvalidPositive)
	}
	if c.ChunkExecutorMaxWorkers <= 0 {
		return fmt.Errorf("chunk_executor_max_workers: %w", ErrInvalidPositive)
	}
	if c.ChunkTimeoutSeconds <= 0 {
		return fmt.Errorf("chunk_timeout_seconds: %w", ErrInvalidPositive)
	}
	if c.MaxStoredResultsMemoryMB <= 0 {
		return ErrMaxStoredResultsMB
	}
	return nil
}
