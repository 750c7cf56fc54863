// Package executor provides the run strategies that decide how many workers
// run and for how long.
package executor

import (
	"context"
	"time"

	"github.com/wesleyorama2/kvlunge/internal/performance"
)

// Type identifies a run strategy.
type Type string

const (
	// TypeConstantWorkers runs a fixed number of workers for a duration.
	TypeConstantWorkers Type = "constant-workers"

	// TypePerWorkerIterations runs a fixed number of iterations per worker.
	TypePerWorkerIterations Type = "per-worker-iterations"

	// TypeSharedIterations shares a total iteration count across workers.
	TypeSharedIterations Type = "shared-iterations"
)

// Executor defines the interface for run strategies.
//
// Each worker runs as fast as its store calls allow (closed model). An
// optional pacer or throughput governor is applied by the workers, not by
// the strategy.
type Executor interface {
	// Type returns the strategy type.
	Type() Type

	// Init validates and stores the configuration. Called once before Run.
	Init(ctx context.Context, config *Config) error

	// Run spawns workers from pool and blocks until they have all stopped.
	// The returned error aggregates worker failures.
	Run(ctx context.Context, pool *performance.WorkerPool) error

	// GetProgress returns current progress (0.0 to 1.0).
	GetProgress() float64

	// GetActiveWorkers returns the number of running workers.
	GetActiveWorkers() int

	// GetStats returns strategy statistics.
	GetStats() *Stats

	// Stop ends the run early and waits for the workers.
	Stop(ctx context.Context) error
}

// Config contains configuration for a run strategy.
type Config struct {
	Type       Type          `json:"type" yaml:"type"`
	Workers    int           `json:"workers" yaml:"workers"`
	Duration   time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	Iterations int64         `json:"iterations,omitempty" yaml:"iterations,omitempty"`

	// GracefulStop bounds how long Stop waits for in-flight iterations.
	GracefulStop time.Duration `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`
}

// Stats contains real-time strategy statistics.
type Stats struct {
	StartTime     time.Time     `json:"startTime"`
	CurrentTime   time.Time     `json:"currentTime"`
	Elapsed       time.Duration `json:"elapsed"`
	TotalDuration time.Duration `json:"totalDuration"`

	ActiveWorkers int `json:"activeWorkers"`
	TargetWorkers int `json:"targetWorkers"`

	Iterations      int64 `json:"iterations"`
	TotalIterations int64 `json:"totalIterations"`
	Throttled       int64 `json:"throttled"`
}

// Validate validates the strategy configuration.
func (c *Config) Validate() error {
	if c.Type == "" {
		return &ValidationError{Field: "type", Message: "executor type is required"}
	}
	if c.Workers <= 0 {
		return &ValidationError{Field: "workers", Message: "workers must be > 0"}
	}

	switch c.Type {
	case TypeConstantWorkers:
		if c.Duration <= 0 {
			return &ValidationError{Field: "duration", Message: "duration must be > 0"}
		}
	case TypePerWorkerIterations, TypeSharedIterations:
		if c.Iterations <= 0 {
			return &ValidationError{Field: "iterations", Message: "iterations must be > 0"}
		}
	default:
		return &ValidationError{Field: "type", Message: "unknown executor type: " + string(c.Type)}
	}
	return nil
}

// TotalDuration returns the configured duration, or zero for
// iteration-bounded strategies.
func (c *Config) TotalDuration() time.Duration {
	if c.Type == TypeConstantWorkers {
		return c.Duration
	}
	return 0
}

// TotalIterations returns the iteration budget over all workers, or zero
// for duration-bounded strategies.
func (c *Config) TotalIterations() int64 {
	switch c.Type {
	case TypePerWorkerIterations:
		return c.Iterations * int64(c.Workers)
	case TypeSharedIterations:
		return c.Iterations
	default:
		return 0
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation error on field '" + e.Field + "': " + e.Message
}
