package perf

import (
	"context"

	"go.uber.org/zap"

	"github.com/wesleyorama2/kvlunge/internal/performance/engine"
	"github.com/wesleyorama2/kvlunge/internal/performance/store"
	"github.com/wesleyorama2/kvlunge/perf/config"
	"github.com/wesleyorama2/kvlunge/perf/metrics"
)

// TestResult contains the complete results of a run.
type TestResult = engine.Result

// ThresholdResult contains the result of a single threshold evaluation.
type ThresholdResult = engine.ThresholdResult

// Store is the key/value interface a run drives.
type Store = store.Store

// Option configures a Runner.
type Option = engine.Option

// WithLogger sets the logger used during the run.
func WithLogger(logger *zap.Logger) Option {
	return engine.WithLogger(logger)
}

// WithStores runs against the given stores, keyed by target name, instead
// of opening the configured targets.
func WithStores(stores map[string]Store) Option {
	return engine.WithStores(stores)
}

// Runner provides a high-level API for running load tests.
//
//	cfg, _ := config.LoadConfig("mix.yaml")
//	runner, _ := perf.NewRunner(cfg)
//	result, _ := runner.Run(context.Background())
type Runner struct {
	engine *engine.Engine
}

// NewRunner validates cfg and prepares a run. Defaults are applied to cfg.
func NewRunner(cfg *config.RunConfig, opts ...Option) (*Runner, error) {
	eng, err := engine.NewEngine(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Runner{engine: eng}, nil
}

// Run executes the run and returns its result. Cancelling ctx ends the run
// early; the partial result is still returned.
func (r *Runner) Run(ctx context.Context) (*TestResult, error) {
	return r.engine.Run(ctx)
}

// Stop stops a run in progress.
func (r *Runner) Stop(ctx context.Context) error {
	return r.engine.Stop(ctx)
}

// GetMetrics returns the current metrics snapshot.
// Can be called during the run to get live metrics.
func (r *Runner) GetMetrics() *metrics.Snapshot {
	return r.engine.Snapshot()
}

// GetTimeSeries returns the time series recorded so far.
func (r *Runner) GetTimeSeries() []*metrics.TimeBucket {
	return r.engine.Recorder().TimeSeries()
}

// RunTest runs cfg to completion.
func RunTest(ctx context.Context, cfg *config.RunConfig, opts ...Option) (*TestResult, error) {
	runner, err := NewRunner(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx)
}
