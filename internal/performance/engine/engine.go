// Package engine runs a configured load test against one or more stores.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/wesleyorama2/kvlunge/internal/performance"
	"github.com/wesleyorama2/kvlunge/internal/performance/config"
	"github.com/wesleyorama2/kvlunge/internal/performance/executor"
	"github.com/wesleyorama2/kvlunge/internal/performance/generator"
	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
	"github.com/wesleyorama2/kvlunge/internal/performance/operation"
	"github.com/wesleyorama2/kvlunge/internal/performance/rate"
	"github.com/wesleyorama2/kvlunge/internal/performance/sequence"
	"github.com/wesleyorama2/kvlunge/internal/performance/store"
)

// Engine is the main orchestrator of a load test.
//
// It coordinates:
//   - Configuration validation and defaults
//   - Opening and closing the targets
//   - The optional warm-up and the measured run
//   - Metrics collection and threshold evaluation
//
// Example usage:
//
//	cfg, _ := config.LoadConfig("mix.yaml")
//	eng, _ := engine.NewEngine(cfg)
//	result, _ := eng.Run(context.Background())
//	fmt.Printf("Test passed: %v\n", result.Passed)
type Engine struct {
	config   *config.RunConfig
	logger   *zap.Logger
	recorder *metrics.Recorder

	// open overrides store.OpenAll.
	open func(ctx context.Context, cfgs []store.TargetConfig, logger *zap.Logger) ([]store.Target, error)

	mu        sync.RWMutex
	strategy  executor.Executor
	startTime time.Time
	running   bool
}

// Result contains the complete outcome of a run.
type Result struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Executor    string        `json:"executor"`
	Workload    string        `json:"workload"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	Duration    time.Duration `json:"duration"`

	// Iterations counts iterations of the measured phase, throttled ones
	// included.
	Iterations int64 `json:"iterations"`
	Throttled  int64 `json:"throttled"`

	Metrics    *metrics.Snapshot     `json:"metrics"`
	TimeSeries []*metrics.TimeBucket `json:"timeSeries,omitempty"`
	Phases     []metrics.PhaseChange `json:"phases,omitempty"`

	Passed     bool              `json:"passed"`
	Thresholds []ThresholdResult `json:"thresholds,omitempty"`

	// WorkerErrors lists workers that stopped early, such as on an
	// exhausted sequence.
	WorkerErrors []string `json:"workerErrors,omitempty"`

	// Interrupted is set when the run was cancelled before its bound.
	Interrupted bool `json:"interrupted,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder replaces the recorder built from the default configuration.
func WithRecorder(rec *metrics.Recorder) Option {
	return func(e *Engine) {
		if rec != nil {
			e.recorder = rec
		}
	}
}

// WithStores runs against already opened stores instead of opening the
// configured targets. Every target name must have a store; the engine
// closes them when the run ends.
func WithStores(stores map[string]store.Store) Option {
	return func(e *Engine) {
		e.open = func(_ context.Context, cfgs []store.TargetConfig, _ *zap.Logger) ([]store.Target, error) {
			targets := make([]store.Target, 0, len(cfgs))
			for _, c := range cfgs {
				s, ok := stores[c.Name]
				if !ok {
					return nil, fmt.Errorf("no store for target %q", c.Name)
				}
				targets = append(targets, store.Target{Name: c.Name, Store: store.WithPrefix(s, c.Prefix)})
			}
			return targets, nil
		}
	}
}

// NewEngine validates cfg, applies defaults and prepares the recorder. The
// recorder is available right away so it can be exported while the run is
// in progress.
func NewEngine(cfg *config.RunConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	config.ApplyDefaults(cfg)

	e := &Engine{
		config: cfg,
		logger: zap.NewNop(),
		open:   store.OpenAll,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.recorder == nil {
		rc := metrics.DefaultRecorderConfig()
		rc.Logger = e.logger
		e.recorder = metrics.NewRecorderWithConfig(rc)
	}

	names := make([]string, len(cfg.Targets))
	for i, t := range cfg.Targets {
		names[i] = t.Name
	}
	e.recorder.Register(names...)

	return e, nil
}

// Run opens the targets, performs the warm-up and the measured run and
// evaluates the thresholds.
//
// Cancelling ctx stops the workers after their current iteration; the
// partial result is still returned. A worker stopped by an exhausted
// sequence is reported in Result.WorkerErrors, not as an error. Any other
// failure is returned together with whatever result is available.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine is already running")
	}
	e.running = true
	e.startTime = time.Now()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()
	defer e.recorder.Stop()

	cfg := e.config
	e.recorder.SetPhase(metrics.PhaseInit)

	targets, err := e.open(ctx, cfg.TargetConfigs(), e.logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := store.CloseAll(targets); err != nil {
			e.logger.Warn("failed to close targets", zap.Error(err))
		}
	}()

	w, err := e.buildWorkload(targets)
	if err != nil {
		return nil, err
	}

	execCfg := cfg.ExecutorConfig()
	e.logger.Info("starting run",
		zap.String("name", cfg.Name),
		zap.String("executor", executor.Describe(execCfg)),
		zap.String("workload", w.description),
		zap.Int("targets", len(targets)))

	if warmup := time.Duration(cfg.Warmup); warmup > 0 {
		if err := e.warmup(ctx, w, warmup); err != nil {
			return nil, err
		}
	}

	e.recorder.Reset()
	if w.pacer != nil {
		w.pacer.Reset()
	}
	e.recorder.SetPhase(metrics.PhaseSteady)

	strategy, err := executor.CreateAndInitExecutor(ctx, execCfg)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.strategy = strategy
	e.mu.Unlock()

	pool := performance.NewWorkerPool(w.factory, w.pacerOrNil(), e.logger)
	runErr := strategy.Run(ctx, pool)

	e.recorder.SetPhase(metrics.PhaseDone)
	e.recorder.Stop()
	snap := e.recorder.Snapshot()

	thresholds, err := cfg.ResultThresholds()
	if err != nil {
		return nil, err
	}
	thresholdResults := evaluateThresholds(thresholds, snap)
	passed := true
	for _, tr := range thresholdResults {
		if !tr.Passed {
			passed = false
			break
		}
	}

	e.mu.RLock()
	start := e.startTime
	e.mu.RUnlock()
	end := time.Now()

	result := &Result{
		Name:         cfg.Name,
		Description:  cfg.Description,
		Executor:     executor.Describe(execCfg),
		Workload:     w.description,
		StartTime:    start,
		EndTime:      end,
		Duration:     end.Sub(start),
		Iterations:   pool.Iterations(),
		Throttled:    pool.Throttled(),
		Metrics:      snap,
		TimeSeries:   e.recorder.TimeSeries(),
		Phases:       e.recorder.PhaseHistory(),
		Passed:       passed,
		Thresholds:   thresholdResults,
		WorkerErrors: workerErrors(runErr),
		Interrupted:  ctx.Err() != nil,
	}

	e.logger.Info("run finished",
		zap.Int64("iterations", result.Iterations),
		zap.Int64("throttled", result.Throttled),
		zap.Uint64("operations", snap.TotalOperations),
		zap.Bool("passed", passed),
		zap.Int("workerErrors", len(result.WorkerErrors)))

	if runErr != nil && !onlyExhausted(runErr) {
		return result, runErr
	}
	return result, nil
}

// warmup runs constant workers for d and discards what they recorded.
func (e *Engine) warmup(ctx context.Context, w *workload, d time.Duration) error {
	e.recorder.SetPhase(metrics.PhaseWarmup)
	e.logger.Info("warming up", zap.Duration("duration", d))

	strategy, err := executor.CreateAndInitExecutor(ctx, &executor.Config{
		Type:     executor.TypeConstantWorkers,
		Workers:  e.config.Workers,
		Duration: d,
	})
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.strategy = strategy
	e.mu.Unlock()

	w.phase.Store(1)
	defer w.phase.Store(0)

	pool := performance.NewWorkerPool(w.factory, w.pacerOrNil(), e.logger.Named("warmup"))
	err = strategy.Run(ctx, pool)
	if err != nil && !onlyExhausted(err) {
		return fmt.Errorf("warm-up: %w", err)
	}
	if err != nil {
		e.logger.Warn("sequence exhausted during warm-up", zap.Error(err))
	}
	return nil
}

// workload holds what the worker executors share.
type workload struct {
	description string
	factory     performance.RunnerFactory
	pacer       *rate.Pacer

	// phase is folded into the kind selection seed; 1 during the warm-up.
	phase atomic.Uint64
}

// kindSeed is the kind selection seed of a worker in a phase. The measured
// phase is phase 0.
func kindSeed(seed uint64, workerID int, phase uint64) uint64 {
	return seed + uint64(workerID) + phase*0x9e3779b97f4a7c15
}

func (w *workload) pacerOrNil() performance.Pacer {
	if w.pacer == nil {
		return nil
	}
	return w.pacer
}

func (e *Engine) buildWorkload(targets []store.Target) (*workload, error) {
	cfg := e.config

	table, kind, err := cfg.Workload()
	if err != nil {
		return nil, err
	}
	keys, err := generator.New(cfg.KeySpec())
	if err != nil {
		return nil, fmt.Errorf("keys: %w", err)
	}
	values, err := generator.New(cfg.ValueSpec())
	if err != nil {
		return nil, fmt.Errorf("values: %w", err)
	}

	var gov operation.Governor
	if limit, result, ok, err := cfg.ThrottleSettings(); err != nil {
		return nil, err
	} else if ok {
		g, err := rate.NewGovernor(limit, result, e.recorder)
		if err != nil {
			return nil, err
		}
		e.logger.Info("throttle enabled", zap.Stringer("governor", g))
		gov = g
	}

	w := &workload{}
	if cfg.Pace > 0 {
		w.pacer = rate.NewPacer(cfg.Pace)
	}

	sources, err := newSourceSet(cfg.SequenceSpec(), cfg.Seed, cfg.Sequence.IsShared())
	if err != nil {
		return nil, err
	}

	w.factory = func(workerID int) (performance.Runner, error) {
		src, err := sources.get(workerID)
		if err != nil {
			return nil, err
		}
		return operation.NewExecutor(operation.Config{
			Kind:     kind,
			Weights:  table,
			Source:   src,
			Keys:     keys,
			Values:   values,
			Targets:  targets,
			Recorder: e.recorder,
			Governor: gov,
			BulkSize: cfg.BulkSize,
			Seed:     kindSeed(cfg.Seed, workerID, w.phase.Load()),
			Logger:   e.logger.With(zap.Int("worker", workerID)),
		})
	}

	// Description is taken from an executor that never runs.
	sample, err := w.factory(0)
	if err != nil {
		return nil, err
	}
	w.description = sample.(*operation.Executor).Description()
	return w, nil
}

// sourceSet hands out sequence sources. A shared set returns one source to
// every worker; otherwise each worker ID gets its own stream seeded from
// the run seed, kept across the warm-up and the measured run.
type sourceSet struct {
	spec   sequence.Spec
	seed   uint64
	shared sequence.Source

	mu        sync.Mutex
	perWorker map[int]sequence.Source
}

func newSourceSet(spec sequence.Spec, seed uint64, shared bool) (*sourceSet, error) {
	s := &sourceSet{spec: spec, seed: seed}
	if shared {
		src, err := sequence.New(spec, seed)
		if err != nil {
			return nil, fmt.Errorf("sequence: %w", err)
		}
		s.shared = src
		return s, nil
	}
	s.perWorker = make(map[int]sequence.Source)
	return s, nil
}

func (s *sourceSet) get(workerID int) (sequence.Source, error) {
	if s.shared != nil {
		return s.shared, nil
	}
	if workerID == 0 {
		return sequence.New(s.spec, s.seed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if src, ok := s.perWorker[workerID]; ok {
		return src, nil
	}
	src, err := sequence.New(s.spec, s.seed+uint64(workerID))
	if err != nil {
		return nil, fmt.Errorf("sequence: %w", err)
	}
	s.perWorker[workerID] = src
	return src, nil
}

// workerErrors flattens an aggregated worker failure.
func workerErrors(err error) []string {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(merr.Errors))
	for _, e := range merr.Errors {
		out = append(out, e.Error())
	}
	return out
}

// onlyExhausted reports whether every aggregated failure is an exhausted
// sequence.
func onlyExhausted(err error) bool {
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		return errors.Is(err, sequence.ErrExhausted)
	}
	for _, e := range merr.Errors {
		if !errors.Is(e, sequence.ErrExhausted) {
			return false
		}
	}
	return len(merr.Errors) > 0
}

// Config returns the defaulted run configuration.
func (e *Engine) Config() *config.RunConfig {
	return e.config
}

// Recorder returns the recorder shared by every worker.
func (e *Engine) Recorder() *metrics.Recorder {
	return e.recorder
}

// Snapshot returns the current metrics snapshot.
func (e *Engine) Snapshot() *metrics.Snapshot {
	return e.recorder.Snapshot()
}

// IsRunning returns true if the engine is currently running.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Progress returns the live state of the current strategy. Stats is nil
// before the first strategy starts.
func (e *Engine) Progress() (progress float64, phase metrics.Phase, stats *executor.Stats) {
	e.mu.RLock()
	strategy := e.strategy
	e.mu.RUnlock()

	phase = e.recorder.GetPhase()
	if strategy == nil {
		return 0, phase, nil
	}
	return strategy.GetProgress(), phase, strategy.GetStats()
}

// Stop gracefully stops the running strategy.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.RLock()
	running := e.running
	strategy := e.strategy
	e.mu.RUnlock()

	if !running || strategy == nil {
		return nil
	}
	return strategy.Stop(ctx)
}
