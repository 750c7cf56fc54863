package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/wesleyorama2/kvlunge/internal/performance/config"
	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
	"github.com/wesleyorama2/kvlunge/internal/performance/store"
)

// keepOpen lets a test inspect a store after the engine has closed it.
type keepOpen struct{ store.Store }

func (keepOpen) Close() error { return nil }

// newTestEngine builds an engine whose single target "mem" is the returned
// memory store.
func newTestEngine(t *testing.T, cfg *config.RunConfig) (*Engine, *store.Memory) {
	t.Helper()
	cfg.Targets = []config.TargetConfig{{Name: "mem", Type: "memory"}}

	rc := metrics.DefaultRecorderConfig()
	rc.BucketInterval = 10 * time.Millisecond
	e, err := NewEngine(cfg,
		WithLogger(zaptest.NewLogger(t)),
		WithRecorder(metrics.NewRecorderWithConfig(rc)))
	require.NoError(t, err)

	mem := store.NewMemory()
	e.open = func(_ context.Context, cfgs []store.TargetConfig, _ *zap.Logger) ([]store.Target, error) {
		if len(cfgs) != 1 {
			return nil, errors.New("want exactly one target")
		}
		return []store.Target{{Name: cfgs[0].Name, Store: keepOpen{mem}}}, nil
	}
	return e, mem
}

func TestEngine_SharedIterations(t *testing.T) {
	e, mem := newTestEngine(t, &config.RunConfig{
		Name:             "shared",
		Workers:          3,
		SharedIterations: 300,
		Operation:        "put",
	})

	result, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(300), result.Iterations)
	assert.Equal(t, uint64(300), result.Metrics.Totals[metrics.ResultWrite])
	assert.Equal(t, 300, mem.Len(), "a shared sequential source hands out every index once")
	assert.True(t, result.Passed)
	assert.Empty(t, result.WorkerErrors)
	assert.False(t, result.Interrupted)
	assert.Equal(t, "300 iterations shared by 3 workers", result.Executor)
	assert.Contains(t, result.Workload, "ops[put]")
	assert.False(t, e.IsRunning())
}

func TestEngine_PerWorkerSources(t *testing.T) {
	shared := false
	e, mem := newTestEngine(t, &config.RunConfig{
		Workers:    2,
		Iterations: 20,
		Operation:  "put",
		Sequence:   config.SequenceConfig{Shared: &shared},
	})

	result, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(40), result.Metrics.Totals[metrics.ResultWrite])
	assert.Equal(t, 20, mem.Len(), "each worker walks its own copy of the same sequence")
}

func TestEngine_ExhaustedSequenceStopsWorkers(t *testing.T) {
	e, mem := newTestEngine(t, &config.RunConfig{
		Workers:   2,
		Duration:  config.Duration(time.Minute),
		Operation: "put",
		Sequence:  config.SequenceConfig{Bound: 50},
	})

	start := time.Now()
	result, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 30*time.Second)
	assert.Equal(t, uint64(50), result.Metrics.Totals[metrics.ResultWrite])
	assert.Equal(t, 50, mem.Len())
	require.Len(t, result.WorkerErrors, 2)
	for _, msg := range result.WorkerErrors {
		assert.Contains(t, msg, "exhausted")
	}
}

func TestEngine_WarmupIsDiscarded(t *testing.T) {
	e, mem := newTestEngine(t, &config.RunConfig{
		Workers:          2,
		Warmup:           config.Duration(50 * time.Millisecond),
		SharedIterations: 10,
		Operation:        "put",
	})

	result, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(10), result.Metrics.Totals[metrics.ResultWrite])
	assert.Greater(t, mem.Len(), 10, "warm-up writes reach the store")

	var phases []metrics.Phase
	for _, pc := range result.Phases {
		phases = append(phases, pc.Phase)
	}
	assert.Equal(t, []metrics.Phase{metrics.PhaseWarmup, metrics.PhaseSteady, metrics.PhaseDone}, phases)
}

func TestEngine_Thresholds(t *testing.T) {
	e, _ := newTestEngine(t, &config.RunConfig{
		Workers:          1,
		SharedIterations: 10,
		Operation:        "put",
		Thresholds: map[string][]string{
			"WRITE": {"count == 10", "max < 1m"},
			"HIT":   {"count > 0"},
		},
	})

	result, err := e.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Thresholds, 3)
	assert.False(t, result.Passed)

	byExpr := make(map[string]ThresholdResult)
	for _, tr := range result.Thresholds {
		byExpr[tr.Result+" "+tr.Expression] = tr
	}
	assert.True(t, byExpr["WRITE count == 10"].Passed)
	assert.Equal(t, "10", byExpr["WRITE count == 10"].Value)
	assert.True(t, byExpr["WRITE max < 1m"].Passed)

	hit := byExpr["HIT count > 0"]
	assert.False(t, hit.Passed)
	assert.Equal(t, "0", hit.Value)
	assert.Contains(t, hit.Message, "HIT count is 0")
}

func TestEngine_Throttle(t *testing.T) {
	e, _ := newTestEngine(t, &config.RunConfig{
		Workers:   2,
		Duration:  config.Duration(300 * time.Millisecond),
		Operation: "put",
		Throttle:  &config.ThrottleConfig{Limit: 100, Result: "write"},
	})

	result, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Positive(t, result.Throttled)
	assert.Equal(t, result.Iterations-result.Throttled, int64(result.Metrics.Totals[metrics.ResultWrite]))
}

func TestEngine_Cancel(t *testing.T) {
	e, _ := newTestEngine(t, &config.RunConfig{
		Workers:   2,
		Duration:  config.Duration(time.Minute),
		Operation: "get",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	result, err := e.Run(ctx)
	require.NoError(t, err)
	assert.True(t, result.Interrupted)
	assert.Positive(t, result.Metrics.Totals[metrics.ResultMiss])
	assert.Less(t, result.Duration, 30*time.Second)
}

func TestEngine_AlreadyRunning(t *testing.T) {
	e, _ := newTestEngine(t, &config.RunConfig{
		Workers:   1,
		Duration:  config.Duration(time.Minute),
		Operation: "get",
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.Run(ctx)
	}()

	require.Eventually(t, e.IsRunning, time.Second, time.Millisecond)
	_, err := e.Run(context.Background())
	assert.Error(t, err)

	require.Eventually(t, func() bool {
		_, phase, stats := e.Progress()
		return phase == metrics.PhaseSteady && stats != nil
	}, time.Second, time.Millisecond)
	require.NoError(t, e.Stop(context.Background()))

	cancel()
	<-done
}

func TestEngine_OpenFailure(t *testing.T) {
	e, _ := newTestEngine(t, &config.RunConfig{
		Workers:   1,
		Duration:  config.Duration(time.Second),
		Operation: "put",
	})
	boom := errors.New("connection refused")
	e.open = func(context.Context, []store.TargetConfig, *zap.Logger) ([]store.Target, error) {
		return nil, boom
	}

	_, err := e.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	_, err := NewEngine(&config.RunConfig{Operation: "put"})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "invalid configuration"))
}

func TestEvaluateThresholds(t *testing.T) {
	snap := &metrics.Snapshot{
		Elapsed: 2 * time.Second,
		Targets: []metrics.TargetStats{
			{Name: "a", Results: map[metrics.Result]metrics.LatencyStats{
				metrics.ResultHit: {Count: 100, Total: 100 * time.Millisecond, P95: 3 * time.Millisecond, Max: 4 * time.Millisecond},
			}},
			{Name: "b", Results: map[metrics.Result]metrics.LatencyStats{
				metrics.ResultHit: {Count: 100, Total: 300 * time.Millisecond, P95: 6 * time.Millisecond, Max: 9 * time.Millisecond},
			}},
		},
	}

	parse := func(expr string) config.ResultThreshold {
		th, err := config.ParseThreshold(expr)
		require.NoError(t, err)
		return config.ResultThreshold{Result: metrics.ResultHit, Threshold: th}
	}

	results := evaluateThresholds([]config.ResultThreshold{
		parse("count == 200"),
		parse("rate >= 100"),
		parse("mean == 2ms"),
		parse("p95 < 5ms"),
		parse("max <= 9ms"),
	}, snap)

	require.Len(t, results, 5)
	assert.True(t, results[0].Passed)
	assert.True(t, results[1].Passed, results[1].Value)
	assert.Equal(t, "100.00", results[1].Value)
	assert.True(t, results[2].Passed, results[2].Value)
	assert.False(t, results[3].Passed, "p95 is the worst over targets")
	assert.Equal(t, "6ms", results[3].Value)
	assert.True(t, results[4].Passed)

	assert.Nil(t, evaluateThresholds(nil, snap))
}

func TestEngine_WithStores(t *testing.T) {
	mem := store.NewMemory()
	cfg := &config.RunConfig{
		Workers:    1,
		Iterations: 5,
		Operation:  "put",
		Targets:    []config.TargetConfig{{Name: "given", Type: "memory", Prefix: "p:"}},
	}
	e, err := NewEngine(cfg, WithStores(map[string]store.Store{"given": keepOpen{mem}}))
	require.NoError(t, err)

	_, err = e.Run(context.Background())
	require.NoError(t, err)

	_, ok, err := mem.Get(context.Background(), "p:0")
	require.NoError(t, err)
	assert.True(t, ok, "keys carry the target prefix")

	cfg = &config.RunConfig{
		Workers:    1,
		Iterations: 5,
		Operation:  "put",
		Targets:    []config.TargetConfig{{Name: "absent", Type: "memory"}},
	}
	e, err = NewEngine(cfg, WithStores(nil))
	require.NoError(t, err)
	_, err = e.Run(context.Background())
	assert.ErrorContains(t, err, `no store for target "absent"`)
}

func TestKindSeed(t *testing.T) {
	assert.Equal(t, uint64(45), kindSeed(42, 3, 0), "the measured phase keeps seed + worker ID")
	assert.NotEqual(t, kindSeed(42, 3, 0), kindSeed(42, 3, 1))
	assert.NotEqual(t, kindSeed(42, 3, 1), kindSeed(42, 4, 1))
}
