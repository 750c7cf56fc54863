package operation

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wesleyorama2/kvlunge/internal/performance/generator"
	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
	"github.com/wesleyorama2/kvlunge/internal/performance/rate"
	"github.com/wesleyorama2/kvlunge/internal/performance/sequence"
	"github.com/wesleyorama2/kvlunge/internal/performance/store"
)

func newRecorder(t *testing.T) *metrics.Recorder {
	t.Helper()
	rec := metrics.NewRecorderWithConfig(metrics.RecorderConfig{})
	t.Cleanup(rec.Stop)
	return rec
}

func sequential(t *testing.T, bound int64) sequence.Source {
	t.Helper()
	src, err := sequence.NewSequential(0, bound, sequence.ExhaustFail)
	require.NoError(t, err)
	return src
}

func baseConfig(t *testing.T, rec *metrics.Recorder, targets ...store.Target) Config {
	return Config{
		Kind:     KindPut,
		Source:   sequential(t, 0),
		Keys:     generator.Long{},
		Values:   generator.Bytes{Length: 16},
		Targets:  targets,
		Recorder: rec,
		Seed:     1,
		Logger:   zaptest.NewLogger(t),
	}
}

func TestNewExecutor_ConfigErrors(t *testing.T) {
	rec := newRecorder(t)
	target := store.Target{Name: "one", Store: store.NewMemory()}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no targets", func(c *Config) { c.Targets = nil }},
		{"no kind and no table", func(c *Config) { c.Kind = 0 }},
		{"nil source", func(c *Config) { c.Source = nil }},
		{"nil keys", func(c *Config) { c.Keys = nil }},
		{"nil values", func(c *Config) { c.Values = nil }},
		{"nil recorder", func(c *Config) { c.Recorder = nil }},
		{"negative bulk", func(c *Config) { c.BulkSize = -1 }},
		{"target without store", func(c *Config) { c.Targets = []store.Target{{Name: "x"}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig(t, rec, target)
			tt.mutate(&cfg)
			_, err := NewExecutor(cfg)
			assert.Error(t, err)
		})
	}

	_, err := NewExecutor(Config{Kind: KindPut})
	assert.ErrorIs(t, err, store.ErrNoTargets)
}

func TestExecutor_PutThenGet(t *testing.T) {
	rec := newRecorder(t)
	targets := []store.Target{
		{Name: "one", Store: store.NewMemory()},
		{Name: "two", Store: store.NewMemory()},
	}
	ctx := context.Background()

	put, err := NewExecutor(baseConfig(t, rec, targets...))
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.NoError(t, put.Run(ctx))
	}

	getCfg := baseConfig(t, rec, targets...)
	getCfg.Kind = KindGet
	getCfg.Source = sequential(t, 0)
	get, err := NewExecutor(getCfg)
	require.NoError(t, err)
	for i := 0; i < 150; i++ {
		require.NoError(t, get.Run(ctx))
	}

	for _, name := range []string{"one", "two"} {
		assert.Equal(t, uint64(100), rec.TotalCount(name, metrics.ResultWrite), name)
		assert.Equal(t, uint64(100), rec.TotalCount(name, metrics.ResultHit), name)
		assert.Equal(t, uint64(50), rec.TotalCount(name, metrics.ResultMiss), name)
		assert.Zero(t, rec.TotalCount(name, metrics.ResultException), name)
	}
	assert.Equal(t, int64(100), put.Iterations())
	assert.Equal(t, int64(150), get.Iterations())
}

func TestExecutor_MixedWorkload(t *testing.T) {
	rec := newRecorder(t)
	st := store.NewMemory()
	table, err := NewWeightTable(Weighted{KindPut, 0.5}, Weighted{KindGet, 0.5})
	require.NoError(t, err)

	cfg := baseConfig(t, rec, store.Target{Name: "one", Store: st})
	cfg.Weights = table
	cfg.Kind = 0
	cfg.Seed = 42
	// A small key space so gets find earlier puts.
	src, err := sequence.NewUniform(0, 50, 42)
	require.NoError(t, err)
	cfg.Source = src

	exec, err := NewExecutor(cfg)
	require.NoError(t, err)

	const n = 1000
	for i := 0; i < n; i++ {
		require.NoError(t, exec.Run(context.Background()))
	}

	writes := rec.TotalCount("one", metrics.ResultWrite)
	reads := rec.TotalCount("one", metrics.ResultHit) + rec.TotalCount("one", metrics.ResultMiss)
	assert.Equal(t, uint64(n), writes+reads)
	assert.InDelta(t, n/2, float64(writes), 0.06*n)
	assert.Greater(t, rec.TotalCount("one", metrics.ResultHit), uint64(0))
	assert.Zero(t, rec.TotalCount("one", metrics.ResultException))
}

func TestExecutor_HalfPutHalfGetSequential(t *testing.T) {
	const n = 100
	table, err := NewWeightTable(Weighted{KindPut, 0.5}, Weighted{KindGet, 0.5})
	require.NoError(t, err)

	// Pick the first seed whose kind stream splits n draws 50/50 within one.
	kindsFor := func(seed uint64) []Kind {
		rng := newKindRand(seed)
		kinds := make([]Kind, n)
		for i := range kinds {
			kinds[i] = table.Select(rng.Float64())
		}
		return kinds
	}
	var seed uint64
	var kinds []Kind
	for seed = 1; ; seed++ {
		kinds = kindsFor(seed)
		puts := 0
		for _, k := range kinds {
			if k == KindPut {
				puts++
			}
		}
		if puts >= n/2-1 && puts <= n/2+1 {
			break
		}
	}

	rec := newRecorder(t)
	st := store.NewMemory()
	cfg := baseConfig(t, rec, store.Target{Name: "one", Store: st})
	cfg.Kind = 0
	cfg.Weights = table
	cfg.Seed = seed
	cfg.Source = sequential(t, 0)
	exec, err := NewExecutor(cfg)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		require.NoError(t, exec.Run(context.Background()))
	}

	var puts, gets uint64
	for _, k := range kinds {
		if k == KindPut {
			puts++
		} else {
			gets++
		}
	}
	assert.Equal(t, puts, rec.TotalCount("one", metrics.ResultWrite))
	assert.InDelta(t, n/2, float64(rec.TotalCount("one", metrics.ResultWrite)), 1)
	// Every index is drawn once, so each get precedes any put of its key.
	assert.Equal(t, gets, rec.TotalCount("one", metrics.ResultMiss))
	assert.Zero(t, rec.TotalCount("one", metrics.ResultHit))
	assert.Equal(t, int(puts), st.Len())

	// Reading the same indices again hits exactly the keys put above.
	readRec := newRecorder(t)
	readCfg := baseConfig(t, readRec, store.Target{Name: "one", Store: st})
	readCfg.Kind = KindGet
	readCfg.Source = sequential(t, n)
	reader, err := NewExecutor(readCfg)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		require.NoError(t, reader.Run(context.Background()))
	}
	for i, k := range kinds {
		_, found, err := st.Get(context.Background(), strconv.Itoa(i))
		require.NoError(t, err)
		assert.Equal(t, k == KindPut, found, "index %d", i)
	}
	assert.Equal(t, puts, readRec.TotalCount("one", metrics.ResultHit))
	assert.Equal(t, gets, readRec.TotalCount("one", metrics.ResultMiss))
}

func TestExecutor_SameSeedSameKinds(t *testing.T) {
	table, err := NewWeightTable(Weighted{KindPut, 0.3}, Weighted{KindGet, 0.3}, Weighted{KindRemove, 0.4})
	require.NoError(t, err)

	run := func() map[metrics.Result]uint64 {
		rec := newRecorder(t)
		cfg := baseConfig(t, rec, store.Target{Name: "one", Store: store.NewMemory()})
		cfg.Weights = table
		cfg.Seed = 7
		exec, err := NewExecutor(cfg)
		require.NoError(t, err)
		for i := 0; i < 500; i++ {
			require.NoError(t, exec.Run(context.Background()))
		}
		out := make(map[metrics.Result]uint64)
		for _, r := range metrics.AllResults() {
			out[r] = rec.TotalCount("one", r)
		}
		return out
	}

	assert.Equal(t, run(), run())
}

func TestExecutor_Exhausted(t *testing.T) {
	rec := newRecorder(t)
	cfg := baseConfig(t, rec, store.Target{Name: "one", Store: store.NewMemory()})
	cfg.Source = sequential(t, 3)

	exec, err := NewExecutor(cfg)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, exec.Run(context.Background()))
	}
	err = exec.Run(context.Background())
	assert.ErrorIs(t, err, sequence.ErrExhausted)
	assert.Equal(t, uint64(3), rec.TotalCount("one", metrics.ResultWrite))
}

func TestExecutor_BulkUsesConsecutiveIndices(t *testing.T) {
	rec := newRecorder(t)
	st := store.NewMemory()
	ctx := context.Background()

	cfg := baseConfig(t, rec, store.Target{Name: "one", Store: st})
	cfg.Kind = KindPutAll
	cfg.BulkSize = 4
	src, err := sequence.NewSequential(100, 0, sequence.ExhaustFail)
	require.NoError(t, err)
	cfg.Source = src

	exec, err := NewExecutor(cfg)
	require.NoError(t, err)
	require.NoError(t, exec.Run(ctx))

	assert.Equal(t, 4, st.Len())
	for _, key := range []string{"100", "101", "102", "103"} {
		_, found, _ := st.Get(ctx, key)
		assert.True(t, found, key)
	}
	// One bulk call is one recorded attempt.
	assert.Equal(t, uint64(1), rec.TotalCount("one", metrics.ResultWrite))
}

func TestExecutor_StoreErrorsAreRecorded(t *testing.T) {
	rec := newRecorder(t)
	cfg := baseConfig(t, rec,
		store.Target{Name: "bad", Store: brokenStore{}},
		store.Target{Name: "good", Store: store.NewMemory()},
	)

	exec, err := NewExecutor(cfg)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, exec.Run(context.Background()))
	}

	assert.Equal(t, uint64(10), rec.TotalCount("bad", metrics.ResultException))
	assert.Equal(t, uint64(10), rec.TotalCount("good", metrics.ResultWrite))
}

type panicStore struct{ brokenStore }

func (panicStore) Put(context.Context, string, []byte) error { panic("driver bug") }

func TestExecutor_PanicIsException(t *testing.T) {
	rec := newRecorder(t)
	exec, err := NewExecutor(baseConfig(t, rec, store.Target{Name: "p", Store: panicStore{}}))
	require.NoError(t, err)

	require.NoError(t, exec.Run(context.Background()))
	assert.Equal(t, uint64(1), rec.TotalCount("p", metrics.ResultException))
}

type corruptingStore struct{ *store.Memory }

func (c corruptingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := c.Memory.Get(ctx, key)
	if ok && len(v) > 0 {
		v[len(v)-1] ^= 0xff
	}
	return v, ok, err
}

func TestExecutor_VerificationFailures(t *testing.T) {
	rec := newRecorder(t)
	ctx := context.Background()
	clean := store.NewMemory()
	corrupt := corruptingStore{store.NewMemory()}
	targets := []store.Target{{Name: "clean", Store: clean}, {Name: "corrupt", Store: corrupt}}

	values := generator.Verified{Length: 32}
	cfg := baseConfig(t, rec, targets...)
	cfg.Values = values
	put, err := NewExecutor(cfg)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, put.Run(ctx))
	}

	cfg = baseConfig(t, rec, targets...)
	cfg.Values = values
	cfg.Kind = KindGet
	get, err := NewExecutor(cfg)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, get.Run(ctx))
	}

	assert.Zero(t, rec.VerificationFailures("clean"))
	assert.Equal(t, uint64(5), rec.VerificationFailures("corrupt"))
	assert.Equal(t, uint64(5), rec.TotalCount("corrupt", metrics.ResultHit))
}

type stubGovernor struct {
	admit bool
	gated metrics.Result
}

func (g stubGovernor) Admit() bool                      { return g.admit }
func (g stubGovernor) Gates(result metrics.Result) bool { return g.gated == result }

func TestExecutor_GovernorOnlyGatesMatchingKinds(t *testing.T) {
	rec := newRecorder(t)
	st := store.NewMemory()
	ctx := context.Background()

	cfg := baseConfig(t, rec, store.Target{Name: "one", Store: st})
	cfg.Governor = stubGovernor{admit: false, gated: metrics.ResultWrite}
	put, err := NewExecutor(cfg)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, put.Run(ctx))
	}
	assert.Equal(t, int64(5), put.Throttled())
	assert.Zero(t, put.Iterations())
	assert.Zero(t, st.Len(), "throttled iterations must not reach the store")
	assert.Zero(t, rec.TotalCount("one", metrics.ResultWrite))

	cfg = baseConfig(t, rec, store.Target{Name: "one", Store: st})
	cfg.Kind = KindGet
	cfg.Governor = stubGovernor{admit: false, gated: metrics.ResultWrite}
	get, err := NewExecutor(cfg)
	require.NoError(t, err)
	require.NoError(t, get.Run(ctx))
	assert.Zero(t, get.Throttled())
	assert.Equal(t, uint64(1), rec.TotalCount("one", metrics.ResultMiss))
}

func TestExecutor_ThrottledWritesOverTwoSeconds(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	rec := newRecorder(t)
	gov, err := rate.NewGovernor(10, metrics.ResultWrite, rec)
	require.NoError(t, err)

	cfg := baseConfig(t, rec, store.Target{Name: "one", Store: store.NewMemory()})
	cfg.Governor = gov
	exec, err := NewExecutor(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for ctx.Err() == nil {
		if err := exec.Run(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Run() error = %v", err)
		}
	}

	writes := rec.TotalCount("one", metrics.ResultWrite)
	assert.InDelta(t, 20, float64(writes), 2, "writes = %d", writes)
	assert.Greater(t, exec.Throttled(), int64(0))
	assert.Equal(t, int64(writes), exec.Iterations())
}

func TestExecutor_Description(t *testing.T) {
	rec := newRecorder(t)
	exec, err := NewExecutor(baseConfig(t, rec, store.Target{Name: "one", Store: store.NewMemory()}))
	require.NoError(t, err)
	assert.Equal(t, "ops[put] sequence[sequential from 0] keys[long] values[bytes(16)] bulk=10 targets=1", exec.Description())
}
