package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

func newTestRecorder(t *testing.T) (*Recorder, *clocktesting.FakeClock) {
	t.Helper()
	clk := clocktesting.NewFakeClock(time.Unix(1_700_000_000, 0))
	cfg := DefaultRecorderConfig()
	cfg.BucketInterval = 0
	cfg.Clock = clk
	rec := NewRecorderWithConfig(cfg)
	t.Cleanup(rec.Stop)
	return rec, clk
}

func TestRecorder_RecordAndTotals(t *testing.T) {
	rec, _ := newTestRecorder(t)

	rec.Record("one", 10*time.Millisecond, ResultHit)
	rec.Record("one", 30*time.Millisecond, ResultHit)
	rec.Record("one", 5*time.Millisecond, ResultMiss)
	rec.Record("two", 1*time.Millisecond, ResultWrite)

	if got := rec.TotalCount("one", ResultHit); got != 2 {
		t.Errorf("TotalCount(one, HIT) = %d, want 2", got)
	}
	if got := rec.TotalCount("one", ResultMiss); got != 1 {
		t.Errorf("TotalCount(one, MISS) = %d, want 1", got)
	}
	if got := rec.TotalCount("two", ResultWrite); got != 1 {
		t.Errorf("TotalCount(two, WRITE) = %d, want 1", got)
	}
	if got := rec.TotalCount("two", ResultHit); got != 0 {
		t.Errorf("TotalCount(two, HIT) = %d, want 0", got)
	}
	if got := rec.TotalCount("missing", ResultHit); got != 0 {
		t.Errorf("TotalCount(missing, HIT) = %d, want 0", got)
	}
	if got := rec.MeanLatency("one", ResultHit); got != 20*time.Millisecond {
		t.Errorf("MeanLatency(one, HIT) = %v, want 20ms", got)
	}
	if got := rec.MeanLatency("one", ResultRemove); got != 0 {
		t.Errorf("MeanLatency(one, REMOVE) = %v, want 0", got)
	}
}

func TestRecorder_ConcurrentRecordLosesNothing(t *testing.T) {
	rec, _ := newTestRecorder(t)

	const (
		goroutines = 16
		perG       = 5000
	)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			target := "a"
			if g%2 == 1 {
				target = "b"
			}
			for i := 0; i < perG; i++ {
				rec.Record(target, time.Millisecond, ResultWrite)
			}
		}(g)
	}
	wg.Wait()

	want := uint64(goroutines / 2 * perG)
	assert.Equal(t, want, rec.TotalCount("a", ResultWrite))
	assert.Equal(t, want, rec.TotalCount("b", ResultWrite))
	assert.Equal(t, time.Millisecond, rec.MeanLatency("a", ResultWrite))
	assert.Equal(t, time.Millisecond, rec.MeanLatency("b", ResultWrite))

	snap := rec.Snapshot()
	assert.Equal(t, 2*want, snap.TotalOperations)
	assert.Equal(t, 2*want, snap.Totals[ResultWrite])
}

func TestRecorder_Measure(t *testing.T) {
	rec, clk := newTestRecorder(t)

	got := rec.Measure("one", func() (Result, error) {
		clk.Step(3 * time.Millisecond)
		return ResultHit, nil
	})
	assert.Equal(t, ResultHit, got)
	assert.Equal(t, uint64(1), rec.TotalCount("one", ResultHit))
	assert.Equal(t, 3*time.Millisecond, rec.MeanLatency("one", ResultHit))

	got = rec.Measure("one", func() (Result, error) {
		return ResultWrite, errors.New("connection refused")
	})
	assert.Equal(t, ResultException, got)
	assert.Equal(t, uint64(0), rec.TotalCount("one", ResultWrite))

	got = rec.Measure("one", func() (Result, error) {
		panic("boom")
	})
	assert.Equal(t, ResultException, got)
	assert.Equal(t, uint64(2), rec.TotalCount("one", ResultException))

	got = rec.Measure("one", func() (Result, error) {
		return Result(200), nil
	})
	assert.Equal(t, ResultException, got)
	assert.Equal(t, uint64(3), rec.TotalCount("one", ResultException))
}

func TestRecorder_CurrentRateWindow(t *testing.T) {
	rec, clk := newTestRecorder(t)

	for i := 0; i < 10; i++ {
		rec.Record("one", time.Microsecond, ResultWrite)
	}
	assert.InDelta(t, 10.0, rec.CurrentRate(ResultWrite), 1e-9)
	assert.Zero(t, rec.CurrentRate(ResultHit))

	clk.Step(500 * time.Millisecond)
	for i := 0; i < 5; i++ {
		rec.Record("two", time.Microsecond, ResultWrite)
	}
	// Both targets feed the same window.
	assert.InDelta(t, 15.0, rec.CurrentRate(ResultWrite), 1e-9)

	clk.Step(600 * time.Millisecond)
	assert.InDelta(t, 5.0, rec.CurrentRate(ResultWrite), 1e-9)

	clk.Step(time.Second)
	assert.Zero(t, rec.CurrentRate(ResultWrite))

	// Totals are unaffected by the window sliding.
	assert.Equal(t, uint64(10), rec.TotalCount("one", ResultWrite))
}

func TestRecorder_SnapshotPercentiles(t *testing.T) {
	rec, _ := newTestRecorder(t)
	rec.Register("first", "second")

	for i := 1; i <= 100; i++ {
		rec.Record("second", time.Duration(i)*time.Millisecond, ResultHit)
	}

	snap := rec.Snapshot()
	require.Len(t, snap.Targets, 2)
	assert.Equal(t, "first", snap.Targets[0].Name)
	assert.Equal(t, "second", snap.Targets[1].Name)

	hit := snap.Target("second").Results[ResultHit]
	assert.Equal(t, uint64(100), hit.Count)
	assert.Equal(t, time.Millisecond, hit.Min)
	assert.Equal(t, 100*time.Millisecond, hit.Max)
	assert.InDelta(t, float64(50*time.Millisecond), float64(hit.P50), float64(2*time.Millisecond))
	assert.InDelta(t, float64(99*time.Millisecond), float64(hit.P99), float64(2*time.Millisecond))
	assert.Equal(t, 50500*time.Microsecond, hit.Mean)

	assert.Zero(t, snap.Target("first").Operations)
	assert.Nil(t, snap.Target("third"))

	merged := snap.Result(ResultHit)
	assert.Equal(t, uint64(100), merged.Count)
}

func TestRecorder_ResetKeepsTargets(t *testing.T) {
	rec, _ := newTestRecorder(t)

	rec.Record("one", time.Millisecond, ResultWrite)
	rec.RecordVerificationFailure("one")
	rec.SetPhase(PhaseWarmup)
	rec.Reset()

	assert.Zero(t, rec.TotalCount("one", ResultWrite))
	assert.Zero(t, rec.VerificationFailures("one"))
	assert.Zero(t, rec.CurrentRate(ResultWrite))
	assert.Equal(t, []string{"one"}, rec.Targets())
	assert.Equal(t, PhaseWarmup, rec.GetPhase())
}

func TestRecorder_Phase(t *testing.T) {
	rec, _ := newTestRecorder(t)

	if rec.GetPhase() != PhaseInit {
		t.Errorf("initial phase = %v, want %v", rec.GetPhase(), PhaseInit)
	}

	phases := []Phase{PhaseWarmup, PhaseSteady, PhaseSteady, PhaseDone}
	for _, p := range phases {
		rec.SetPhase(p)
		if rec.GetPhase() != p {
			t.Errorf("after SetPhase(%v), GetPhase() = %v", p, rec.GetPhase())
		}
	}

	if got := len(rec.PhaseHistory()); got != 3 {
		t.Errorf("len(PhaseHistory()) = %d, want 3", got)
	}
}

func TestRecorder_TimeSeries(t *testing.T) {
	rec, clk := newTestRecorder(t)
	rec.SetPhase(PhaseSteady)

	rec.Record("one", time.Millisecond, ResultHit)
	rec.Record("one", time.Millisecond, ResultHit)
	clk.Step(time.Second)
	rec.emit()

	rec.Record("one", time.Millisecond, ResultMiss)
	clk.Step(time.Second)
	rec.emit()

	series := rec.TimeSeries()
	require.Len(t, series, 2)
	assert.Equal(t, uint64(2), series[0].Interval[ResultHit])
	assert.Equal(t, uint64(2), series[0].IntervalOperations)
	assert.InDelta(t, 2.0, series[0].OpsPerSecond, 1e-9)
	assert.Equal(t, uint64(0), series[1].Interval[ResultHit])
	assert.Equal(t, uint64(1), series[1].Interval[ResultMiss])
	assert.Equal(t, uint64(2), series[1].Totals[ResultHit])
	assert.Equal(t, PhaseSteady, series[1].Phase)
}

func TestRecorder_EmitterStops(t *testing.T) {
	cfg := DefaultRecorderConfig()
	cfg.BucketInterval = 10 * time.Millisecond
	rec := NewRecorderWithConfig(cfg)

	rec.Record("one", time.Millisecond, ResultHit)
	time.Sleep(35 * time.Millisecond)
	rec.Stop()
	rec.Stop()

	n := len(rec.TimeSeries())
	if n < 2 {
		t.Errorf("len(TimeSeries()) = %d, want at least 2", n)
	}
	time.Sleep(25 * time.Millisecond)
	if got := len(rec.TimeSeries()); got != n {
		t.Errorf("emitter still running after Stop: %d buckets, had %d", got, n)
	}
}

func TestCollector(t *testing.T) {
	rec, _ := newTestRecorder(t)
	rec.Record("one", 2*time.Second, ResultWrite)
	rec.Record("one", time.Second, ResultWrite)
	rec.RecordVerificationFailure("one")

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewCollector(rec)))

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily)
	for _, f := range families {
		byName[f.GetName()] = f
	}

	ops := findMetric(t, byName["kvlunge_operations_total"], map[string]string{"target": "one", "result": "WRITE"})
	assert.Equal(t, 2.0, ops.GetCounter().GetValue())

	sum := findMetric(t, byName["kvlunge_operation_latency_seconds_sum"], map[string]string{"target": "one", "result": "WRITE"})
	assert.InDelta(t, 3.0, sum.GetCounter().GetValue(), 1e-9)

	rate := findMetric(t, byName["kvlunge_current_rate"], map[string]string{"result": "WRITE"})
	assert.InDelta(t, 2.0, rate.GetGauge().GetValue(), 1e-9)

	fails := findMetric(t, byName["kvlunge_verification_failures_total"], map[string]string{"target": "one"})
	assert.Equal(t, 1.0, fails.GetCounter().GetValue())
}

func findMetric(t *testing.T, family *dto.MetricFamily, labels map[string]string) *dto.Metric {
	t.Helper()
	require.NotNil(t, family)
	for _, m := range family.GetMetric() {
		matched := 0
		for _, lp := range m.GetLabel() {
			if labels[lp.GetName()] == lp.GetValue() {
				matched++
			}
		}
		if matched == len(labels) {
			return m
		}
	}
	t.Fatalf("no %s metric with labels %v", family.GetName(), labels)
	return nil
}
