package metrics

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

// Recorder classifies and aggregates the outcome of every store operation.
//
// Per target and result it keeps a count, the cumulative latency and an HDR
// latency histogram. Per result it keeps a sliding rate window spanning all
// targets, which feeds the throughput governor.
//
// # Thread Safety
//
// Recorder is safe for concurrent use. Record touches one randomly chosen
// shard of the (target, result) cell plus the lock-free rate window, so
// writers on different cores rarely contend. Readers merge shards.
type Recorder struct {
	config RecorderConfig
	clock  clock.WithTicker
	logger *zap.Logger

	targets sync.Map // string -> *targetCells
	orderMu sync.Mutex
	order   []string

	windows [numResults]*rateWindow
	shards  int

	// startNanos is the run start as Unix nanoseconds.
	startNanos atomic.Int64

	phaseMu      sync.RWMutex
	phase        Phase
	phaseHistory []PhaseChange

	buckets *TimeBucketStore

	emitterCancel context.CancelFunc
	emitterWg     sync.WaitGroup
	stopOnce      sync.Once
}

type targetCells struct {
	name           string
	cells          [numResults]*cell
	verifyFailures atomic.Uint64
}

// RecorderConfig contains configuration for the recorder.
type RecorderConfig struct {
	// RateWindow is the trailing span of CurrentRate (default: 1s).
	RateWindow time.Duration

	// RateSlot is the rate window granularity (default: 100ms).
	RateSlot time.Duration

	// BucketInterval is the time-series interval. Zero disables the
	// background emitter.
	BucketInterval time.Duration

	// MaxBuckets is the number of time buckets retained (default: 3600).
	MaxBuckets int

	// Histogram bounds latencies in microseconds (default: 1us to 60s, 2 significant figures).
	Histogram HistogramConfig

	// Shards per cell, rounded up to a power of two. Zero sizes from GOMAXPROCS.
	Shards int

	// Clock defaults to the real clock.
	Clock clock.WithTicker

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultRecorderConfig returns the default configuration.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		RateWindow:     DefaultRateWindow,
		RateSlot:       DefaultRateSlot,
		BucketInterval: time.Second,
		MaxBuckets:     3600,
		Histogram: HistogramConfig{
			Min:     1,
			Max:     60_000_000,
			SigFigs: 2,
		},
	}
}

// NewRecorder creates a recorder with the default configuration.
func NewRecorder() *Recorder {
	return NewRecorderWithConfig(DefaultRecorderConfig())
}

// NewRecorderWithConfig creates a recorder and, when BucketInterval is
// positive, starts its background time-series emitter.
func NewRecorderWithConfig(config RecorderConfig) *Recorder {
	defaults := DefaultRecorderConfig()
	if config.RateWindow <= 0 {
		config.RateWindow = defaults.RateWindow
	}
	if config.RateSlot <= 0 {
		config.RateSlot = defaults.RateSlot
	}
	if config.MaxBuckets <= 0 {
		config.MaxBuckets = defaults.MaxBuckets
	}
	if config.Histogram.Max <= 0 {
		config.Histogram = defaults.Histogram
	}
	if config.Clock == nil {
		config.Clock = clock.RealClock{}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	shards := config.Shards
	if shards <= 0 {
		shards = shardCount()
	} else {
		shards = roundPow2(shards)
	}

	now := config.Clock.Now()
	r := &Recorder{
		config:  config,
		clock:   config.Clock,
		logger:  config.Logger.Named("metrics"),
		shards:  shards,
		phase:   PhaseInit,
		buckets: NewTimeBucketStore(config.MaxBuckets, now),
	}
	r.startNanos.Store(now.UnixNano())
	for i := range r.windows {
		r.windows[i] = newRateWindow(config.RateWindow, config.RateSlot)
	}

	if config.BucketInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		r.emitterCancel = cancel
		r.emitterWg.Add(1)
		go r.runEmitter(ctx)
	}

	return r
}

func roundPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (r *Recorder) startTime() time.Time {
	return time.Unix(0, r.startNanos.Load())
}

func (r *Recorder) elapsed() time.Duration {
	return r.clock.Since(r.startTime())
}

// Register pre-creates the named targets so snapshots list them in the
// given order even before they record anything.
func (r *Recorder) Register(names ...string) {
	for _, name := range names {
		r.target(name)
	}
}

func (r *Recorder) target(name string) *targetCells {
	if tc, ok := r.targets.Load(name); ok {
		return tc.(*targetCells)
	}

	tc := &targetCells{name: name}
	for i := range tc.cells {
		tc.cells[i] = newCell(r.shards, r.config.Histogram)
	}
	actual, loaded := r.targets.LoadOrStore(name, tc)
	if !loaded {
		r.orderMu.Lock()
		r.order = append(r.order, name)
		r.orderMu.Unlock()
	}
	return actual.(*targetCells)
}

func (r *Recorder) lookup(name string) *targetCells {
	if tc, ok := r.targets.Load(name); ok {
		return tc.(*targetCells)
	}
	return nil
}

// Targets returns the target names in registration order.
func (r *Recorder) Targets() []string {
	r.orderMu.Lock()
	defer r.orderMu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Record adds one classified attempt. Invalid results are ignored.
func (r *Recorder) Record(target string, latency time.Duration, result Result) {
	if !result.Valid() {
		r.logger.Warn("dropping invalid result", zap.String("target", target), zap.Uint8("result", uint8(result)))
		return
	}
	if latency < 0 {
		latency = 0
	}
	r.target(target).cells[result].record(latency)
	r.windows[result].add(r.elapsed())
}

// Measure times op and records its outcome under target. An error or a
// panic from op is recorded as ResultException. The recorded result is
// returned.
func (r *Recorder) Measure(target string, op func() (Result, error)) (result Result) {
	start := r.clock.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Debug("operation panicked", zap.String("target", target), zap.Any("panic", p))
			result = ResultException
		}
		r.Record(target, r.clock.Since(start), result)
	}()

	res, err := op()
	if err != nil {
		r.logger.Debug("operation failed", zap.String("target", target), zap.Error(err))
		return ResultException
	}
	if !res.Valid() {
		r.logger.Debug("operation returned invalid result", zap.String("target", target), zap.Stringer("result", res))
		return ResultException
	}
	return res
}

// CurrentRate returns the rate of result over the trailing window, in
// events per second, summed over all targets.
func (r *Recorder) CurrentRate(result Result) float64 {
	if !result.Valid() {
		return 0
	}
	return r.windows[result].rate(r.elapsed())
}

// TotalCount returns the number of attempts recorded for target and result.
func (r *Recorder) TotalCount(target string, result Result) uint64 {
	tc := r.lookup(target)
	if tc == nil || !result.Valid() {
		return 0
	}
	count, _ := tc.cells[result].totals()
	return count
}

// MeanLatency returns the mean latency recorded for target and result, or
// zero when nothing has been recorded.
func (r *Recorder) MeanLatency(target string, result Result) time.Duration {
	tc := r.lookup(target)
	if tc == nil || !result.Valid() {
		return 0
	}
	count, total := tc.cells[result].totals()
	if count == 0 {
		return 0
	}
	return total / time.Duration(count)
}

// Stats returns the full latency summary for target and result.
func (r *Recorder) Stats(target string, result Result) LatencyStats {
	tc := r.lookup(target)
	if tc == nil || !result.Valid() {
		return LatencyStats{}
	}
	return tc.cells[result].stats()
}

// RecordVerificationFailure counts a read whose value failed verification.
func (r *Recorder) RecordVerificationFailure(target string) {
	r.target(target).verifyFailures.Add(1)
}

// VerificationFailures returns the verification failures of target.
func (r *Recorder) VerificationFailures(target string) uint64 {
	tc := r.lookup(target)
	if tc == nil {
		return 0
	}
	return tc.verifyFailures.Load()
}

func (r *Recorder) totals() [numResults]uint64 {
	var out [numResults]uint64
	r.targets.Range(func(_, v any) bool {
		tc := v.(*targetCells)
		for i, c := range tc.cells {
			n, _ := c.totals()
			out[i] += n
		}
		return true
	})
	return out
}

// Snapshot returns a point-in-time view of every target.
func (r *Recorder) Snapshot() *Snapshot {
	now := r.clock.Now()
	elapsed := now.Sub(r.startTime())

	snap := &Snapshot{
		Totals:    make(map[Result]uint64, numResults),
		Rates:     make(map[Result]float64, numResults),
		Phase:     r.GetPhase(),
		Elapsed:   elapsed,
		StartTime: r.startTime(),
		Timestamp: now,
	}

	for _, name := range r.Targets() {
		tc := r.lookup(name)
		ts := TargetStats{
			Name:                 name,
			Results:              make(map[Result]LatencyStats, numResults),
			VerificationFailures: tc.verifyFailures.Load(),
		}
		for res, c := range tc.cells {
			ls := c.stats()
			ts.Results[Result(res)] = ls
			ts.Operations += ls.Count
			snap.Totals[Result(res)] += ls.Count
		}
		snap.TotalOperations += ts.Operations
		snap.Targets = append(snap.Targets, ts)
	}

	for res := Result(0); res < numResults; res++ {
		snap.Rates[res] = r.windows[res].rate(elapsed)
	}
	if elapsed > 0 {
		snap.OpsPerSecond = float64(snap.TotalOperations) / elapsed.Seconds()
	}
	return snap
}

// SetPhase updates the current phase.
func (r *Recorder) SetPhase(phase Phase) {
	r.phaseMu.Lock()
	defer r.phaseMu.Unlock()

	if r.phase == phase {
		return
	}
	r.phase = phase

	var ops uint64
	for _, n := range r.totals() {
		ops += n
	}
	r.phaseHistory = append(r.phaseHistory, PhaseChange{
		Phase:      phase,
		Timestamp:  r.clock.Now(),
		Operations: ops,
	})
	r.logger.Debug("phase changed", zap.String("phase", string(phase)), zap.Uint64("operations", ops))
}

// GetPhase returns the current phase.
func (r *Recorder) GetPhase() Phase {
	r.phaseMu.RLock()
	defer r.phaseMu.RUnlock()
	return r.phase
}

// PhaseHistory returns the phase transitions so far.
func (r *Recorder) PhaseHistory() []PhaseChange {
	r.phaseMu.RLock()
	defer r.phaseMu.RUnlock()
	out := make([]PhaseChange, len(r.phaseHistory))
	copy(out, r.phaseHistory)
	return out
}

// TimeSeries returns the retained time buckets in chronological order.
func (r *Recorder) TimeSeries() []*TimeBucket {
	return r.buckets.Buckets()
}

// Reset zeroes every statistic and restarts the clock. Registered targets
// and the current phase are kept.
func (r *Recorder) Reset() {
	r.targets.Range(func(_, v any) bool {
		tc := v.(*targetCells)
		for _, c := range tc.cells {
			c.reset()
		}
		tc.verifyFailures.Store(0)
		return true
	})
	for _, w := range r.windows {
		w.reset()
	}

	now := r.clock.Now()
	r.startNanos.Store(now.UnixNano())
	r.buckets.Reset(now)
}

func (r *Recorder) runEmitter(ctx context.Context) {
	defer r.emitterWg.Done()

	ticker := r.clock.NewTicker(r.config.BucketInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			r.emit()
		}
	}
}

func (r *Recorder) emit() *TimeBucket {
	now := r.clock.Now()
	return r.buckets.Append(now, now.Sub(r.startTime()), r.totals(), r.GetPhase())
}

// Stop stops the background emitter and appends a final bucket. It is
// safe to call more than once.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		if r.emitterCancel != nil {
			r.emitterCancel()
			r.emitterWg.Wait()
			r.emit()
		}
	})
}

// String describes the recorder configuration.
func (r *Recorder) String() string {
	return fmt.Sprintf("recorder(window=%s slot=%s shards=%d)", r.config.RateWindow, r.config.RateSlot, r.shards)
}
