// Package operation selects, synthesizes and performs store operations.
//
// An Executor runs one iteration per Run call: it draws an index, picks an
// operation kind, consults the throughput governor, synthesizes keys and
// values and performs the operation against every target, recording each
// outcome.
package operation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wesleyorama2/kvlunge/internal/performance/generator"
	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
	"github.com/wesleyorama2/kvlunge/internal/performance/sequence"
	"github.com/wesleyorama2/kvlunge/internal/performance/store"
)

// Recorder receives classified outcomes. *metrics.Recorder satisfies it.
type Recorder interface {
	Measure(target string, op func() (metrics.Result, error)) metrics.Result
	RecordVerificationFailure(target string)
}

// Governor gates iterations by the observed rate of one result kind.
// *rate.Governor satisfies it.
type Governor interface {
	Admit() bool
	Gates(result metrics.Result) bool
}

// DefaultBulkSize is the number of keys per bulk operation.
const DefaultBulkSize = 10

// Config describes an Executor.
type Config struct {
	// Kind is performed on every iteration when Weights is nil.
	Kind Kind

	// Weights selects the kind per iteration from the executor's own
	// random stream.
	Weights *WeightTable

	Source   sequence.Source
	Keys     generator.Generator
	Values   generator.Generator
	Targets  []store.Target
	Recorder Recorder

	// Governor is optional.
	Governor Governor

	// BulkSize defaults to DefaultBulkSize.
	BulkSize int

	// Seed seeds the kind selection stream.
	Seed uint64

	Logger *zap.Logger
}

// Executor performs iterations for one worker.
//
// # Thread Safety
//
// Run must not be called concurrently; build one Executor per worker. The
// counters may be read from any goroutine.
type Executor struct {
	kind     Kind
	weights  *WeightTable
	src      sequence.Source
	keys     generator.Generator
	values   generator.Generator
	verifier generator.Verifier
	targets  []store.Target
	rec      Recorder
	gov      Governor
	bulk     int
	rng      *rand.Rand
	logger   *zap.Logger

	iterations atomic.Int64
	throttled  atomic.Int64
}

// NewExecutor validates cfg and builds an executor.
func NewExecutor(cfg Config) (*Executor, error) {
	switch {
	case len(cfg.Targets) == 0:
		return nil, store.ErrNoTargets
	case cfg.Weights == nil && !cfg.Kind.Valid():
		return nil, errors.New("operation: no operation kind and no weight table")
	case cfg.Source == nil:
		return nil, errors.New("operation: nil sequence source")
	case cfg.Keys == nil:
		return nil, errors.New("operation: nil key generator")
	case cfg.Values == nil:
		return nil, errors.New("operation: nil value generator")
	case cfg.Recorder == nil:
		return nil, errors.New("operation: nil recorder")
	case cfg.BulkSize < 0:
		return nil, fmt.Errorf("operation: negative bulk size %d", cfg.BulkSize)
	}
	for i, t := range cfg.Targets {
		if t.Store == nil {
			return nil, fmt.Errorf("operation: target %d (%q) has no store", i, t.Name)
		}
	}

	bulk := cfg.BulkSize
	if bulk == 0 {
		bulk = DefaultBulkSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Executor{
		kind:    cfg.Kind,
		weights: cfg.Weights,
		src:     cfg.Source,
		keys:    cfg.Keys,
		values:  cfg.Values,
		targets: cfg.Targets,
		rec:     cfg.Recorder,
		gov:     cfg.Governor,
		bulk:    bulk,
		rng:     newKindRand(cfg.Seed),
		logger:  logger,
	}
	if v, ok := cfg.Values.(generator.Verifier); ok {
		e.verifier = v
	}
	return e, nil
}

// newKindRand is the kind selection stream for seed.
func newKindRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x2545f4914f6cdd1d))
}

// Run performs one iteration. It returns an error only when no index can
// be drawn, such as sequence.ErrExhausted; store failures are recorded,
// not returned. A throttled iteration returns nil without touching any
// store.
func (e *Executor) Run(ctx context.Context) error {
	idx, err := e.src.Next()
	if err != nil {
		return fmt.Errorf("next index: %w", err)
	}

	kind := e.kind
	if e.weights != nil {
		kind = e.weights.Select(e.rng.Float64())
	}

	if e.gov != nil && e.gov.Gates(kind.Success()) && !e.gov.Admit() {
		e.throttled.Add(1)
		return nil
	}

	call := e.prepare(kind, idx)
	for _, t := range e.targets {
		st := t.Store
		res := e.rec.Measure(t.Name, func() (metrics.Result, error) {
			return Dispatch(ctx, st, kind, call)
		})
		if kind == KindGet && res == metrics.ResultHit && e.verifier != nil && !e.verifier.Verify(idx, call.Got) {
			e.logger.Warn("value failed verification",
				zap.String("target", t.Name),
				zap.Int64("index", idx),
				zap.String("key", call.Key))
			e.rec.RecordVerificationFailure(t.Name)
		}
	}

	e.iterations.Add(1)
	return nil
}

func (e *Executor) prepare(kind Kind, idx int64) *Call {
	c := &Call{}
	if !kind.Bulk() {
		c.Key = string(e.keys.Generate(idx))
		if kind.Writes() {
			c.Value = e.values.Generate(idx)
		}
		return c
	}

	c.Keys = make([]string, e.bulk)
	for i := range c.Keys {
		c.Keys[i] = string(e.keys.Generate(idx + int64(i)))
	}
	if kind.Writes() {
		c.Values = make([][]byte, e.bulk)
		for i := range c.Values {
			c.Values[i] = e.values.Generate(idx + int64(i))
		}
	}
	return c
}

// Iterations returns the number of iterations that reached the stores.
func (e *Executor) Iterations() int64 {
	return e.iterations.Load()
}

// Throttled returns the number of iterations skipped by the governor.
func (e *Executor) Throttled() int64 {
	return e.throttled.Load()
}

// Description summarises the workload.
func (e *Executor) Description() string {
	ops := e.kind.String()
	if e.weights != nil {
		ops = e.weights.Description()
	}
	return fmt.Sprintf("ops[%s] sequence[%s] keys[%s] values[%s] bulk=%d targets=%d",
		ops, e.src.Description(), e.keys.Description(), e.values.Description(), e.bulk, len(e.targets))
}
