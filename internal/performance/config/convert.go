package config

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/wesleyorama2/kvlunge/internal/performance/executor"
	"github.com/wesleyorama2/kvlunge/internal/performance/generator"
	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
	"github.com/wesleyorama2/kvlunge/internal/performance/operation"
	"github.com/wesleyorama2/kvlunge/internal/performance/sequence"
	"github.com/wesleyorama2/kvlunge/internal/performance/store"
)

// ExecutorConfig converts the run bounds to a strategy configuration.
func (c *RunConfig) ExecutorConfig() *executor.Config {
	typ := executor.Type(c.Executor)
	if typ == "" {
		typ = inferExecutor(c)
	}
	iterations := c.Iterations
	if typ == executor.TypeSharedIterations {
		iterations = c.SharedIterations
	}
	return &executor.Config{
		Type:         typ,
		Workers:      c.Workers,
		Duration:     time.Duration(c.Duration),
		Iterations:   iterations,
		GracefulStop: time.Duration(c.GracefulStop),
	}
}

// SequenceSpec converts the sequence section.
func (c *RunConfig) SequenceSpec() sequence.Spec {
	s := c.Sequence
	return sequence.Spec{
		Mode:        sequence.Mode(s.Mode),
		Origin:      s.Origin,
		Bound:       s.Bound,
		Lower:       s.Lower,
		Upper:       s.Upper,
		Mean:        s.Mean,
		StdDev:      s.StdDev,
		OnExhausted: sequence.ExhaustPolicy(s.OnExhausted),
	}
}

// KeySpec converts the keys section.
func (c *RunConfig) KeySpec() generator.Spec {
	return generator.Spec{Type: generator.Type(c.Keys.Type), Length: c.Keys.Length}
}

// ValueSpec converts the values section.
func (c *RunConfig) ValueSpec() generator.Spec {
	return generator.Spec{Type: generator.Type(c.Values.Type), Length: c.Values.Length}
}

// TargetConfigs converts the targets section.
func (c *RunConfig) TargetConfigs() []store.TargetConfig {
	out := make([]store.TargetConfig, len(c.Targets))
	for i, t := range c.Targets {
		out[i] = store.TargetConfig{
			Name:        t.Name,
			Type:        store.Type(t.Type),
			Capacity:    t.Capacity,
			Address:     t.Address,
			DialTimeout: time.Duration(t.DialTimeout),
			Prefix:      t.Prefix,
		}
	}
	return out
}

// Workload returns either a weight table for an operation mix or the
// single kind performed on every iteration.
func (c *RunConfig) Workload() (*operation.WeightTable, operation.Kind, error) {
	if len(c.Operations) == 0 {
		kind, err := operation.ParseKind(c.Operation)
		if err != nil {
			return nil, 0, err
		}
		return nil, kind, nil
	}

	weights := make([]operation.Weighted, 0, len(c.Operations))
	for i, op := range c.Operations {
		kind, err := operation.ParseKind(op.Kind)
		if err != nil {
			return nil, 0, fmt.Errorf("operations[%d]: %w", i, err)
		}
		weights = append(weights, operation.Weighted{Kind: kind, Weight: op.Weight})
	}
	table, err := operation.NewWeightTable(weights...)
	if err != nil {
		return nil, 0, err
	}
	return table, 0, nil
}

// ThrottleSettings returns the governor limit and gated result. ok is
// false when no throttle is configured.
func (c *RunConfig) ThrottleSettings() (limit float64, result metrics.Result, ok bool, err error) {
	if c.Throttle == nil {
		return 0, 0, false, nil
	}
	result, err = metrics.ParseResult(c.Throttle.Result)
	if err != nil {
		return 0, 0, false, err
	}
	return c.Throttle.Limit, result, true, nil
}

// ResultThresholds parses the thresholds section, ordered by result kind.
func (c *RunConfig) ResultThresholds() ([]ResultThreshold, error) {
	var out []ResultThreshold
	for _, name := range slices.Sorted(maps.Keys(c.Thresholds)) {
		result, err := metrics.ParseResult(name)
		if err != nil {
			return nil, fmt.Errorf("thresholds.%s: %w", name, err)
		}
		for _, expr := range c.Thresholds[name] {
			th, err := ParseThreshold(expr)
			if err != nil {
				return nil, fmt.Errorf("thresholds.%s: %w", name, err)
			}
			out = append(out, ResultThreshold{Result: result, Threshold: th})
		}
	}
	slices.SortStableFunc(out, func(a, b ResultThreshold) int { return int(a.Result) - int(b.Result) })
	return out, nil
}
