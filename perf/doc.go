// Package perf runs kvlunge load tests from Go code.
//
// It wraps the engine used by the kvlunge command, with subpackages for the
// pieces a caller needs to build or read a run:
//
//   - perf/config: run configuration loading and validation
//   - perf/metrics: result kinds, snapshots and the time series
//   - perf/executor: run strategies (constant workers, iterations)
//   - perf/rate: iteration pacing
//
// # Quick Start
//
//	cfg, _ := config.LoadConfig("mix.yaml")
//	result, _ := perf.RunTest(context.Background(), cfg)
//
//	fmt.Printf("Operations: %d\n", result.Metrics.TotalOperations)
//	fmt.Printf("HIT p95: %v\n", result.Metrics.Result(metrics.ResultHit).P95)
//	fmt.Printf("Passed: %v\n", result.Passed)
//
// # Programmatic Configuration
//
//	cfg := &config.RunConfig{
//	    Name:       "local cache",
//	    Workers:    4,
//	    Duration:   config.Duration(10 * time.Second),
//	    Targets:    []config.TargetConfig{{Name: "lru", Type: "lru", Capacity: 10000}},
//	    Sequence:   config.SequenceConfig{Mode: "uniform", Upper: 50000},
//	    Operations: []config.OperationConfig{
//	        {Kind: "put", Weight: 0.2},
//	        {Kind: "get", Weight: 0.8},
//	    },
//	}
//
// # Custom Stores
//
// Any implementation of Store can be driven by passing it under the name
// of a configured target:
//
//	runner, _ := perf.NewRunner(cfg, perf.WithStores(map[string]perf.Store{"mine": myStore}))
//	result, _ := runner.Run(ctx)
package perf
