// Command generate-sample-report runs a short in-process load test against
// a map and a bounded LRU and writes its HTML report.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/wesleyorama2/kvlunge/internal/performance/config"
	"github.com/wesleyorama2/kvlunge/internal/performance/engine"
	"github.com/wesleyorama2/kvlunge/internal/performance/report"
)

func main() {
	outputPath := "sample-report.html"
	if len(os.Args) > 1 {
		outputPath = os.Args[1]
	}

	result, err := runSample(context.Background(), 5*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := report.GenerateHTML(result, outputPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Sample report generated: %s\n", outputPath)
}

func sampleConfig(d time.Duration) *config.RunConfig {
	shared := false
	return &config.RunConfig{
		Name:        "Sample cache mix",
		Description: "80/15/5 get/put/remove over a gaussian key space",
		Workers:     4,
		Duration:    config.Duration(d),
		Warmup:      config.Duration(d / 5),
		Targets: []config.TargetConfig{
			{Name: "map", Type: "memory"},
			{Name: "lru", Type: "lru", Capacity: 5000},
		},
		Sequence: config.SequenceConfig{
			Mode:   "gaussian",
			Upper:  20000,
			Mean:   10000,
			StdDev: 2500,
			Shared: &shared,
		},
		Values: config.GeneratorConfig{Type: "verified", Length: 128},
		Operations: []config.OperationConfig{
			{Kind: "get", Weight: 0.8},
			{Kind: "put", Weight: 0.15},
			{Kind: "remove", Weight: 0.05},
		},
		Thresholds: map[string][]string{
			"HIT":       {"p99 < 10ms"},
			"EXCEPTION": {"count == 0"},
		},
	}
}

func runSample(ctx context.Context, d time.Duration) (*engine.Result, error) {
	eng, err := engine.NewEngine(sampleConfig(d))
	if err != nil {
		return nil, err
	}
	return eng.Run(ctx)
}
