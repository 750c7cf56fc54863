//go:build ignore

// Stress test runner with built-in profiling support.
// Runs a configuration in-process while monitoring goroutines and memory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/wesleyorama2/kvlunge/internal/performance/config"
	"github.com/wesleyorama2/kvlunge/internal/performance/engine"
	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
)

func main() {
	cfgPath := flag.String("config", "", "run configuration (default: 16 workers against a memory store for 30s)")
	cpuProfile := flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile := flag.String("memprofile", "", "write memory profile to file")
	goroutineProfile := flag.String("goroutineprofile", "", "write goroutine profile to file")
	monitorInterval := flag.Duration("monitor-interval", 5*time.Second, "interval for monitoring stats")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatal("could not load config: ", err)
	}

	fmt.Println("========================================")
	fmt.Println("Recorder Stress Test with Profiling")
	fmt.Println("========================================")
	fmt.Println()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
		fmt.Printf("✓ CPU profiling enabled: %s\n", *cpuProfile)
	}

	var initialStats runtime.MemStats
	runtime.ReadMemStats(&initialStats)
	initialGoroutines := runtime.NumGoroutine()

	eng, err := engine.NewEngine(cfg)
	if err != nil {
		log.Fatal(err)
	}

	stopMonitor := make(chan struct{})
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		ticker := time.NewTicker(*monitorInterval)
		defer ticker.Stop()

		fmt.Println("Time\t\tGoroutines\tMemAlloc(MB)\tOps/s\t\tNumGC")
		fmt.Println("----\t\t----------\t------------\t-----\t\t-----")
		for {
			select {
			case <-ticker.C:
				var m runtime.MemStats
				runtime.ReadMemStats(&m)
				fmt.Printf("%s\t%d\t\t%.2f\t\t%.0f\t\t%d\n",
					time.Now().Format("15:04:05"),
					runtime.NumGoroutine(),
					float64(m.Alloc)/1024/1024,
					eng.Snapshot().OpsPerSecond,
					m.NumGC,
				)
			case <-stopMonitor:
				return
			}
		}
	}()

	start := time.Now()
	result, runErr := eng.Run(context.Background())
	elapsed := time.Since(start)

	close(stopMonitor)
	<-monitorDone

	fmt.Println()
	fmt.Println("========================================")
	fmt.Println("Test Completed")
	fmt.Println("========================================")
	fmt.Printf("Duration: %s\n", elapsed)
	if result != nil {
		fmt.Printf("Operations: %d (%.0f/s)\n", result.Metrics.TotalOperations, result.Metrics.OpsPerSecond)
		for _, r := range metrics.AllResults() {
			if n := result.Metrics.Totals[r]; n > 0 {
				fmt.Printf("  %-10s %d\n", r, n)
			}
		}
	}
	fmt.Println()

	runtime.GC()
	var finalStats runtime.MemStats
	runtime.ReadMemStats(&finalStats)
	finalGoroutines := runtime.NumGoroutine()

	fmt.Printf("Final state:\n")
	fmt.Printf("  Goroutines: %d (delta: %+d)\n", finalGoroutines, finalGoroutines-initialGoroutines)
	fmt.Printf("  Memory Allocated: %.2f MB (delta: %+.2f MB)\n",
		float64(finalStats.Alloc)/1024/1024,
		(float64(finalStats.Alloc)-float64(initialStats.Alloc))/1024/1024)
	fmt.Printf("  Total GC Runs: %d\n", finalStats.NumGC-initialStats.NumGC)
	fmt.Println()

	if finalGoroutines > initialGoroutines+5 {
		fmt.Printf("⚠ WARNING: Possible goroutine leak detected! (+%d goroutines)\n", finalGoroutines-initialGoroutines)
	} else {
		fmt.Println("✓ No goroutine leaks detected")
	}

	if *memProfile != "" {
		writeProfile(*memProfile, func(f *os.File) error { return pprof.WriteHeapProfile(f) })
	}
	if *goroutineProfile != "" {
		writeProfile(*goroutineProfile, func(f *os.File) error { return pprof.Lookup("goroutine").WriteTo(f, 0) })
	}

	if runErr != nil {
		fmt.Printf("✗ Test failed: %v\n", runErr)
		os.Exit(1)
	}
	fmt.Println("✓ Test completed successfully!")
}

func loadConfig(path string) (*config.RunConfig, error) {
	if path != "" {
		return config.LoadConfig(path)
	}
	return &config.RunConfig{
		Name:     "recorder stress",
		Workers:  16,
		Duration: config.Duration(30 * time.Second),
		Targets:  []config.TargetConfig{{Name: "mem", Type: "memory"}},
		Sequence: config.SequenceConfig{Mode: "uniform", Upper: 1 << 20},
		Operations: []config.OperationConfig{
			{Kind: "put", Weight: 0.5},
			{Kind: "get", Weight: 0.5},
		},
	}, nil
}

func writeProfile(path string, write func(*os.File) error) {
	f, err := os.Create(path)
	if err != nil {
		log.Fatal("could not create profile: ", err)
	}
	defer f.Close()
	if err := write(f); err != nil {
		log.Fatal("could not write profile: ", err)
	}
	fmt.Printf("✓ Profile written to: %s\n", path)
	fmt.Printf("  go tool pprof %s\n", path)
}
