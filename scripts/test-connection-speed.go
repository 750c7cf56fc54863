//go:build ignore

// Measures raw round trips to one store, without the kvlunge engine, to
// separate store latency from harness overhead.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/kvlunge/internal/performance/store"
)

func main() {
	typ := flag.String("type", "redis", "store type: memory, lru, redis or etcd")
	addr := flag.String("addr", "127.0.0.1:6379", "store address")
	duration := flag.Duration("duration", 10*time.Second, "test duration")
	concurrency := flag.Int("concurrency", 100, "concurrent callers")
	flag.Parse()

	ctx := context.Background()
	s, err := store.Open(ctx, store.TargetConfig{
		Name:        "probe",
		Type:        store.Type(*typ),
		Capacity:    100000,
		Address:     *addr,
		DialTimeout: 5 * time.Second,
		Prefix:      "speed:",
	}, zap.NewNop())
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer s.Close()

	fmt.Printf("Testing round trips to %s %s\n", *typ, *addr)
	fmt.Printf("Duration: %v, Concurrency: %d\n\n", *duration, *concurrency)

	if err := s.Put(ctx, "0", []byte("value")); err != nil {
		log.Fatalf("put: %v", err)
	}

	var total, errors atomic.Int64
	var totalLatency atomic.Int64

	runCtx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for runCtx.Err() == nil {
				start := time.Now()
				_, _, err := s.Get(runCtx, "0")
				totalLatency.Add(int64(time.Since(start)))
				total.Add(1)
				if err != nil && runCtx.Err() == nil {
					errors.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	n := total.Load()
	fmt.Printf("Total calls: %d\n", n)
	fmt.Printf("Errors: %d\n", errors.Load())
	fmt.Printf("Calls/sec: %.2f\n", float64(n)/duration.Seconds())
	if n > 0 {
		fmt.Printf("Avg latency: %v\n", time.Duration(totalLatency.Load()/n))
	}
}
