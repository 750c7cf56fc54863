// Command test-server runs an in-memory Redis server for local load tests:
//
//	go run ./scripts/test-server -addr 127.0.0.1:6379
//	kvlunge run --config redis-mix.yaml
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:6379", "listen address")
	stats := flag.Duration("stats", 10*time.Second, "interval between key count logs, 0 to disable")
	flag.Parse()

	srv := miniredis.NewMiniRedis()
	if err := srv.StartAddr(*addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
	defer srv.Close()

	log.Printf("Test server starting on %s", srv.Addr())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	var tick <-chan time.Time
	if *stats > 0 {
		ticker := time.NewTicker(*stats)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-sig:
			log.Printf("Shutting down after %d commands", srv.CommandCount())
			return
		case <-tick:
			log.Print(statsLine(srv))
		}
	}
}

func statsLine(srv *miniredis.Miniredis) string {
	return fmt.Sprintf("keys=%d commands=%d clients=%d", len(srv.Keys()), srv.CommandCount(), srv.CurrentConnectionCount())
}
