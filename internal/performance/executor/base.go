package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/kvlunge/internal/performance"
)

const defaultGracefulStop = 30 * time.Second

// base holds the state every strategy shares: the pool it drives, timing
// and cancellation.
type base struct {
	typ    Type
	config *Config

	mu         sync.RWMutex
	pool       *performance.WorkerPool
	startTime  time.Time
	cancelFunc context.CancelFunc
	done       chan struct{}

	running atomic.Bool
}

func (b *base) Type() Type {
	return b.typ
}

func (b *base) Init(_ context.Context, config *Config) error {
	if config.Type != b.typ {
		return fmt.Errorf("invalid config type: expected %s, got %s", b.typ, config.Type)
	}
	if err := config.Validate(); err != nil {
		return err
	}
	b.config = config
	return nil
}

// start records the pool and derives the run context. The returned finish
// func must be called when the workers have stopped.
func (b *base) start(ctx context.Context, pool *performance.WorkerPool, timeout time.Duration) (context.Context, func(), error) {
	if b.config == nil {
		return nil, nil, fmt.Errorf("%s executor used before Init", b.typ)
	}

	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	b.mu.Lock()
	b.pool = pool
	b.startTime = time.Now()
	b.cancelFunc = cancel
	b.done = make(chan struct{})
	b.mu.Unlock()
	b.running.Store(true)

	finish := func() {
		cancel()
		b.running.Store(false)
		close(b.done)
	}
	return runCtx, finish, nil
}

func (b *base) currentPool() *performance.WorkerPool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pool
}

func (b *base) GetActiveWorkers() int {
	pool := b.currentPool()
	if pool == nil || !b.running.Load() {
		return 0
	}
	return pool.ActiveCount()
}

func (b *base) GetStats() *Stats {
	b.mu.RLock()
	start := b.startTime
	pool := b.pool
	b.mu.RUnlock()

	stats := &Stats{
		StartTime:   start,
		CurrentTime: time.Now(),
	}
	if !start.IsZero() {
		stats.Elapsed = time.Since(start)
	}
	if b.config != nil {
		stats.TotalDuration = b.config.TotalDuration()
		stats.TargetWorkers = b.config.Workers
		stats.TotalIterations = b.config.TotalIterations()
	}
	if pool != nil {
		stats.Iterations = pool.Iterations()
		stats.Throttled = pool.Throttled()
	}
	stats.ActiveWorkers = b.GetActiveWorkers()
	return stats
}

// progressByIterations is the progress of an iteration-bounded run.
func (b *base) progressByIterations() float64 {
	if !b.running.Load() {
		return b.finishedProgress()
	}
	total := b.config.TotalIterations()
	pool := b.currentPool()
	if total <= 0 || pool == nil {
		return 0
	}
	return min(float64(pool.Iterations())/float64(total), 1)
}

// finishedProgress is 0 before the first run and 1 after it.
func (b *base) finishedProgress() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.startTime.IsZero() {
		return 0
	}
	return 1
}

func (b *base) Stop(ctx context.Context) error {
	b.mu.RLock()
	cancel := b.cancelFunc
	done := b.done
	b.mu.RUnlock()

	if cancel == nil {
		return nil
	}
	cancel()

	graceful := defaultGracefulStop
	if b.config != nil && b.config.GracefulStop > 0 {
		graceful = b.config.GracefulStop
	}

	select {
	case <-done:
		return nil
	case <-time.After(graceful):
		return fmt.Errorf("graceful stop timeout after %v", graceful)
	case <-ctx.Done():
		return ctx.Err()
	}
}
