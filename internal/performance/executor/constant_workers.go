package executor

import (
	"context"
	"time"

	"github.com/wesleyorama2/kvlunge/internal/performance"
)

// ConstantWorkers runs a fixed number of workers for a specified duration.
//
// This is the simplest strategy: spawn N workers and let them run
// iterations until the duration expires. A worker whose sequence is
// exhausted stops early while the others carry on.
//
// Use cases:
//   - Measuring sustained throughput of a store
//   - Soak testing
//   - Mixed read/write workloads against a warmed cache
type ConstantWorkers struct {
	base
}

// NewConstantWorkers creates a new constant workers executor.
func NewConstantWorkers() *ConstantWorkers {
	return &ConstantWorkers{base: base{typ: TypeConstantWorkers}}
}

// Run starts the workers and blocks until the duration expires or every
// worker has stopped.
func (e *ConstantWorkers) Run(ctx context.Context, pool *performance.WorkerPool) error {
	var timeout time.Duration
	if e.config != nil {
		timeout = e.config.Duration
	}
	runCtx, finish, err := e.start(ctx, pool, timeout)
	if err != nil {
		return err
	}
	defer finish()

	return pool.RunWorkers(runCtx, e.config.Workers, nil)
}

// GetProgress returns elapsed time as a fraction of the duration.
func (e *ConstantWorkers) GetProgress() float64 {
	if !e.running.Load() {
		return e.finishedProgress()
	}

	e.mu.RLock()
	start := e.startTime
	e.mu.RUnlock()

	return min(float64(time.Since(start))/float64(e.config.Duration), 1)
}

var _ Executor = (*ConstantWorkers)(nil)
