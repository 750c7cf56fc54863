package executor

import (
	"context"

	"github.com/wesleyorama2/kvlunge/internal/performance"
)

// PerWorkerIterations runs every worker for the same number of iterations.
//
// Total work is Workers × Iterations. Fast workers finish early; the run
// ends with the slowest one.
type PerWorkerIterations struct {
	base
}

// NewPerWorkerIterations creates a new per-worker iterations executor.
func NewPerWorkerIterations() *PerWorkerIterations {
	return &PerWorkerIterations{base: base{typ: TypePerWorkerIterations}}
}

// Run starts the workers, each with its own budget, and waits for them.
func (e *PerWorkerIterations) Run(ctx context.Context, pool *performance.WorkerPool) error {
	runCtx, finish, err := e.start(ctx, pool, 0)
	if err != nil {
		return err
	}
	defer finish()

	return pool.RunWorkers(runCtx, e.config.Workers, func(*performance.Worker) performance.Budget {
		return performance.NewIterationBudget(e.config.Iterations)
	})
}

// GetProgress returns completed iterations as a fraction of the total.
func (e *PerWorkerIterations) GetProgress() float64 {
	return e.progressByIterations()
}

// SharedIterations splits a total iteration count between the workers.
//
// Workers claim iterations from one atomic budget, so faster workers do
// more of the work and the run ends as soon as the budget is spent.
type SharedIterations struct {
	base
}

// NewSharedIterations creates a new shared iterations executor.
func NewSharedIterations() *SharedIterations {
	return &SharedIterations{base: base{typ: TypeSharedIterations}}
}

// Run starts the workers on one shared budget and waits for them.
func (e *SharedIterations) Run(ctx context.Context, pool *performance.WorkerPool) error {
	runCtx, finish, err := e.start(ctx, pool, 0)
	if err != nil {
		return err
	}
	defer finish()

	budget := performance.NewIterationBudget(e.config.Iterations)
	return pool.RunWorkers(runCtx, e.config.Workers, func(*performance.Worker) performance.Budget {
		return budget
	})
}

// GetProgress returns completed iterations as a fraction of the total.
func (e *SharedIterations) GetProgress() float64 {
	return e.progressByIterations()
}

var (
	_ Executor = (*PerWorkerIterations)(nil)
	_ Executor = (*SharedIterations)(nil)
)
