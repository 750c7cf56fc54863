package performance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// RunnerFactory builds the executor for a worker. Each worker gets its own
// executor; the factory may hand out shared collaborators such as one
// sequence source or recorder.
type RunnerFactory func(workerID int) (Runner, error)

// WorkerPool manages the lifecycle of workers.
//
// It provides:
//   - worker creation through a RunnerFactory
//   - running workers and collecting their failures
//   - graceful shutdown coordination
//
// Run strategies use the pool to control how many workers run and for how long.
type WorkerPool struct {
	factory RunnerFactory
	pacer   Pacer
	logger  *zap.Logger

	workers   map[int]*Worker
	workersMu sync.RWMutex
	nextID    atomic.Int32

	wg     sync.WaitGroup
	errsMu sync.Mutex
	errs   *multierror.Error
}

// NewWorkerPool creates a pool. pacer may be nil.
func NewWorkerPool(factory RunnerFactory, pacer Pacer, logger *zap.Logger) *WorkerPool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		factory: factory,
		pacer:   pacer,
		logger:  logger,
		workers: make(map[int]*Worker),
	}
}

// Spawn creates and registers a worker without starting it.
func (p *WorkerPool) Spawn() (*Worker, error) {
	id := int(p.nextID.Add(1))
	runner, err := p.factory(id)
	if err != nil {
		return nil, fmt.Errorf("build executor for worker %d: %w", id, err)
	}

	w := NewWorker(id, runner, p.pacer, p.logger)

	p.workersMu.Lock()
	p.workers[id] = w
	p.workersMu.Unlock()

	return w, nil
}

// Start runs w on a new goroutine. A failure is kept for Wait.
func (p *WorkerPool) Start(ctx context.Context, w *Worker, budget Budget) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := w.Run(ctx, budget); err != nil {
			p.errsMu.Lock()
			p.errs = multierror.Append(p.errs, err)
			p.errsMu.Unlock()
		}
	}()
}

// RunWorkers spawns n workers, runs them and waits for all of them to stop.
// budget is called once per worker and may return nil. The returned error
// aggregates every worker failure; healthy workers are never stopped
// because another one failed.
func (p *WorkerPool) RunWorkers(ctx context.Context, n int, budget func(*Worker) Budget) error {
	for i := 0; i < n; i++ {
		w, err := p.Spawn()
		if err != nil {
			p.StopAll()
			p.wg.Wait()
			return err
		}
		var b Budget
		if budget != nil {
			b = budget(w)
		}
		p.Start(ctx, w, b)
	}
	return p.Wait()
}

// Wait blocks until every started worker has stopped and returns their
// aggregated failures.
func (p *WorkerPool) Wait() error {
	p.wg.Wait()

	p.errsMu.Lock()
	defer p.errsMu.Unlock()
	return p.errs.ErrorOrNil()
}

// Get returns a worker by ID, or nil if not found.
func (p *WorkerPool) Get(id int) *Worker {
	p.workersMu.RLock()
	defer p.workersMu.RUnlock()
	return p.workers[id]
}

// Workers returns all workers ordered by ID.
func (p *WorkerPool) Workers() []*Worker {
	p.workersMu.RLock()
	out := make([]*Worker, 0, len(p.workers))
	for _, w := range p.workers {
		out = append(out, w)
	}
	p.workersMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveCount returns the number of workers that have not stopped.
func (p *WorkerPool) ActiveCount() int {
	p.workersMu.RLock()
	defer p.workersMu.RUnlock()

	count := 0
	for _, w := range p.workers {
		if w.State() != WorkerStateStopped {
			count++
		}
	}
	return count
}

// Iterations sums completed iterations over all workers.
func (p *WorkerPool) Iterations() int64 {
	var total int64
	for _, w := range p.Workers() {
		total += w.Iterations()
	}
	return total
}

// Throttled sums governor-skipped iterations over all workers.
func (p *WorkerPool) Throttled() int64 {
	var total int64
	for _, w := range p.Workers() {
		total += w.Throttled()
	}
	return total
}

// StopAll asks every worker to stop after its current iteration.
func (p *WorkerPool) StopAll() {
	p.workersMu.RLock()
	defer p.workersMu.RUnlock()

	for _, w := range p.workers {
		w.Stop()
	}
}

// Shutdown stops all workers and waits up to timeout for them. It returns
// the number of workers still running when the timeout expired.
func (p *WorkerPool) Shutdown(timeout time.Duration) int {
	p.StopAll()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return 0
	case <-time.After(timeout):
		remaining := p.ActiveCount()
		p.logger.Warn("workers still running after shutdown timeout",
			zap.Int("workers", remaining),
			zap.Duration("timeout", timeout))
		return remaining
	}
}
