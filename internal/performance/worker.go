// Package performance runs workers that drive operation executors against
// key/value stores.
package performance

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/kvlunge/internal/performance/sequence"
)

// WorkerState represents the lifecycle state of a Worker.
type WorkerState int32

const (
	// WorkerStateIdle indicates the worker is ready but not running an iteration.
	WorkerStateIdle WorkerState = iota
	// WorkerStateRunning indicates the worker is inside an iteration.
	WorkerStateRunning
	// WorkerStateStopping indicates the worker has been asked to stop.
	WorkerStateStopping
	// WorkerStateStopped indicates the worker has fully stopped.
	WorkerStateStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerStateIdle:
		return "idle"
	case WorkerStateRunning:
		return "running"
	case WorkerStateStopping:
		return "stopping"
	case WorkerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Runner performs one iteration per Run call. *operation.Executor
// satisfies it.
type Runner interface {
	Run(ctx context.Context) error
	Throttled() int64
}

// Pacer delays iteration starts. *rate.Pacer satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Budget hands out iterations. Take reports false once the budget is spent.
type Budget interface {
	Take() bool
}

// IterationBudget is a fixed number of iterations. One budget shared by
// several workers splits the total between them.
type IterationBudget struct {
	remaining atomic.Int64
	total     int64
}

// NewIterationBudget creates a budget of n iterations.
func NewIterationBudget(n int64) *IterationBudget {
	b := &IterationBudget{total: n}
	b.remaining.Store(n)
	return b
}

// Take claims one iteration.
func (b *IterationBudget) Take() bool {
	return b.remaining.Add(-1) >= 0
}

// Remaining returns the unclaimed iterations.
func (b *IterationBudget) Remaining() int64 {
	return max(b.remaining.Load(), 0)
}

// Total returns the size of the budget.
func (b *IterationBudget) Total() int64 {
	return b.total
}

// Worker runs iterations of one executor on one goroutine.
//
// A worker stops when its context is done, when Stop is called, when its
// budget is spent, or when the executor can no longer draw an index. The
// last case is returned from Run as an error; the others are a clean stop.
type Worker struct {
	// ID is unique within a pool and starts at 1.
	ID int

	runner Runner
	pacer  Pacer
	logger *zap.Logger

	state      atomic.Int32
	iterations atomic.Int64
	stopCh     chan struct{}
	doneCh     chan struct{}

	startedAt atomic.Int64
	stoppedAt atomic.Int64
}

// NewWorker creates a worker. pacer may be nil.
func NewWorker(id int, runner Runner, pacer Pacer, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		ID:     id,
		runner: runner,
		pacer:  pacer,
		logger: logger.With(zap.Int("worker", id)),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// State returns the current state.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Iterations returns the number of completed Run calls on the executor,
// throttled ones included.
func (w *Worker) Iterations() int64 {
	return w.iterations.Load()
}

// Throttled returns the number of iterations skipped by the governor.
func (w *Worker) Throttled() int64 {
	return w.runner.Throttled()
}

// Elapsed returns how long the worker has been (or was) running.
func (w *Worker) Elapsed() time.Duration {
	start := w.startedAt.Load()
	if start == 0 {
		return 0
	}
	end := w.stoppedAt.Load()
	if end == 0 {
		end = time.Now().UnixNano()
	}
	return time.Duration(end - start)
}

// RunIteration performs one iteration.
//
// The store calls run on a context detached from ctx's cancellation so an
// iteration that has started is finished and recorded as it happened
// rather than as a cancelled call. ctx still carries its values.
func (w *Worker) RunIteration(ctx context.Context) error {
	switch w.State() {
	case WorkerStateStopping, WorkerStateStopped:
		return fmt.Errorf("worker %d is stopping or stopped", w.ID)
	}

	w.state.CompareAndSwap(int32(WorkerStateIdle), int32(WorkerStateRunning))
	err := w.runner.Run(context.WithoutCancel(ctx))
	w.state.CompareAndSwap(int32(WorkerStateRunning), int32(WorkerStateIdle))
	if err != nil {
		return err
	}
	w.iterations.Add(1)
	return nil
}

// Run runs iterations until the worker stops. budget may be nil for an
// unbounded run.
func (w *Worker) Run(ctx context.Context, budget Budget) error {
	w.startedAt.Store(time.Now().UnixNano())
	defer w.markStopped()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stopCh:
			return nil
		default:
		}

		if budget != nil && !budget.Take() {
			return nil
		}
		if w.pacer != nil {
			if err := w.pacer.Wait(ctx); err != nil {
				return nil
			}
		}

		if err := w.RunIteration(ctx); err != nil {
			if w.State() == WorkerStateStopping {
				return nil
			}
			if errors.Is(err, sequence.ErrExhausted) {
				w.logger.Info("sequence exhausted, worker stopping",
					zap.Int64("iterations", w.Iterations()))
			} else {
				w.logger.Error("worker failed", zap.Error(err))
			}
			return fmt.Errorf("worker %d: %w", w.ID, err)
		}
	}
}

// Stop asks the worker to stop after its current iteration.
func (w *Worker) Stop() {
	if w.state.CompareAndSwap(int32(WorkerStateRunning), int32(WorkerStateStopping)) ||
		w.state.CompareAndSwap(int32(WorkerStateIdle), int32(WorkerStateStopping)) {
		close(w.stopCh)
	}
}

// Done is closed when the worker has stopped.
func (w *Worker) Done() <-chan struct{} {
	return w.doneCh
}

func (w *Worker) markStopped() {
	w.stoppedAt.Store(time.Now().UnixNano())
	prev := WorkerState(w.state.Swap(int32(WorkerStateStopped)))
	if prev == WorkerStateStopped {
		return
	}
	close(w.doneCh)
}
