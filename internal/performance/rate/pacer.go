package rate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"
)

// Pacer spaces iteration starts at a fixed rate shared by every worker.
//
// Where the Governor skips iterations, the Pacer delays them. It follows
// the leaky bucket algorithm: a virtual drip time advances by one interval
// per reserved iteration and each Next call returns when the caller may
// start. A caller that is behind schedule starts immediately.
//
// # Thread Safety
//
// Pacer is safe for concurrent use.
//
// # Example
//
//	p := rate.NewPacer(1000) // 1000 iterations per second over all workers
//	for {
//	    if err := p.Wait(ctx); err != nil {
//	        return err
//	    }
//	    // run one iteration
//	}
type Pacer struct {
	mu       sync.Mutex
	rate     float64
	interval time.Duration
	next     time.Time // earliest start of the next iteration
	maxBurst float64
	clock    clock.Clock

	iterations atomic.Int64
	waited     atomic.Int64 // nanoseconds
}

// NewPacer creates a pacer at the given rate. A non-positive rate is
// treated as one per second.
func NewPacer(rate float64) *Pacer {
	return NewPacerWithClock(rate, clock.RealClock{})
}

// NewPacerWithClock creates a pacer driven by clk.
func NewPacerWithClock(rate float64, clk clock.Clock) *Pacer {
	if rate <= 0 {
		rate = 1
	}
	return &Pacer{
		rate:     rate,
		interval: time.Duration(float64(time.Second) / rate),
		next:     clk.Now(),
		maxBurst: 1,
		clock:    clk,
	}
}

// Next reserves the next start time. It may be in the past, in which case
// the caller starts immediately. Concurrent callers get distinct slots.
func (p *Pacer) Next() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()

	// Idle time earns at most maxBurst-1 iterations of credit.
	floor := now.Add(-time.Duration((p.maxBurst - 1) * float64(p.interval)))
	if p.next.Before(floor) {
		p.next = floor
	}

	start := p.next
	p.next = start.Add(p.interval)
	p.iterations.Add(1)

	if !start.After(now) {
		return now
	}
	p.waited.Add(int64(start.Sub(now)))
	return start
}

// Wait blocks until the next reserved start time or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	wait := p.Next().Sub(p.clock.Now())
	if wait <= 0 {
		return ctx.Err()
	}

	timer := p.clock.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}

// SetMaxBurst allows up to burst iterations to accumulate while callers
// are slow. Values below one mean strict spacing.
func (p *Pacer) SetMaxBurst(burst float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if burst < 1 {
		burst = 1
	}
	p.maxBurst = burst
}

// Rate returns the pacing rate in iterations per second.
func (p *Pacer) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

// PacerStats describes pacer activity.
type PacerStats struct {
	Rate       float64       `json:"rate"`
	Iterations int64         `json:"iterations"`
	Waited     time.Duration `json:"waited"`
}

// Stats returns the pacer's counters.
func (p *Pacer) Stats() PacerStats {
	return PacerStats{
		Rate:       p.Rate(),
		Iterations: p.iterations.Load(),
		Waited:     time.Duration(p.waited.Load()),
	}
}

// Reset restarts pacing from now and clears the counters.
func (p *Pacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = p.clock.Now()
	p.iterations.Store(0)
	p.waited.Store(0)
}
