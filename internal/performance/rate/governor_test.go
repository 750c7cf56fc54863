package rate

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
)

type fixedRate map[metrics.Result]float64

func (f fixedRate) CurrentRate(r metrics.Result) float64 { return f[r] }

func TestNewGovernor(t *testing.T) {
	tests := []struct {
		name    string
		limit   float64
		result  metrics.Result
		src     Source
		wantErr error
	}{
		{"valid", 10, metrics.ResultWrite, fixedRate{}, nil},
		{"zero limit", 0, metrics.ResultWrite, fixedRate{}, ErrInvalidLimit},
		{"negative limit", -5, metrics.ResultWrite, fixedRate{}, ErrInvalidLimit},
		{"nan limit", math.NaN(), metrics.ResultWrite, fixedRate{}, ErrInvalidLimit},
		{"infinite limit", math.Inf(1), metrics.ResultWrite, fixedRate{}, ErrInvalidLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGovernor(tt.limit, tt.result, tt.src)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewGovernor() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewGovernor(1, metrics.Result(99), fixedRate{}); err == nil {
		t.Error("NewGovernor() with invalid result should fail")
	}
	if _, err := NewGovernor(1, metrics.ResultWrite, nil); err == nil {
		t.Error("NewGovernor() with nil source should fail")
	}
}

func TestGovernor_Admit(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		limit   float64
		want    bool
	}{
		{"idle", 0, 10, true},
		{"below", 9.9, 10, true},
		{"at limit", 10, 10, false},
		{"above", 25, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGovernor(tt.limit, metrics.ResultWrite, fixedRate{metrics.ResultWrite: tt.current})
			if err != nil {
				t.Fatalf("NewGovernor() error = %v", err)
			}
			if got := g.Admit(); got != tt.want {
				t.Errorf("Admit() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGovernor_IgnoresOtherResults(t *testing.T) {
	g, err := NewGovernor(10, metrics.ResultWrite, fixedRate{metrics.ResultHit: 1000})
	if err != nil {
		t.Fatalf("NewGovernor() error = %v", err)
	}
	if !g.Admit() {
		t.Error("Admit() = false, want true when only other results are busy")
	}
	if !g.Gates(metrics.ResultWrite) {
		t.Error("Gates(WRITE) = false, want true")
	}
	if g.Gates(metrics.ResultHit) {
		t.Error("Gates(HIT) = true, want false")
	}
}

func TestGovernor_WithRecorder(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Unix(0, 0))
	cfg := metrics.DefaultRecorderConfig()
	cfg.BucketInterval = 0
	cfg.Clock = clk
	rec := metrics.NewRecorderWithConfig(cfg)
	defer rec.Stop()

	g, err := NewGovernor(5, metrics.ResultWrite, rec)
	if err != nil {
		t.Fatalf("NewGovernor() error = %v", err)
	}

	admitted := 0
	for i := 0; i < 20; i++ {
		if g.Admit() {
			admitted++
			rec.Record("one", time.Microsecond, metrics.ResultWrite)
		}
	}
	if admitted != 5 {
		t.Errorf("admitted %d in one window, want 5", admitted)
	}

	clk.Step(1100 * time.Millisecond)
	if !g.Admit() {
		t.Error("Admit() = false after the window slid past")
	}
}

func TestPacer_SpacesStarts(t *testing.T) {
	start := time.Unix(100, 0)
	clk := clocktesting.NewFakeClock(start)
	p := NewPacerWithClock(100, clk)

	want := []time.Time{
		start,
		start.Add(10 * time.Millisecond),
		start.Add(20 * time.Millisecond),
	}
	for i, w := range want {
		if got := p.Next(); !got.Equal(w) {
			t.Errorf("Next() #%d = %v, want %v", i, got.Sub(start), w.Sub(start))
		}
	}

	// After a long idle gap only one iteration starts immediately.
	clk.Step(time.Second)
	now := clk.Now()
	if got := p.Next(); !got.Equal(now) {
		t.Errorf("Next() after idle = %v, want now", got.Sub(now))
	}
	if got := p.Next(); !got.Equal(now.Add(10 * time.Millisecond)) {
		t.Errorf("Next() = %v after idle, want +10ms", got.Sub(now))
	}
}

func TestPacer_Burst(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Unix(100, 0))
	p := NewPacerWithClock(10, clk)
	p.SetMaxBurst(3)

	clk.Step(10 * time.Second)
	now := clk.Now()
	for i := 0; i < 3; i++ {
		if got := p.Next(); !got.Equal(now) {
			t.Errorf("burst Next() #%d = %v, want immediate", i, got.Sub(now))
		}
	}
	if got := p.Next(); !got.After(now) {
		t.Error("Next() past the burst should be delayed")
	}
}

func TestPacer_ConcurrentDistinctSlots(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Unix(100, 0))
	p := NewPacerWithClock(1000, clk)

	var mu sync.Mutex
	seen := make(map[time.Time]bool)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ts := p.Next()
				mu.Lock()
				seen[ts] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 800 {
		t.Errorf("distinct start times = %d, want 800", len(seen))
	}
	if got := p.Stats().Iterations; got != 800 {
		t.Errorf("Stats().Iterations = %d, want 800", got)
	}
}

func TestPacer_WaitCancelled(t *testing.T) {
	p := NewPacer(0.001)
	_ = p.Next()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := p.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestPacer_WaitImmediate(t *testing.T) {
	p := NewPacer(1000)
	if err := p.Wait(context.Background()); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}
