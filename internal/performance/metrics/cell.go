package metrics

import (
	"math/bits"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// HistogramConfig bounds the latency histograms, in microseconds.
type HistogramConfig struct {
	Min     int64
	Max     int64
	SigFigs int
}

// shard is one slice of a (target, result) cell. Count, latency sum and
// histogram change together under mu.
type shard struct {
	mu    sync.Mutex
	count uint64
	total time.Duration
	min   time.Duration
	max   time.Duration
	hist  *hdrhistogram.Histogram

	_ [40]byte // keep neighbouring shards off the same cache line
}

// cell aggregates one (target, result) pair across shards.
type cell struct {
	shards []shard
	mask   uint32
	hcfg   HistogramConfig
}

func shardCount() int {
	n := runtime.GOMAXPROCS(0)
	if n < 4 {
		n = 4
	}
	if n > 64 {
		n = 64
	}
	return 1 << bits.Len(uint(n-1))
}

func newCell(shards int, hcfg HistogramConfig) *cell {
	return &cell{
		shards: make([]shard, shards),
		mask:   uint32(shards - 1),
		hcfg:   hcfg,
	}
}

func (c *cell) record(latency time.Duration) {
	s := &c.shards[rand.Uint32()&c.mask]

	micros := latency.Microseconds()
	if micros < c.hcfg.Min {
		micros = c.hcfg.Min
	}
	if micros > c.hcfg.Max {
		micros = c.hcfg.Max
	}

	s.mu.Lock()
	if s.hist == nil {
		s.hist = hdrhistogram.New(c.hcfg.Min, c.hcfg.Max, c.hcfg.SigFigs)
	}
	if s.count == 0 || latency < s.min {
		s.min = latency
	}
	if latency > s.max {
		s.max = latency
	}
	s.count++
	s.total += latency
	_ = s.hist.RecordValue(micros)
	s.mu.Unlock()
}

// totals merges count and latency sum across shards.
func (c *cell) totals() (uint64, time.Duration) {
	var count uint64
	var total time.Duration
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		count += s.count
		total += s.total
		s.mu.Unlock()
	}
	return count, total
}

// stats merges every shard, histogram included.
func (c *cell) stats() LatencyStats {
	merged := hdrhistogram.New(c.hcfg.Min, c.hcfg.Max, c.hcfg.SigFigs)
	var out LatencyStats
	var total time.Duration
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		if s.count > 0 {
			if out.Count == 0 || s.min < out.Min {
				out.Min = s.min
			}
			if s.max > out.Max {
				out.Max = s.max
			}
			out.Count += s.count
			total += s.total
			merged.Merge(s.hist)
		}
		s.mu.Unlock()
	}
	if out.Count == 0 {
		return out
	}

	out.Total = total
	out.Mean = total / time.Duration(out.Count)
	out.P50 = time.Duration(merged.ValueAtQuantile(50)) * time.Microsecond
	out.P90 = time.Duration(merged.ValueAtQuantile(90)) * time.Microsecond
	out.P95 = time.Duration(merged.ValueAtQuantile(95)) * time.Microsecond
	out.P99 = time.Duration(merged.ValueAtQuantile(99)) * time.Microsecond
	return out
}

func (c *cell) reset() {
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		s.count = 0
		s.total = 0
		s.min = 0
		s.max = 0
		if s.hist != nil {
			s.hist.Reset()
		}
		s.mu.Unlock()
	}
}
