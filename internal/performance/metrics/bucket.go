package metrics

import (
	"sync"
	"time"
)

// TimeBucketStore keeps the most recent time buckets in a ring buffer.
//
// Buckets are built from cumulative totals; the store remembers the totals
// of the previous bucket and derives the interval deltas itself, so the
// hot recording path never touches it.
type TimeBucketStore struct {
	mu         sync.RWMutex
	buckets    []*TimeBucket
	head       int
	count      int
	maxBuckets int

	lastTime   time.Time
	lastTotals [numResults]uint64
}

// NewTimeBucketStore creates a store retaining at most maxBuckets buckets.
func NewTimeBucketStore(maxBuckets int, start time.Time) *TimeBucketStore {
	if maxBuckets <= 0 {
		maxBuckets = 3600
	}
	return &TimeBucketStore{
		buckets:    make([]*TimeBucket, maxBuckets),
		maxBuckets: maxBuckets,
		lastTime:   start,
	}
}

// Append builds a bucket from the cumulative totals observed at now.
func (s *TimeBucketStore) Append(now time.Time, elapsed time.Duration, totals [numResults]uint64, phase Phase) *TimeBucket {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := &TimeBucket{
		Timestamp: now,
		Elapsed:   elapsed,
		Phase:     phase,
		Totals:    make(map[Result]uint64, numResults),
		Interval:  make(map[Result]uint64, numResults),
	}
	for r := Result(0); r < numResults; r++ {
		b.Totals[r] = totals[r]
		// Totals only move backwards across a Reset, which also resets the store.
		var delta uint64
		if totals[r] >= s.lastTotals[r] {
			delta = totals[r] - s.lastTotals[r]
		}
		b.Interval[r] = delta
		b.IntervalOperations += delta
	}

	if secs := now.Sub(s.lastTime).Seconds(); secs > 0 {
		b.OpsPerSecond = float64(b.IntervalOperations) / secs
	}

	s.buckets[s.head] = b
	s.head = (s.head + 1) % s.maxBuckets
	if s.count < s.maxBuckets {
		s.count++
	}
	s.lastTime = now
	s.lastTotals = totals
	return b
}

// Buckets returns the retained buckets in chronological order.
func (s *TimeBucketStore) Buckets() []*TimeBucket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count == 0 {
		return nil
	}
	out := make([]*TimeBucket, s.count)
	start := 0
	if s.count == s.maxBuckets {
		start = s.head
	}
	for i := 0; i < s.count; i++ {
		out[i] = s.buckets[(start+i)%s.maxBuckets]
	}
	return out
}

// Latest returns the most recent bucket, or nil if none.
func (s *TimeBucketStore) Latest() *TimeBucket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count == 0 {
		return nil
	}
	return s.buckets[(s.head-1+s.maxBuckets)%s.maxBuckets]
}

// Len returns the number of retained buckets.
func (s *TimeBucketStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Reset drops every bucket and restarts interval accounting at start.
func (s *TimeBucketStore) Reset(start time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buckets = make([]*TimeBucket, s.maxBuckets)
	s.head = 0
	s.count = 0
	s.lastTime = start
	s.lastTotals = [numResults]uint64{}
}
