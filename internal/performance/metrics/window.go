package metrics

import (
	"sync/atomic"
	"time"
)

const (
	// DefaultRateWindow is the trailing span used for current-rate queries.
	DefaultRateWindow = time.Second

	// DefaultRateSlot is the granularity of the rate window.
	DefaultRateSlot = 100 * time.Millisecond
)

// rateWindow counts events in a ring of time slots.
//
// Each slot is one uint64 holding the slot epoch in the high 32 bits and
// the event count in the low 32 bits, so a slot is advanced and counted in
// a single CAS. A rate query covers the slots whose epoch lies within
// span/slot epochs of the current one, including the partially elapsed
// current slot.
//
// # Thread Safety
//
// add is lock-free and count is wait-free.
type rateWindow struct {
	slots []atomic.Uint64
	slot  time.Duration
	span  time.Duration
	n     uint32 // span / slot
}

func newRateWindow(span, slot time.Duration) *rateWindow {
	if slot <= 0 {
		slot = DefaultRateSlot
	}
	if span < slot {
		span = slot
	}
	n := uint32(span / slot)
	return &rateWindow{
		slots: make([]atomic.Uint64, n+1),
		slot:  slot,
		span:  time.Duration(n) * slot,
		n:     n,
	}
}

func (w *rateWindow) epoch(elapsed time.Duration) uint32 {
	if elapsed < 0 {
		elapsed = 0
	}
	return uint32(elapsed / w.slot)
}

func (w *rateWindow) add(elapsed time.Duration) {
	e := w.epoch(elapsed)
	s := &w.slots[e%uint32(len(w.slots))]
	for {
		old := s.Load()
		var next uint64
		if uint32(old>>32) == e {
			next = old + 1
		} else {
			next = uint64(e)<<32 | 1
		}
		if s.CompareAndSwap(old, next) {
			return
		}
	}
}

func (w *rateWindow) count(elapsed time.Duration) uint64 {
	e := w.epoch(elapsed)
	var lowest uint32
	if e > w.n {
		lowest = e - w.n
	}

	var total uint64
	for i := range w.slots {
		v := w.slots[i].Load()
		se := uint32(v >> 32)
		if se >= lowest && se <= e {
			total += v & 0xffffffff
		}
	}
	return total
}

// rate returns events per second over the window span.
func (w *rateWindow) rate(elapsed time.Duration) float64 {
	c := w.count(elapsed)
	if c == 0 {
		return 0
	}
	return float64(c) / w.span.Seconds()
}

func (w *rateWindow) reset() {
	for i := range w.slots {
		w.slots[i].Store(0)
	}
}
