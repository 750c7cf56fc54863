package store

import (
	"hash/maphash"
	"sort"
	"sync"
)

const stripeCount = 256

// stripes serialises compound operations per key without a lock per key.
type stripes struct {
	seed  maphash.Seed
	locks [stripeCount]sync.Mutex
}

func newStripes() *stripes {
	return &stripes{seed: maphash.MakeSeed()}
}

func (s *stripes) index(key string) int {
	return int(maphash.String(s.seed, key) % stripeCount)
}

func (s *stripes) lock(key string) func() {
	m := &s.locks[s.index(key)]
	m.Lock()
	return m.Unlock
}

// lockAll takes the stripes of every key in ascending order so bulk
// operations cannot deadlock each other.
func (s *stripes) lockAll(keys []string) func() {
	idx := make([]int, 0, len(keys))
	seen := make(map[int]bool, len(keys))
	for _, k := range keys {
		i := s.index(k)
		if !seen[i] {
			seen[i] = true
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	for _, i := range idx {
		s.locks[i].Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			s.locks[idx[j]].Unlock()
		}
	}
}
