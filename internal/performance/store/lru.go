package store

import (
	"bytes"
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultLRUCapacity is used when an lru target sets no capacity.
const DefaultLRUCapacity = 100_000

// LRU is a bounded in-process store that evicts the least recently used
// entry once full. An evicted entry reads as absent.
type LRU struct {
	c     *lru.Cache
	locks *stripes
}

// NewLRU creates a store holding at most capacity entries.
func NewLRU(capacity int) (*LRU, error) {
	if capacity <= 0 {
		capacity = DefaultLRUCapacity
	}
	c, err := lru.New(capacity)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &LRU{c: c, locks: newStripes()}, nil
}

func (l *LRU) get(key string) ([]byte, bool) {
	v, ok := l.c.Get(key)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// remove deletes key under its stripe lock and reports presence.
func (l *LRU) remove(key string) bool {
	if !l.c.Contains(key) {
		return false
	}
	l.c.Remove(key)
	return true
}

func (l *LRU) Put(_ context.Context, key string, value []byte) error {
	defer l.locks.lock(key)()
	l.c.Add(key, bytes.Clone(value))
	return nil
}

func (l *LRU) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := l.get(key)
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

func (l *LRU) Remove(_ context.Context, key string) (bool, error) {
	defer l.locks.lock(key)()
	return l.remove(key), nil
}

func (l *LRU) PutIfAbsent(_ context.Context, key string, value []byte) (bool, error) {
	defer l.locks.lock(key)()
	found, _ := l.c.ContainsOrAdd(key, bytes.Clone(value))
	return !found, nil
}

func (l *LRU) Replace(_ context.Context, key string, value []byte) (bool, error) {
	defer l.locks.lock(key)()
	if !l.c.Contains(key) {
		return false, nil
	}
	l.c.Add(key, bytes.Clone(value))
	return true, nil
}

func (l *LRU) ReplaceIfMatch(_ context.Context, key string, oldValue, newValue []byte) (bool, error) {
	defer l.locks.lock(key)()
	cur, ok := l.get(key)
	if !ok || !bytes.Equal(cur, oldValue) {
		return false, nil
	}
	l.c.Add(key, bytes.Clone(newValue))
	return true, nil
}

func (l *LRU) RemoveIfMatch(_ context.Context, key string, value []byte) (bool, error) {
	defer l.locks.lock(key)()
	cur, ok := l.get(key)
	if !ok || !bytes.Equal(cur, value) {
		return false, nil
	}
	return l.remove(key), nil
}

func (l *LRU) PutAll(_ context.Context, entries map[string][]byte) error {
	defer l.locks.lockAll(keysOf(entries))()
	for k, v := range entries {
		l.c.Add(k, bytes.Clone(v))
	}
	return nil
}

func (l *LRU) GetAll(_ context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := l.get(k); ok {
			out[k] = bytes.Clone(v)
		}
	}
	return out, nil
}

func (l *LRU) RemoveAll(_ context.Context, keys []string) (int, error) {
	defer l.locks.lockAll(keys)()
	removed := 0
	for _, k := range keys {
		if l.remove(k) {
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of cached entries.
func (l *LRU) Len() int {
	return l.c.Len()
}

func (l *LRU) Close() error {
	l.c.Purge()
	return nil
}
