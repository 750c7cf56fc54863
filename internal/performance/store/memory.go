package store

import (
	"bytes"
	"context"

	"github.com/patrickmn/go-cache"
)

// Memory is an unbounded in-process store backed by go-cache.
//
// go-cache makes single calls atomic; compound operations additionally
// hold the key's stripe lock, and so does every mutation, so a
// compare-and-set never interleaves with a plain write to the same key.
type Memory struct {
	c     *cache.Cache
	locks *stripes
}

// NewMemory creates an empty in-memory store. Entries never expire.
func NewMemory() *Memory {
	return &Memory{
		c:     cache.New(cache.NoExpiration, 0),
		locks: newStripes(),
	}
}

func (m *Memory) get(key string) ([]byte, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	defer m.locks.lock(key)()
	m.c.Set(key, bytes.Clone(value), cache.NoExpiration)
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.get(key)
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

func (m *Memory) Remove(_ context.Context, key string) (bool, error) {
	defer m.locks.lock(key)()
	if _, ok := m.get(key); !ok {
		return false, nil
	}
	m.c.Delete(key)
	return true, nil
}

func (m *Memory) PutIfAbsent(_ context.Context, key string, value []byte) (bool, error) {
	defer m.locks.lock(key)()
	// Add fails when the key is already present.
	return m.c.Add(key, bytes.Clone(value), cache.NoExpiration) == nil, nil
}

func (m *Memory) Replace(_ context.Context, key string, value []byte) (bool, error) {
	defer m.locks.lock(key)()
	return m.c.Replace(key, bytes.Clone(value), cache.NoExpiration) == nil, nil
}

func (m *Memory) ReplaceIfMatch(_ context.Context, key string, oldValue, newValue []byte) (bool, error) {
	defer m.locks.lock(key)()
	cur, ok := m.get(key)
	if !ok || !bytes.Equal(cur, oldValue) {
		return false, nil
	}
	m.c.Set(key, bytes.Clone(newValue), cache.NoExpiration)
	return true, nil
}

func (m *Memory) RemoveIfMatch(_ context.Context, key string, value []byte) (bool, error) {
	defer m.locks.lock(key)()
	cur, ok := m.get(key)
	if !ok || !bytes.Equal(cur, value) {
		return false, nil
	}
	m.c.Delete(key)
	return true, nil
}

func (m *Memory) PutAll(_ context.Context, entries map[string][]byte) error {
	defer m.locks.lockAll(keysOf(entries))()
	for k, v := range entries {
		m.c.Set(k, bytes.Clone(v), cache.NoExpiration)
	}
	return nil
}

func (m *Memory) GetAll(_ context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := m.get(k); ok {
			out[k] = bytes.Clone(v)
		}
	}
	return out, nil
}

func (m *Memory) RemoveAll(_ context.Context, keys []string) (int, error) {
	defer m.locks.lockAll(keys)()
	removed := 0
	for _, k := range keys {
		if _, ok := m.get(k); ok {
			m.c.Delete(k)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	return m.c.ItemCount()
}

func (m *Memory) Close() error {
	m.c.Flush()
	return nil
}

func keysOf(entries map[string][]byte) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	return keys
}
