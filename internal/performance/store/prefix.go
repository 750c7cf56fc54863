package store

import (
	"context"
	"strings"
)

// Prefixed namespaces every key of the wrapped store, so several runs can
// share one backend without seeing each other's entries.
type Prefixed struct {
	Store
	prefix string
}

// WithPrefix wraps s so every key is stored as prefix+key. An empty prefix
// returns s unchanged.
func WithPrefix(s Store, prefix string) Store {
	if prefix == "" {
		return s
	}
	return Prefixed{Store: s, prefix: prefix}
}

func (p Prefixed) key(k string) string { return p.prefix + k }

func (p Prefixed) keys(ks []string) []string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = p.prefix + k
	}
	return out
}

func (p Prefixed) Put(ctx context.Context, key string, value []byte) error {
	return p.Store.Put(ctx, p.key(key), value)
}

func (p Prefixed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return p.Store.Get(ctx, p.key(key))
}

func (p Prefixed) Remove(ctx context.Context, key string) (bool, error) {
	return p.Store.Remove(ctx, p.key(key))
}

func (p Prefixed) PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	return p.Store.PutIfAbsent(ctx, p.key(key), value)
}

func (p Prefixed) Replace(ctx context.Context, key string, value []byte) (bool, error) {
	return p.Store.Replace(ctx, p.key(key), value)
}

func (p Prefixed) ReplaceIfMatch(ctx context.Context, key string, oldValue, newValue []byte) (bool, error) {
	return p.Store.ReplaceIfMatch(ctx, p.key(key), oldValue, newValue)
}

func (p Prefixed) RemoveIfMatch(ctx context.Context, key string, value []byte) (bool, error) {
	return p.Store.RemoveIfMatch(ctx, p.key(key), value)
}

func (p Prefixed) PutAll(ctx context.Context, entries map[string][]byte) error {
	out := make(map[string][]byte, len(entries))
	for k, v := range entries {
		out[p.key(k)] = v
	}
	return p.Store.PutAll(ctx, out)
}

func (p Prefixed) GetAll(ctx context.Context, keys []string) (map[string][]byte, error) {
	got, err := p.Store.GetAll(ctx, p.keys(keys))
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(got))
	for k, v := range got {
		out[strings.TrimPrefix(k, p.prefix)] = v
	}
	return out, nil
}

func (p Prefixed) RemoveAll(ctx context.Context, keys []string) (int, error) {
	return p.Store.RemoveAll(ctx, p.keys(keys))
}
