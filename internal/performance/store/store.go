// Package store defines the key/value capability driven by the load
// generator and adapters for the supported backends.
//
// Every adapter reports "not found" and "condition not met" through its
// boolean or count returns and reserves the error return for failures of
// the backend itself. Callers classify the outcome; adapters never do.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

var (
	// ErrUnknownType is returned by Open for an unrecognised target type.
	ErrUnknownType = errors.New("store: unknown target type")

	// ErrNoTargets is returned by OpenAll when no target is configured.
	ErrNoTargets = errors.New("store: no targets configured")
)

// Store is a key/value map with conditional and bulk operations.
type Store interface {
	// Put stores value under key unconditionally.
	Put(ctx context.Context, key string, value []byte) error

	// Get returns the value under key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Remove deletes key and reports whether it was present.
	Remove(ctx context.Context, key string) (bool, error)

	// PutIfAbsent stores value only if key is absent and reports whether it did.
	PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error)

	// Replace stores value only if key is present and reports whether it did.
	Replace(ctx context.Context, key string, value []byte) (bool, error)

	// ReplaceIfMatch stores newValue only if key currently holds oldValue.
	ReplaceIfMatch(ctx context.Context, key string, oldValue, newValue []byte) (bool, error)

	// RemoveIfMatch deletes key only if it currently holds value.
	RemoveIfMatch(ctx context.Context, key string, value []byte) (bool, error)

	// PutAll stores every entry.
	PutAll(ctx context.Context, entries map[string][]byte) error

	// GetAll returns the entries present among keys.
	GetAll(ctx context.Context, keys []string) (map[string][]byte, error)

	// RemoveAll deletes keys and returns how many were present.
	RemoveAll(ctx context.Context, keys []string) (int, error)

	Close() error
}

// Type names a store backend.
type Type string

const (
	TypeMemory Type = "memory"
	TypeLRU    Type = "lru"
	TypeRedis  Type = "redis"
	TypeEtcd   Type = "etcd"
)

// TargetConfig describes one named target.
type TargetConfig struct {
	Name        string
	Type        Type
	Capacity    int
	Address     string
	DialTimeout time.Duration

	// Prefix is prepended to every key sent to the backend.
	Prefix string
}

// Target is an opened store and its name.
type Target struct {
	Name  string
	Store Store
}

// Open connects the store described by cfg.
func Open(ctx context.Context, cfg TargetConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("store").With(zap.String("target", cfg.Name), zap.String("type", string(cfg.Type)))

	var (
		st  Store
		err error
	)
	switch Type(strings.ToLower(string(cfg.Type))) {
	case TypeMemory:
		st = NewMemory()
	case TypeLRU:
		st, err = NewLRU(cfg.Capacity)
	case TypeRedis:
		st, err = OpenRedis(ctx, cfg, logger)
	case TypeEtcd:
		st, err = OpenEtcd(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return WithPrefix(st, cfg.Prefix), nil
}

// OpenAll opens every target in order. On failure the targets already
// opened are closed again.
func OpenAll(ctx context.Context, cfgs []TargetConfig, logger *zap.Logger) ([]Target, error) {
	if len(cfgs) == 0 {
		return nil, ErrNoTargets
	}
	targets := make([]Target, 0, len(cfgs))
	for _, cfg := range cfgs {
		st, err := Open(ctx, cfg, logger)
		if err != nil {
			if cerr := CloseAll(targets); cerr != nil {
				err = multierror.Append(err, cerr)
			}
			return nil, fmt.Errorf("open target %q: %w", cfg.Name, err)
		}
		targets = append(targets, Target{Name: cfg.Name, Store: st})
	}
	return targets, nil
}

// CloseAll closes every target and returns the combined errors.
func CloseAll(targets []Target) error {
	var result *multierror.Error
	for _, t := range targets {
		if err := t.Store.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close target %q: %w", t.Name, err))
		}
	}
	return result.ErrorOrNil()
}
