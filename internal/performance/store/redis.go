package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Conditional variants run as scripts so the compare and the write are
// one atomic step on the server.
var (
	replaceIfMatchScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  redis.call("SET", KEYS[1], ARGV[2])
  return 1
end
return 0`)

	removeIfMatchScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)
)

// Redis is a store backed by a Redis server.
type Redis struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// OpenRedis connects to cfg.Address and checks the connection with PING.
func OpenRedis(ctx context.Context, cfg TargetConfig, logger *zap.Logger) (*Redis, error) {
	addr := cfg.Address
	if addr == "" {
		addr = "localhost:6379"
	}
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: dial,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dial)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}

	logger.Info("connected to redis", zap.String("address", addr))
	return NewRedis(client, logger), nil
}

// NewRedis wraps an existing client.
func NewRedis(client redis.UniversalClient, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, logger: logger}
}

func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *Redis) Remove(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Del(ctx, key).Result()
	return n > 0, err
}

func (r *Redis) PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	return r.client.SetNX(ctx, key, value, 0).Result()
}

func (r *Redis) Replace(ctx context.Context, key string, value []byte) (bool, error) {
	return r.client.SetXX(ctx, key, value, 0).Result()
}

func (r *Redis) ReplaceIfMatch(ctx context.Context, key string, oldValue, newValue []byte) (bool, error) {
	n, err := replaceIfMatchScript.Run(ctx, r.client, []string{key}, oldValue, newValue).Int()
	return n == 1, err
}

func (r *Redis) RemoveIfMatch(ctx context.Context, key string, value []byte) (bool, error) {
	n, err := removeIfMatchScript.Run(ctx, r.client, []string{key}, value).Int()
	return n == 1, err
}

func (r *Redis) PutAll(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	pairs := make([]any, 0, 2*len(entries))
	for k, v := range entries {
		pairs = append(pairs, k, v)
	}
	return r.client.MSet(ctx, pairs...).Err()
}

func (r *Redis) GetAll(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		// MGET reports missing keys as nil.
		if s, ok := v.(string); ok {
			out[keys[i]] = []byte(s)
		}
	}
	return out, nil
}

func (r *Redis) RemoveAll(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := r.client.Del(ctx, keys...).Result()
	return int(n), err
}

func (r *Redis) Close() error {
	return r.client.Close()
}
