package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// Etcd is a store backed by an etcd cluster. Conditional operations are
// single transactions guarded by a compare on the key.
type Etcd struct {
	client *clientv3.Client
	logger *zap.Logger
}

// OpenEtcd connects to the comma separated endpoints in cfg.Address.
func OpenEtcd(_ context.Context, cfg TargetConfig, logger *zap.Logger) (*Etcd, error) {
	endpoints := splitEndpoints(cfg.Address)
	if len(endpoints) == 0 {
		endpoints = []string{"localhost:2379"}
	}
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dial,
		Logger:      logger.Named("etcd-client"),
	})
	if err != nil {
		return nil, fmt.Errorf("connect etcd %v: %w", endpoints, err)
	}

	logger.Info("connected to etcd", zap.Strings("endpoints", endpoints))
	return &Etcd{client: client, logger: logger}, nil
}

func splitEndpoints(addr string) []string {
	var out []string
	for _, e := range strings.Split(addr, ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

func (e *Etcd) Put(ctx context.Context, key string, value []byte) error {
	_, err := e.client.Put(ctx, key, string(value))
	return err
}

func (e *Etcd) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp, err := e.client.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if len(resp.Kvs) == 0 {
		return nil, false, nil
	}
	return resp.Kvs[0].Value, true, nil
}

func (e *Etcd) Remove(ctx context.Context, key string) (bool, error) {
	resp, err := e.client.Delete(ctx, key)
	if err != nil {
		return false, err
	}
	return resp.Deleted > 0, nil
}

func (e *Etcd) PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	return e.txn(ctx,
		clientv3.Compare(clientv3.CreateRevision(key), "=", 0),
		clientv3.OpPut(key, string(value)))
}

func (e *Etcd) Replace(ctx context.Context, key string, value []byte) (bool, error) {
	return e.txn(ctx,
		clientv3.Compare(clientv3.CreateRevision(key), ">", 0),
		clientv3.OpPut(key, string(value)))
}

func (e *Etcd) ReplaceIfMatch(ctx context.Context, key string, oldValue, newValue []byte) (bool, error) {
	return e.txn(ctx,
		clientv3.Compare(clientv3.Value(key), "=", string(oldValue)),
		clientv3.OpPut(key, string(newValue)))
}

func (e *Etcd) RemoveIfMatch(ctx context.Context, key string, value []byte) (bool, error) {
	return e.txn(ctx,
		clientv3.Compare(clientv3.Value(key), "=", string(value)),
		clientv3.OpDelete(key))
}

func (e *Etcd) txn(ctx context.Context, cmp clientv3.Cmp, op clientv3.Op) (bool, error) {
	resp, err := e.client.Txn(ctx).If(cmp).Then(op).Commit()
	if err != nil {
		return false, err
	}
	return resp.Succeeded, nil
}

func (e *Etcd) PutAll(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	ops := make([]clientv3.Op, 0, len(entries))
	for k, v := range entries {
		ops = append(ops, clientv3.OpPut(k, string(v)))
	}
	_, err := e.client.Txn(ctx).Then(ops...).Commit()
	return bulkErr(err)
}

// bulkErr points at the bulk size when a transaction exceeds the server's
// operation limit (--max-txn-ops, 128 by default).
func bulkErr(err error) error {
	if errors.Is(err, rpctypes.ErrTooManyOps) {
		return fmt.Errorf("%w: lower bulkSize", err)
	}
	return err
}

func (e *Etcd) GetAll(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	ops := make([]clientv3.Op, len(keys))
	for i, k := range keys {
		ops[i] = clientv3.OpGet(k)
	}
	resp, err := e.client.Txn(ctx).Then(ops...).Commit()
	if err != nil {
		return nil, bulkErr(err)
	}
	for _, r := range resp.Responses {
		for _, kv := range r.GetResponseRange().GetKvs() {
			out[string(kv.Key)] = kv.Value
		}
	}
	return out, nil
}

func (e *Etcd) RemoveAll(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	// A transaction may not delete the same key twice.
	seen := make(map[string]bool, len(keys))
	ops := make([]clientv3.Op, 0, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			ops = append(ops, clientv3.OpDelete(k))
		}
	}
	resp, err := e.client.Txn(ctx).Then(ops...).Commit()
	if err != nil {
		return 0, bulkErr(err)
	}
	removed := 0
	for _, r := range resp.Responses {
		removed += int(r.GetResponseDeleteRange().GetDeleted())
	}
	return removed, nil
}

func (e *Etcd) Close() error {
	return e.client.Close()
}
