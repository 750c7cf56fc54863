package operation

import (
	"context"
	"fmt"

	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
	"github.com/wesleyorama2/kvlunge/internal/performance/store"
)

// Call carries the synthesized inputs of one iteration. Single-key kinds
// use Key and Value; bulk kinds use Keys and Values, which are parallel.
type Call struct {
	Key    string
	Value  []byte
	Keys   []string
	Values [][]byte

	// Got is the value read by a successful get.
	Got []byte
}

type handler func(ctx context.Context, st store.Store, c *Call) (metrics.Result, error)

// dispatchTable maps each kind to its store call and outcome mapping.
// A non-nil error is always classified as an exception by the recorder.
var dispatchTable = [numKinds]handler{
	KindPut: func(ctx context.Context, st store.Store, c *Call) (metrics.Result, error) {
		return metrics.ResultWrite, st.Put(ctx, c.Key, c.Value)
	},
	KindGet: func(ctx context.Context, st store.Store, c *Call) (metrics.Result, error) {
		v, found, err := st.Get(ctx, c.Key)
		c.Got = v
		return pick(found, metrics.ResultHit), err
	},
	KindRemove: func(ctx context.Context, st store.Store, c *Call) (metrics.Result, error) {
		ok, err := st.Remove(ctx, c.Key)
		return pick(ok, metrics.ResultRemove), err
	},
	KindRemoveIfMatch: func(ctx context.Context, st store.Store, c *Call) (metrics.Result, error) {
		ok, err := st.RemoveIfMatch(ctx, c.Key, c.Value)
		return pick(ok, metrics.ResultRemove), err
	},
	KindPutIfAbsent: func(ctx context.Context, st store.Store, c *Call) (metrics.Result, error) {
		ok, err := st.PutIfAbsent(ctx, c.Key, c.Value)
		return pick(ok, metrics.ResultWrite), err
	},
	KindReplace: func(ctx context.Context, st store.Store, c *Call) (metrics.Result, error) {
		ok, err := st.Replace(ctx, c.Key, c.Value)
		return pick(ok, metrics.ResultWrite), err
	},
	KindReplaceIfMatch: func(ctx context.Context, st store.Store, c *Call) (metrics.Result, error) {
		// The value for an index is deterministic, so it is both the
		// expected current value and the replacement.
		ok, err := st.ReplaceIfMatch(ctx, c.Key, c.Value, c.Value)
		return pick(ok, metrics.ResultWrite), err
	},
	KindPutAll: func(ctx context.Context, st store.Store, c *Call) (metrics.Result, error) {
		entries := make(map[string][]byte, len(c.Keys))
		for i, k := range c.Keys {
			entries[k] = c.Values[i]
		}
		return metrics.ResultWrite, st.PutAll(ctx, entries)
	},
	KindGetAll: func(ctx context.Context, st store.Store, c *Call) (metrics.Result, error) {
		got, err := st.GetAll(ctx, c.Keys)
		if err != nil {
			return metrics.ResultException, err
		}
		for _, k := range c.Keys {
			if _, ok := got[k]; !ok {
				return metrics.ResultMiss, nil
			}
		}
		return metrics.ResultHit, nil
	},
	KindRemoveAll: func(ctx context.Context, st store.Store, c *Call) (metrics.Result, error) {
		n, err := st.RemoveAll(ctx, c.Keys)
		return pick(n > 0, metrics.ResultRemove), err
	},
}

func pick(ok bool, success metrics.Result) metrics.Result {
	if ok {
		return success
	}
	return metrics.ResultMiss
}

// Dispatch performs kind against st and maps the outcome to a result.
func Dispatch(ctx context.Context, st store.Store, kind Kind, c *Call) (metrics.Result, error) {
	if !kind.Valid() {
		return metrics.ResultException, fmt.Errorf("invalid operation kind %v", kind)
	}
	return dispatchTable[kind](ctx, st, c)
}
