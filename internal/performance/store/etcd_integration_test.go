//go:build integration

package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap/zaptest"
)

// Run with: KVLUNGE_ETCD_ENDPOINTS=localhost:2379 go test -tags integration ./internal/performance/store/
func TestEtcdConformance(t *testing.T) {
	endpoints := os.Getenv("KVLUNGE_ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("KVLUNGE_ETCD_ENDPOINTS not set")
	}

	run := 0
	runConformance(t, func(t *testing.T) Store {
		s, err := OpenEtcd(context.Background(), TargetConfig{
			Name:        "etcd",
			Address:     endpoints,
			DialTimeout: 5 * time.Second,
		}, zaptest.NewLogger(t))
		require.NoError(t, err)

		// Each subtest gets its own key space.
		run++
		prefix := fmt.Sprintf("kvlunge-test-%d-%d/", time.Now().UnixNano(), run)
		t.Cleanup(func() {
			_, _ = s.client.Delete(context.Background(), prefix, clientv3.WithPrefix())
			_ = s.Close()
		})
		return WithPrefix(s, prefix)
	})
}
