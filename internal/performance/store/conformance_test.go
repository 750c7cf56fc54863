package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runConformance checks the outcome contract every adapter shares. The
// factory must return an empty store.
func runConformance(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()
	v1 := []byte("value-1")
	v2 := []byte("value-2")

	t.Run("PutGet", func(t *testing.T) {
		s := open(t)
		_, found, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, s.Put(ctx, "k", v1))
		got, found, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, v1, got)

		require.NoError(t, s.Put(ctx, "k", v2))
		got, _, _ = s.Get(ctx, "k")
		assert.Equal(t, v2, got)
	})

	t.Run("Remove", func(t *testing.T) {
		s := open(t)
		removed, err := s.Remove(ctx, "k")
		require.NoError(t, err)
		assert.False(t, removed)

		require.NoError(t, s.Put(ctx, "k", v1))
		removed, err = s.Remove(ctx, "k")
		require.NoError(t, err)
		assert.True(t, removed)

		_, found, _ := s.Get(ctx, "k")
		assert.False(t, found)
	})

	t.Run("PutIfAbsent", func(t *testing.T) {
		s := open(t)
		ok, err := s.PutIfAbsent(ctx, "k", v1)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.PutIfAbsent(ctx, "k", v2)
		require.NoError(t, err)
		assert.False(t, ok)

		got, _, _ := s.Get(ctx, "k")
		assert.Equal(t, v1, got)
	})

	t.Run("Replace", func(t *testing.T) {
		s := open(t)
		ok, err := s.Replace(ctx, "k", v1)
		require.NoError(t, err)
		assert.False(t, ok)
		_, found, _ := s.Get(ctx, "k")
		assert.False(t, found, "replace must not create an entry")

		require.NoError(t, s.Put(ctx, "k", v1))
		ok, err = s.Replace(ctx, "k", v2)
		require.NoError(t, err)
		assert.True(t, ok)
		got, _, _ := s.Get(ctx, "k")
		assert.Equal(t, v2, got)
	})

	t.Run("ReplaceIfMatch", func(t *testing.T) {
		s := open(t)
		ok, err := s.ReplaceIfMatch(ctx, "k", v1, v2)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.Put(ctx, "k", v1))
		ok, err = s.ReplaceIfMatch(ctx, "k", v2, v2)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = s.ReplaceIfMatch(ctx, "k", v1, v2)
		require.NoError(t, err)
		assert.True(t, ok)
		got, _, _ := s.Get(ctx, "k")
		assert.Equal(t, v2, got)
	})

	t.Run("RemoveIfMatch", func(t *testing.T) {
		s := open(t)
		ok, err := s.RemoveIfMatch(ctx, "k", v1)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.Put(ctx, "k", v1))
		ok, err = s.RemoveIfMatch(ctx, "k", v2)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = s.RemoveIfMatch(ctx, "k", v1)
		require.NoError(t, err)
		assert.True(t, ok)
		_, found, _ := s.Get(ctx, "k")
		assert.False(t, found)
	})

	t.Run("Bulk", func(t *testing.T) {
		s := open(t)
		entries := map[string][]byte{"a": []byte("1"), "b": []byte("2"), "c": []byte("3")}
		require.NoError(t, s.PutAll(ctx, entries))

		got, err := s.GetAll(ctx, []string{"a", "b", "c", "missing"})
		require.NoError(t, err)
		assert.Equal(t, entries, got)

		n, err := s.RemoveAll(ctx, []string{"a", "b", "missing"})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		got, err = s.GetAll(ctx, []string{"a", "b", "c"})
		require.NoError(t, err)
		assert.Equal(t, map[string][]byte{"c": []byte("3")}, got)

		n, err = s.RemoveAll(ctx, []string{"a", "b"})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("EmptyBulk", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.PutAll(ctx, map[string][]byte{}))
		got, err := s.GetAll(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
		n, err := s.RemoveAll(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("ConcurrentPutIfAbsentSingleWinner", func(t *testing.T) {
		s := open(t)
		const contenders = 16

		var wg sync.WaitGroup
		wins := make(chan int, contenders)
		for i := 0; i < contenders; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := s.PutIfAbsent(ctx, "race", []byte(fmt.Sprint(i)))
				if err == nil && ok {
					wins <- i
				}
			}(i)
		}
		wg.Wait()
		close(wins)

		var winners []int
		for w := range wins {
			winners = append(winners, w)
		}
		require.Len(t, winners, 1)
		got, _, _ := s.Get(ctx, "race")
		assert.Equal(t, []byte(fmt.Sprint(winners[0])), got)
	})
}

func TestMemoryConformance(t *testing.T) {
	runConformance(t, func(t *testing.T) Store {
		s := NewMemory()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestLRUConformance(t *testing.T) {
	runConformance(t, func(t *testing.T) Store {
		s, err := NewLRU(1024)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	val := []byte("abc")
	require.NoError(t, s.Put(ctx, "k", val))
	val[0] = 'x'

	got, _, _ := s.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), got)
	got[1] = 'y'

	again, _, _ := s.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
	assert.Equal(t, 1, s.Len())
}

func TestLRU_Evicts(t *testing.T) {
	ctx := context.Background()
	s, err := NewLRU(2)
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "a", []byte("1")))
	require.NoError(t, s.Put(ctx, "b", []byte("2")))
	require.NoError(t, s.Put(ctx, "c", []byte("3")))

	_, found, _ := s.Get(ctx, "a")
	assert.False(t, found, "oldest entry should be evicted")
	assert.Equal(t, 2, s.Len())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, TargetConfig{Name: "m", Type: "MEMORY"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, st)

	st, err = Open(ctx, TargetConfig{Name: "l", Type: TypeLRU, Capacity: 10}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LRU{}, st)

	_, err = Open(ctx, TargetConfig{Name: "x", Type: "cassandra"}, nil)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestOpenAll(t *testing.T) {
	ctx := context.Background()

	_, err := OpenAll(ctx, nil, nil)
	assert.ErrorIs(t, err, ErrNoTargets)

	targets, err := OpenAll(ctx, []TargetConfig{
		{Name: "one", Type: TypeMemory},
		{Name: "two", Type: TypeLRU},
	}, nil)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "one", targets[0].Name)
	assert.Equal(t, "two", targets[1].Name)
	assert.NoError(t, CloseAll(targets))

	_, err = OpenAll(ctx, []TargetConfig{
		{Name: "one", Type: TypeMemory},
		{Name: "bad", Type: "nope"},
	}, nil)
	assert.ErrorIs(t, err, ErrUnknownType)
}

type failingClose struct{ Store }

func (failingClose) Close() error { return fmt.Errorf("close failed") }

func TestCloseAll_AggregatesErrors(t *testing.T) {
	err := CloseAll([]Target{
		{Name: "a", Store: failingClose{}},
		{Name: "b", Store: NewMemory()},
		{Name: "c", Store: failingClose{}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `close target "a"`)
	assert.Contains(t, err.Error(), `close target "c"`)
	assert.Contains(t, err.Error(), "2 errors occurred")
}

func TestPrefixedConformance(t *testing.T) {
	runConformance(t, func(t *testing.T) Store {
		return WithPrefix(NewMemory(), "run-1/")
	})
}

func TestWithPrefix_NamespacesKeys(t *testing.T) {
	ctx := context.Background()
	base := NewMemory()
	a := WithPrefix(base, "a/")
	b := WithPrefix(base, "b/")

	require.NoError(t, a.Put(ctx, "k", []byte("1")))
	_, found, _ := b.Get(ctx, "k")
	assert.False(t, found)

	raw, found, _ := base.Get(ctx, "a/k")
	assert.True(t, found)
	assert.Equal(t, []byte("1"), raw)

	assert.Same(t, base, WithPrefix(base, "").(*Memory))
}
