package cache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/rse/internal/compiler"
	"github.com/coregx/rse/internal/provider"
	"github.com/coregx/rse/internal/types"
)

func table(t testing.TB, name string, typ types.Type) provider.Provider {
	t.Helper()
	p, err := provider.NewTable(provider.TableRef{
		Name:    name,
		Columns: []provider.TableColumn{{Name: "id", Type: typ}},
	})
	require.NoError(t, err)
	return p
}

// newKey returns the sqlite key of a fresh table provider.
func newKey(t testing.TB, name string) Key {
	t.Helper()
	return NewKey("sqlite", table(t, name, types.Int64))
}

func command(sql string) *compiler.Command {
	return &compiler.Command{SQL: sql}
}

func TestNewCommandCache(t *testing.T) {
	cache := NewCommandCache()
	require.NotNil(t, cache)
	assert.Equal(t, DefaultCommandCacheCapacity, cache.capacity)
	assert.Equal(t, 0, cache.lruList.Len())
	assert.Equal(t, 0, len(cache.items))
}

func TestNewCommandCacheWithCapacity(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		expected int
	}{
		{name: "positive capacity", capacity: 100, expected: 100},
		{name: "zero capacity defaults to default", capacity: 0, expected: DefaultCommandCacheCapacity},
		{name: "negative capacity defaults to default", capacity: -10, expected: DefaultCommandCacheCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewCommandCacheWithCapacity(tt.capacity)
			require.NotNil(t, cache)
			assert.Equal(t, tt.expected, cache.capacity)
		})
	}
}

func TestCommandCache_GetSet(t *testing.T) {
	cache := NewCommandCache()
	key := newKey(t, "users")

	cmd, found := cache.Get(key)
	assert.Nil(t, cmd)
	assert.False(t, found)

	want := command(`SELECT "a0"."id" AS "id" FROM "users" AS "a0"`)
	cache.Set(key, want)

	cmd, found = cache.Get(key)
	assert.True(t, found)
	assert.Same(t, want, cmd)

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestCommandCache_KeyedByStructureAndDialect(t *testing.T) {
	cache := NewCommandCache()
	cache.Set(newKey(t, "users"), command("a"))

	cmd, found := cache.Get(newKey(t, "users"))
	require.True(t, found, "a separately built equal tree shares the key")
	assert.Equal(t, "a", cmd.SQL)

	_, found = cache.Get(NewKey("mysql", table(t, "users", types.Int64)))
	assert.False(t, found)

	_, found = cache.Get(NewKey("sqlite", table(t, "users", types.Int32)))
	assert.False(t, found, "column types are part of the key")
}

func TestCommandCache_LRUEviction(t *testing.T) {
	cache := NewCommandCacheWithCapacity(3)
	keys := make([]Key, 4)
	for i := range keys {
		keys[i] = newKey(t, fmt.Sprintf("t%d", i))
	}

	cache.Set(keys[0], command("0"))
	cache.Set(keys[1], command("1"))
	cache.Set(keys[2], command("2"))

	// Touch the oldest so the second one becomes least recently used.
	_, found := cache.Get(keys[0])
	require.True(t, found)

	cache.Set(keys[3], command("3"))

	stats := cache.Stats()
	assert.Equal(t, 3, stats.Size)
	assert.Equal(t, uint64(1), stats.Evictions)

	_, found = cache.Get(keys[1])
	assert.False(t, found)
	for _, i := range []int{0, 2, 3} {
		_, found = cache.Get(keys[i])
		assert.True(t, found, "key %d", i)
	}
}

func TestCommandCache_UpdateExisting(t *testing.T) {
	cache := NewCommandCache()
	key := newKey(t, "users")

	cache.Set(key, command("old"))
	cache.Set(key, command("new"))

	assert.Equal(t, 1, cache.Stats().Size)
	cmd, found := cache.Get(key)
	require.True(t, found)
	assert.Equal(t, "new", cmd.SQL)
}

func TestCommandCache_Clear(t *testing.T) {
	cache := NewCommandCache()
	keys := make([]Key, 5)
	for i := range keys {
		keys[i] = newKey(t, fmt.Sprintf("t%d", i))
		cache.Set(keys[i], command(fmt.Sprint(i)))
	}
	assert.Equal(t, 5, cache.Stats().Size)

	cache.Clear()

	assert.Equal(t, 0, cache.Stats().Size)
	for _, k := range keys {
		_, found := cache.Get(k)
		assert.False(t, found)
	}
}

func TestCommandCache_HitRate(t *testing.T) {
	cache := NewCommandCache()
	assert.Equal(t, 0.0, cache.Stats().HitRate)

	key := newKey(t, "users")
	cache.Set(key, command("x"))
	cache.Get(key)
	cache.Get(key)
	cache.Get(key)
	cache.Get(newKey(t, "other"))

	assert.InDelta(t, 0.75, cache.Stats().HitRate, 1e-9)
}

func TestCommandCache_GetOrCompile(t *testing.T) {
	cache := NewCommandCache()
	key := newKey(t, "users")
	calls := 0
	compile := func() (*compiler.Command, error) {
		calls++
		return command("compiled"), nil
	}

	cmd, hit, err := cache.GetOrCompile(key, compile)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "compiled", cmd.SQL)

	again, hit, err := cache.GetOrCompile(key, compile)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Same(t, cmd, again)
	assert.Equal(t, 1, calls)
}

func TestCommandCache_GetOrCompileDoesNotCacheErrors(t *testing.T) {
	cache := NewCommandCache()
	key := newKey(t, "users")
	boom := errors.New("boom")

	_, _, err := cache.GetOrCompile(key, func() (*compiler.Command, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, cache.Stats().Size)

	cmd, hit, err := cache.GetOrCompile(key, func() (*compiler.Command, error) { return command("ok"), nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "ok", cmd.SQL)
}

func TestCommandCache_ConcurrentGetOrCompile(t *testing.T) {
	cache := NewCommandCacheWithCapacity(10)
	key := newKey(t, "users")
	var calls atomic.Int32
	release := make(chan struct{})

	const workers = 20
	results := make([]*compiler.Command, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cmd, _, err := cache.GetOrCompile(key, func() (*compiler.Command, error) {
				calls.Add(1)
				<-release
				return command("shared"), nil
			})
			assert.NoError(t, err)
			results[i] = cmd
		}(i)
	}
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, int(calls.Load()), workers)
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, "shared", r.SQL)
	}
	assert.Equal(t, 1, cache.Stats().Size)
}

func BenchmarkCommandCache_Get_Hit(b *testing.B) {
	cache := NewCommandCache()
	key := newKey(b, "users")
	cache.Set(key, command("x"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Get(key)
	}
}

func BenchmarkCommandCache_Set_Eviction(b *testing.B) {
	cache := NewCommandCacheWithCapacity(100)
	keys := make([]Key, 1000)
	for i := range keys {
		keys[i] = newKey(b, fmt.Sprintf("t%d", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Set(keys[i%len(keys)], command("x"))
	}
}
