package port

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nobletooth/ttlcache/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mux sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.now = c.now.Add(d)
}

// newTestBackend returns a backend over a cache whose default TTL is a minute and whose clock is driven by hand.
func newTestBackend(t *testing.T) (*CacheBackend, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	layer := cache.NewTTLCache[string, []byte](context.Background(), time.Minute,
		cache.WithClock[string, []byte](clock),
		cache.WithSweepInterval[string, []byte](time.Hour),
		cache.WithName[string, []byte](t.Name()))
	backend, err := NewCacheBackend(layer)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, backend.Close()) })
	return backend, clock
}

func TestNewCacheBackend_NilLayer(t *testing.T) {
	_, err := NewCacheBackend(nil)
	assert.Error(t, err)
}

func TestCacheBackend(t *testing.T) {
	backend, clock := newTestBackend(t)

	t.Run("set", func(t *testing.T) {
		assert.True(t, backend.Set(SetCommand{key: "k1", value: []byte("v1")}).couldSet)
		assert.True(t, backend.Set(SetCommand{key: "k2", value: []byte("v2")}).couldSet)
		assert.True(t, backend.Set(SetCommand{key: "k3", value: []byte("v3")}).couldSet)
	})
	t.Run("get_existing_key", func(t *testing.T) {
		val, err := backend.Get("k1")
		assert.NoError(t, err)
		assert.Equal(t, []byte("v1"), val)
	})
	t.Run("get_non_existent_key", func(t *testing.T) {
		_, err := backend.Get("non_existent")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})
	t.Run("delete_existing_key", func(t *testing.T) {
		assert.True(t, backend.Delete("k2"))
		val, err := backend.Get("k2")
		assert.ErrorIs(t, err, ErrKeyNotFound)
		assert.Nil(t, val)
	})
	t.Run("delete_non_existent_key", func(t *testing.T) {
		assert.False(t, backend.Delete("random"))
	})
	t.Run("set_expirable", func(t *testing.T) {
		assert.True(t, backend.Set(SetCommand{key: "kx1", value: []byte("vx1"), ttl: 10 * time.Millisecond,
			hasTtl: true}).couldSet)
		assert.True(t, backend.Set(SetCommand{key: "kx2", value: []byte("vx2"), ttl: time.Hour,
			hasTtl: true}).couldSet)

		clock.Advance(time.Second)
		_, err := backend.Get("kx1")
		assert.ErrorIs(t, err, ErrKeyNotFound)
		// Even when "kx1" expired, the "kx2" still remains since it has a really long TTL.
		val, err := backend.Get("kx2")
		assert.NoError(t, err)
		assert.Equal(t, []byte("vx2"), val)
	})
	t.Run("default_ttl", func(t *testing.T) {
		remaining, err := backend.TTL("k1")
		assert.NoError(t, err)
		assert.Equal(t, time.Minute-time.Second, remaining, "Set without a TTL uses the cache default")
		_, err = backend.TTL("kx1")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})
	t.Run("exists_and_size", func(t *testing.T) {
		assert.True(t, backend.Exists("k1"))
		assert.False(t, backend.Exists("kx1"))
		assert.Equal(t, 3, backend.Size()) // k1, k3 and kx2.
	})
	t.Run("flush", func(t *testing.T) {
		backend.Flush()
		assert.Equal(t, 0, backend.Size())
		assert.False(t, backend.Exists("k1"))
	})
}

func TestCacheBackend_SetConstraints(t *testing.T) {
	for _, tc := range []struct {
		name          string
		existing      bool
		cmd           SetCommand
		wantSet       bool
		wantPrevious  []byte
		wantHasPrev   bool
		wantStoredVal []byte
	}{
		{
			name:          "nx_on_missing_key",
			cmd:           SetCommand{key: "k", value: []byte("new"), existence: ifNotExists},
			wantSet:       true,
			wantStoredVal: []byte("new"),
		},
		{
			name:          "nx_on_existing_key",
			existing:      true,
			cmd:           SetCommand{key: "k", value: []byte("new"), existence: ifNotExists},
			wantSet:       false,
			wantStoredVal: []byte("old"),
		},
		{
			name:          "xx_on_missing_key",
			cmd:           SetCommand{key: "k", value: []byte("new"), existence: ifExists},
			wantSet:       false,
			wantStoredVal: nil,
		},
		{
			name:          "xx_on_existing_key",
			existing:      true,
			cmd:           SetCommand{key: "k", value: []byte("new"), existence: ifExists},
			wantSet:       true,
			wantStoredVal: []byte("new"),
		},
		{
			name:          "get_on_existing_key",
			existing:      true,
			cmd:           SetCommand{key: "k", value: []byte("new"), get: true},
			wantSet:       true,
			wantPrevious:  []byte("old"),
			wantHasPrev:   true,
			wantStoredVal: []byte("new"),
		},
		{
			name:          "get_on_missing_key",
			cmd:           SetCommand{key: "k", value: []byte("new"), get: true},
			wantSet:       true,
			wantStoredVal: []byte("new"),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			backend, _ := newTestBackend(t)
			if tc.existing {
				require.True(t, backend.Set(SetCommand{key: "k", value: []byte("old")}).couldSet)
			}

			result := backend.Set(tc.cmd)
			assert.NoError(t, result.err)
			assert.Equal(t, tc.wantSet, result.couldSet)
			assert.Equal(t, tc.wantHasPrev, result.hasPreviousValue)
			assert.Equal(t, tc.wantPrevious, result.previousValue)

			stored, err := backend.Get("k")
			if tc.wantStoredVal == nil {
				assert.ErrorIs(t, err, ErrKeyNotFound)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.wantStoredVal, stored)
			}
		})
	}
}

func TestCacheBackend_KeepTTL(t *testing.T) {
	backend, clock := newTestBackend(t)
	require.True(t, backend.Set(SetCommand{key: "k", value: []byte("v1"), ttl: 10 * time.Second, hasTtl: true}).couldSet)
	clock.Advance(4 * time.Second)

	require.True(t, backend.Set(SetCommand{key: "k", value: []byte("v2"), keepTtl: true}).couldSet)
	remaining, err := backend.TTL("k")
	assert.NoError(t, err)
	assert.Equal(t, 6*time.Second, remaining, "KEEPTTL keeps the previous deadline")

	require.True(t, backend.Set(SetCommand{key: "missing", value: []byte("v"), keepTtl: true}).couldSet)
	remaining, err = backend.TTL("missing")
	assert.NoError(t, err)
	assert.Equal(t, time.Minute, remaining, "KEEPTTL on a missing key falls back to the default TTL")
}

func TestCacheBackend_UnknownExistenceCheck(t *testing.T) {
	backend, _ := newTestBackend(t)
	result := backend.Set(SetCommand{key: "k", value: []byte("v"), existence: existenceCheck(42)})
	assert.Error(t, result.err)
	assert.False(t, backend.Exists("k"))
}

func TestCacheBackend_Keys(t *testing.T) {
	backend, clock := newTestBackend(t)
	for _, key := range []string{"user:2", "user:1", "order:1", "user/nested"} {
		require.True(t, backend.Set(SetCommand{key: key, value: []byte("v")}).couldSet)
	}
	require.True(t, backend.Set(SetCommand{key: "user:expired", value: []byte("v"), ttl: time.Second,
		hasTtl: true}).couldSet)
	clock.Advance(2 * time.Second)

	keys, err := backend.Keys("user:*")
	assert.NoError(t, err)
	assert.Equal(t, []string{"user:1", "user:2"}, keys)

	keys, err = backend.Keys("*")
	assert.NoError(t, err)
	assert.Equal(t, []string{"order:1", "user:1", "user:2"}, keys, "Star doesn't cross segment boundaries")

	keys, err = backend.Keys("nothing*")
	assert.NoError(t, err)
	assert.Empty(t, keys)
	assert.NotNil(t, keys)
}
