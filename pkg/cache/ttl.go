// This module implements the expirable key-value store at the heart of ttlcache.
//
// Expiration Policy (lazy expiration + reaper):
// Every entry carries an absolute deadline computed once on insertion (now + ttl). Readers compare the deadline
// against the clock and treat an expired entry exactly like a missing one, deleting it on the spot. Since keys
// that are never read again would otherwise stay in memory forever, a background goroutine, the "reaper",
// periodically scans the whole map and removes whatever has expired. Both mechanisms are required: lazy
// expiration bounds the staleness readers can observe, the reaper bounds memory.
//
// Concurrency:
// A single RWMutex guards the map. Writers, explicit removals and reaper passes hold the write lock; Get holds the
// read lock and only takes the write lock to delete a stale entry, which it does only if the slot still holds the
// very same entry it saw expire.

package cache

import (
	"context"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/nobletooth/ttlcache/pkg/utils"
)

// TTLCache is a thread-safe in-memory cache whose entries expire after a per-entry time-to-live.
type TTLCache[K comparable, V any] struct {
	defaultTTL time.Duration // TTL used by Put; fixed at construction.
	clock      Clock
	onExpire   func(K, V)
	metrics    *cacheMetrics
	reaper     *reaper // Owned background sweep; stopped by Close.

	mux     sync.RWMutex
	entries map[K]*entry[V]
}

var _ Layer[string, int] = (*TTLCache[string, int])(nil)

// NewTTLCache is the constructor for TTLCache. It starts the reaper right away; the reaper stops once `ctx` is done
// or Close is called.
func NewTTLCache[K comparable, V any](ctx context.Context, defaultTTL time.Duration,
	opts ...Option[K, V]) *TTLCache[K, V] {
	o := defaultOptions[K, V]()
	for _, opt := range opts {
		opt(&o)
	}
	if o.sweepInterval <= 0 {
		utils.RaiseInvariant("ttl_cache", "non_positive_sweep_interval",
			"Invalid sweep interval has been given to ttl cache.", "interval", o.sweepInterval)
		o.sweepInterval = DefaultSweepInterval
	}
	if o.clock == nil {
		o.clock = SystemClock{}
	}

	c := &TTLCache[K, V]{
		defaultTTL: defaultTTL,
		clock:      o.clock,
		onExpire:   o.onExpire,
		metrics:    newCacheMetrics(o.name),
		entries:    make(map[K]*entry[V]),
	}
	c.reaper = startReaper(ctx, o.sweepInterval, c.sweep, c.metrics)
	return c
}

// DefaultTTL returns the TTL applied by Put.
func (c *TTLCache[K, V]) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Put inserts or replaces `key` using the default TTL. It returns true if a live entry was replaced.
func (c *TTLCache[K, V]) Put(key K, value V) /*replaced*/ bool {
	return c.PutWithTTL(key, value, c.defaultTTL)
}

// PutWithTTL inserts or replaces `key` with a deadline of now + ttl. A zero or negative ttl stores an entry that
// is already expired. It returns true if a live entry was replaced.
func (c *TTLCache[K, V]) PutWithTTL(key K, value V, ttl time.Duration) /*replaced*/ bool {
	now := c.clock.Now()
	fresh := newEntry(value, now, ttl)

	c.mux.Lock()
	defer c.mux.Unlock()

	previous, found := c.entries[key]
	c.entries[key] = fresh
	return found && previous.validAt(now)
}

// Get returns the value of `key` if it exists and hasn't expired. An expired entry is removed as a side effect.
func (c *TTLCache[K, V]) Get(key K) (V, bool /*found*/) {
	now := c.clock.Now()

	c.mux.RLock()
	e, found := c.entries[key]
	c.mux.RUnlock()

	if !found {
		c.metrics.misses.Inc()
		return *new(V), false
	}
	if e.validAt(now) {
		c.metrics.hits.Inc()
		return e.value, true
	}
	c.metrics.expiredLookups.Inc()
	c.removeStale(key, e)
	return *new(V), false
}

// removeStale deletes `key` only if it still maps to `stale`; a put racing with the read keeps its fresh entry.
func (c *TTLCache[K, V]) removeStale(key K, stale *entry[V]) {
	c.mux.Lock()
	current, found := c.entries[key]
	removed := found && current == stale
	if removed {
		delete(c.entries, key)
	}
	c.mux.Unlock()

	if removed {
		c.metrics.expiredOnRead.Inc()
		if c.onExpire != nil {
			c.notifyExpired([]utils.Pair[K, V]{{Key: key, Value: stale.value}})
		}
	}
}

// Remove deletes `key`; it's a no-op when the key is absent. It returns true if a live entry was removed.
func (c *TTLCache[K, V]) Remove(key K) /*removed*/ bool {
	now := c.clock.Now()

	c.mux.Lock()
	defer c.mux.Unlock()

	e, found := c.entries[key]
	if !found {
		return false
	}
	delete(c.entries, key)
	return e.validAt(now)
}

// TTL returns the remaining lifetime of `key`, or false if it's absent or expired.
func (c *TTLCache[K, V]) TTL(key K) (time.Duration, bool /*found*/) {
	now := c.clock.Now()

	c.mux.RLock()
	defer c.mux.RUnlock()

	e, found := c.entries[key]
	if !found || !e.validAt(now) {
		return 0, false
	}
	return e.remainingAt(now), true
}

// Keys returns the keys of all live entries, in no particular order.
func (c *TTLCache[K, V]) Keys() []K {
	now := c.clock.Now()

	c.mux.RLock()
	defer c.mux.RUnlock()

	keys := make([]K, 0, len(c.entries))
	for key, e := range c.entries {
		if e.validAt(now) {
			keys = append(keys, key)
		}
	}
	return keys
}

// SortedKeys streams the keys of all live entries in increasing order.
func (c *TTLCache[K, V]) SortedKeys(compare utils.CompareFn[K]) iter.Seq[K] {
	keys := c.Keys()
	slices.SortFunc(keys, compare)
	return slices.Values(keys)
}

// Len returns the number of stored entries, including expired entries that haven't been removed yet.
func (c *TTLCache[K, V]) Len() int {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return len(c.entries)
}

// Purge removes all entries. Expiry callbacks aren't called for purged entries.
func (c *TTLCache[K, V]) Purge() {
	c.mux.Lock()
	defer c.mux.Unlock()
	clear(c.entries)
}

// Close stops the reaper and waits for it to exit. The cache stays usable afterwards, relying on lazy expiration
// only. Close is safe to call multiple times.
func (c *TTLCache[K, V]) Close() {
	c.reaper.stop()
}

// sweep is a single reaper pass; it returns the number of removed entries.
func (c *TTLCache[K, V]) sweep() int {
	expired, removed := c.removeExpired(c.clock.Now())
	if len(expired) > 0 {
		c.notifyExpired(expired)
	}
	return removed
}

// removeExpired deletes every entry past its deadline under the write lock. Expired pairs are only collected when
// someone listens for them.
func (c *TTLCache[K, V]) removeExpired(now time.Time) ([]utils.Pair[K, V], int) {
	start := time.Now()
	c.mux.Lock()
	defer func() {
		c.mux.Unlock()
		c.metrics.sweepDuration.Observe(time.Since(start).Seconds())
	}()

	var expired []utils.Pair[K, V]
	removed := 0
	for key, e := range c.entries {
		if e.validAt(now) {
			continue
		}
		delete(c.entries, key)
		removed++
		if c.onExpire != nil {
			expired = append(expired, utils.Pair[K, V]{Key: key, Value: e.value})
		}
	}
	c.metrics.expiredSweep.Add(float64(removed))
	return expired, removed
}

// notifyExpired hands expired pairs to the expiry callback. A panicking callback only loses its own entry.
func (c *TTLCache[K, V]) notifyExpired(expired []utils.Pair[K, V]) {
	for _, pair := range expired {
		func() {
			defer func() {
				if recovered := recover(); recovered != nil {
					slog.Warn("Expiry callback panicked.", "key", pair.Key, "panic", recovered)
				}
			}()
			c.onExpire(pair.Key, pair.Value)
		}()
	}
}

// snapshot copies the raw entries, expired ones included; used by tests to check internal state.
func (c *TTLCache[K, V]) snapshot() map[K]*entry[V] {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return maps.Clone(c.entries)
}
