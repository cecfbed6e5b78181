package cache

import "time"

const (
	// DefaultSweepInterval is how often the reaper scans for expired entries unless overridden.
	DefaultSweepInterval = time.Second
	// DefaultName labels the metrics of caches that weren't given a name.
	DefaultName = "default"
)

// options holds the optional knobs of a TTLCache.
type options[K comparable, V any] struct {
	name          string
	clock         Clock
	sweepInterval time.Duration
	// onExpire is called for every expired entry physically removed, either by a read or by the reaper.
	// It runs outside the cache lock, so it may call back into the cache.
	onExpire func(K, V)
}

// Option configures a TTLCache at construction.
type Option[K comparable, V any] func(*options[K, V])

func defaultOptions[K comparable, V any]() options[K, V] {
	return options[K, V]{name: DefaultName, clock: SystemClock{}, sweepInterval: DefaultSweepInterval}
}

// WithName sets the `cache` label attached to the cache metrics.
func WithName[K comparable, V any](name string) Option[K, V] {
	return func(o *options[K, V]) { o.name = name }
}

// WithClock replaces the system clock; mostly used by tests to advance time by hand.
func WithClock[K comparable, V any](clock Clock) Option[K, V] {
	return func(o *options[K, V]) { o.clock = clock }
}

// WithSweepInterval sets the reaper period.
func WithSweepInterval[K comparable, V any](interval time.Duration) Option[K, V] {
	return func(o *options[K, V]) { o.sweepInterval = interval }
}

// WithExpiryCallback registers a function observing expired entries as they are removed.
func WithExpiryCallback[K comparable, V any](onExpire func(K, V)) Option[K, V] {
	return func(o *options[K, V]) { o.onExpire = onExpire }
}
