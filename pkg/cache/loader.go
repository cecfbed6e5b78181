package cache

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// LoaderFunc fetches the value of a key missing from the cache, e.g. from a database.
type LoaderFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// LoadingCache is a read-through wrapper: a miss calls the loader and stores the result with the layer's default
// TTL. Concurrent misses on the same key share a single loader call.
type LoadingCache[K comparable, V any] struct {
	layer  Layer[K, V]
	load   LoaderFunc[K, V]
	flight singleflight.Group
}

// NewLoadingCache wraps `layer` with `load`.
func NewLoadingCache[K comparable, V any](layer Layer[K, V], load LoaderFunc[K, V]) *LoadingCache[K, V] {
	return &LoadingCache[K, V]{layer: layer, load: load}
}

// Get returns the cached value of `key`, loading it on a miss. Loader errors are returned as is and nothing is
// cached for them.
func (l *LoadingCache[K, V]) Get(ctx context.Context, key K) (V, error) {
	if value, found := l.layer.Get(key); found {
		return value, nil
	}

	loaded, err, _ := l.flight.Do(flightKey(key), func() (any, error) {
		// Another flight may have filled the key while this one was waiting to start.
		if value, found := l.layer.Get(key); found {
			return value, nil
		}
		value, err := l.load(ctx, key)
		if err != nil {
			return nil, err
		}
		l.layer.Put(key, value)
		return value, nil
	})
	if err != nil {
		return *new(V), fmt.Errorf("failed to load key %v: %w", key, err)
	}
	value, _ := loaded.(V) // A nil interface V comes back as a nil any.
	return value, nil
}

// flightKey renders `key` for singleflight. The dynamic type is part of it, since keys such as int(1) and int64(1)
// print the same with %#v alone.
func flightKey[K comparable](key K) string {
	return fmt.Sprintf("%T:%#v", key, key)
}

// Layer exposes the wrapped cache for direct writes and removals.
func (l *LoadingCache[K, V]) Layer() Layer[K, V] {
	return l.layer
}
