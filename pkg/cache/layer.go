// This module provides an interface on caching, making the single shard cache, the sharded cache and the disabled
// cache share the same API.

package cache

import (
	"iter"
	"time"

	"github.com/nobletooth/ttlcache/pkg/utils"
)

// Layer defines the interface for an expirable key-value cache.
type Layer[K comparable, V any] interface {
	// Get returns value from cache for given key and a boolean indicating whether a live entry was found.
	Get(key K) (V, bool)
	// Put inserts a key-value pair with the default TTL. It returns true if a live entry was replaced.
	Put(key K, value V) bool
	// PutWithTTL inserts a key-value pair with the given TTL. It returns true if a live entry was replaced.
	PutWithTTL(key K, value V, ttl time.Duration) bool
	// Remove deletes the key. It returns true if a live entry was removed.
	Remove(key K) bool
	// TTL returns the remaining lifetime of a live entry.
	TTL(key K) (time.Duration, bool)
	Keys() []K                                         // Returns the keys of all live entries.
	SortedKeys(compare utils.CompareFn[K]) iter.Seq[K] // Streams live keys in increasing order.
	Len() int                                          // Number of stored entries, expired ones included.
	Purge()                                            // Removes all items from the cache.
	Close()                                            // Releases background resources.
}

// NoOp is a cache layer that doesn't store any items.
// It is used when cache is disabled.
type NoOp[K comparable, V any] struct { // Implements Layer.
}

var _ Layer[int, int] = (*NoOp[int, int])(nil)

// NewNoOp returns a no-operation cache layer that does not store any items.
func NewNoOp[K comparable, V any]() *NoOp[K, V] {
	return &NoOp[K, V]{}
}

// Get always returns false, indicating the key is not found.
func (n *NoOp[K, V]) Get(key K) (V, bool) {
	var zero V
	return zero, false
}

func (n *NoOp[K, V]) Put(key K, value V) bool { return false }

func (n *NoOp[K, V]) PutWithTTL(key K, value V, ttl time.Duration) bool { return false }

func (n *NoOp[K, V]) Remove(key K) bool { return false }

func (n *NoOp[K, V]) TTL(key K) (time.Duration, bool) { return 0, false }

// Keys always returns nil, as there are no keys stored.
func (n *NoOp[K, V]) Keys() []K {
	return nil
}

func (n *NoOp[K, V]) SortedKeys(compare utils.CompareFn[K]) iter.Seq[K] {
	return func(yield func(K) bool) {}
}

func (n *NoOp[K, V]) Len() int { return 0 }

// Purge does nothing, as there are no items to remove.
func (n *NoOp[K, V]) Purge() {}

func (n *NoOp[K, V]) Close() {}
