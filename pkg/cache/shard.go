// This module implements cache sharding which distributes keys uniformly across cache shards. Each TTLCache
// guards its map with a single mutex, and its reaper holds that mutex for a full pass; sharding splits both the
// lock and the sweep so a pass only stalls the keys of one shard.

package cache

import (
	"encoding/binary"
	"fmt"
	"iter"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/nobletooth/ttlcache/pkg/scan"
	"github.com/nobletooth/ttlcache/pkg/utils"
)

// Sharded distributes keys across multiple underlying cache layers. Every key lives in exactly one shard, so the
// per-key guarantees of the shards carry over.
type Sharded[K comparable, V any] struct { // Implements Layer.
	shards []Layer[K, V]
	hash   func(key K) uint64 // Helps choose the shards index.
}

var _ Layer[string, int] = (*Sharded[string, int])(nil)

// NewSharded is the constructor for Sharded. `newShard` builds each shard; shards are owned by Sharded and closed
// by its Close.
func NewSharded[K comparable, V any](newShard func() Layer[K, V], shardCount int) *Sharded[K, V] {
	// Ensure there is at least one shard.
	if shardCount <= 0 {
		utils.RaiseInvariant("shard", "non_positive_shard_count",
			"Invalid shard count has been given to sharded cache.", "shardCount", shardCount)
		shardCount = 1
	}
	sharded := &Sharded[K, V]{shards: make([]Layer[K, V], shardCount), hash: keyHasher[K]()}
	for i := range shardCount {
		sharded.shards[i] = newShard()
	}
	return sharded
}

// keyHasher picks the hash function for K once, so lookups skip the type switch on the key type.
func keyHasher[K comparable]() func(key K) uint64 {
	switch any(*new(K)).(type) {
	case string:
		return func(key K) uint64 { return xxhash.Sum64String(any(key).(string)) }
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return func(key K) uint64 {
			// Integers are widened to 8 bytes so the hash doesn't depend on the architecture's int size.
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], integerBits(any(key)))
			return xxhash.Sum64(b[:])
		}
	case bool:
		return func(key K) uint64 {
			if any(key).(bool) {
				return xxhash.Sum64([]byte{1})
			}
			return xxhash.Sum64([]byte{0})
		}
	default:
		// Structs and other comparable types hash their Go-syntax representation; slower but works for any key.
		return func(key K) uint64 { return xxhash.Sum64String(fmt.Sprintf("%#v", key)) }
	}
}

// integerBits returns the two's complement bits of an integer value.
func integerBits(value any) uint64 {
	switch v := value.(type) {
	case int:
		return uint64(v)
	case int8:
		return uint64(v)
	case int16:
		return uint64(v)
	case int32:
		return uint64(v)
	case int64:
		return uint64(v)
	case uint:
		return uint64(v)
	case uint8:
		return uint64(v)
	case uint16:
		return uint64(v)
	case uint32:
		return uint64(v)
	case uint64:
		return v
	default:
		utils.RaiseInvariant("shard", "non_integer_key", "Integer hasher got a non-integer key.",
			"type", fmt.Sprintf("%T", value))
		return 0
	}
}

// getShard maps the key's hash onto a shard.
func (s *Sharded[K, V]) getShard(key K) Layer[K, V] {
	return s.shards[s.hash(key)%uint64(len(s.shards))]
}

func (s *Sharded[K, V]) Get(key K) (V, bool /*found*/) {
	return s.getShard(key).Get(key)
}

func (s *Sharded[K, V]) Put(key K, value V) /*replaced*/ bool {
	return s.getShard(key).Put(key, value)
}

func (s *Sharded[K, V]) PutWithTTL(key K, value V, ttl time.Duration) /*replaced*/ bool {
	return s.getShard(key).PutWithTTL(key, value, ttl)
}

func (s *Sharded[K, V]) Remove(key K) /*removed*/ bool {
	return s.getShard(key).Remove(key)
}

func (s *Sharded[K, V]) TTL(key K) (time.Duration, bool /*found*/) {
	return s.getShard(key).TTL(key)
}

// Keys aggregates the live keys of every shard. Each shard is locked in turn, never all at once, so the result
// isn't an atomic snapshot across shards.
func (s *Sharded[K, V]) Keys() []K {
	keys := make([]K, 0)
	for _, shard := range s.shards {
		keys = append(keys, shard.Keys()...)
	}
	return keys
}

// SortedKeys merges the sorted key streams of all shards.
func (s *Sharded[K, V]) SortedKeys(compare utils.CompareFn[K]) iter.Seq[K] {
	sequences := make([]iter.Seq[K], len(s.shards))
	for i, shard := range s.shards {
		sequences[i] = shard.SortedKeys(compare)
	}
	merged, err := scan.MergeKeys(compare, sequences)
	if err != nil {
		utils.RaiseInvariant("shard", "merge_sorted_keys", "Failed to merge shard keys.", "error", err)
		return func(yield func(K) bool) {}
	}
	return merged
}

// Len sums the stored entries of all shards.
func (s *Sharded[K, V]) Len() int {
	total := 0
	for _, shard := range s.shards {
		total += shard.Len()
	}
	return total
}

// Purge clears all items from the cache by calling Purge on every shard.
func (s *Sharded[K, V]) Purge() {
	for _, shard := range s.shards {
		shard.Purge()
	}
}

// Close releases every shard, stopping their reapers.
func (s *Sharded[K, V]) Close() {
	for _, shard := range s.shards {
		shard.Close()
	}
}
