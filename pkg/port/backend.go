package port

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nobletooth/ttlcache/pkg/cache"
	"github.com/nobletooth/ttlcache/pkg/scan"
	"github.com/nobletooth/ttlcache/pkg/utils"
)

var ErrKeyNotFound = errors.New("key was not found")

// CacheBackend is the storage backend used by ports, e.g. Redis. The cache layer is safe on its own; mux only
// serializes read-modify-write commands (NX / XX / KEEPTTL / GET) against other writers.
type CacheBackend struct {
	mux   sync.RWMutex
	layer cache.Layer[string, []byte]
}

// NewCacheBackend wraps the given cache layer. The backend owns the layer and closes it on Close.
func NewCacheBackend(layer cache.Layer[string, []byte]) (*CacheBackend, error) {
	if layer == nil {
		return nil, errors.New("expected a non-nil cache layer")
	}
	return &CacheBackend{layer: layer}, nil
}

// Get looks up the given `key` and returns its value or ErrKeyNotFound if absent or expired.
func (cb *CacheBackend) Get(key string) ([]byte, error) {
	cb.mux.RLock()
	defer cb.mux.RUnlock()

	value, found := cb.layer.Get(key)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return value, nil
}

type existenceCheck uint8

const (
	noCheck     existenceCheck = iota
	ifNotExists                // NX
	ifExists                   // XX
)

var allExistenceChecks = []existenceCheck{noCheck, ifExists, ifNotExists}

type SetCommand struct {
	key       string
	value     []byte
	ttl       time.Duration // Only used when hasTtl is set; otherwise the cache default TTL applies.
	hasTtl    bool
	existence existenceCheck
	keepTtl   bool // The Redis KEEPTTL option; overrides the `ttl`.
	get       bool // The Redis GET option; if true, should return the previous value.
}

type SetResult struct {
	previousValue    []byte // Only set if the command requires the previous value.
	hasPreviousValue bool   // If true, the `key` specified in SetCommand had a live previous value.
	couldSet         bool   // If true, something was set in the cache.
	err              error
}

// Set executes the given `cmd` and returns the previous value if required.
func (cb *CacheBackend) Set(cmd SetCommand) SetResult {
	if !slices.Contains(allExistenceChecks, cmd.existence) {
		utils.RaiseInvariant("backend", "unknown_set_existence_constraint",
			"Got an unknown existence constraint in the given set command.", "constraint", cmd.existence)
		return SetResult{err: fmt.Errorf("got unknown set constraint '%d'", cmd.existence)}
	}

	cb.mux.Lock()
	defer cb.mux.Unlock()

	// Check if previous key-value pair needs to be retrieved. Expired keys read as absent.
	var prevValue []byte
	hasPrevValue := false
	if cmd.existence != noCheck || cmd.keepTtl || cmd.get {
		prevValue, hasPrevValue = cb.layer.Get(cmd.key)
	}

	// Check whether we can set the value or not.
	couldSet := cmd.existence == noCheck || // Set any way.
		(cmd.existence == ifNotExists && !hasPrevValue) || // NX; Set only if not exists.
		(cmd.existence == ifExists && hasPrevValue) // XX; Set only if exists.
	if couldSet {
		remaining, hasRemaining := time.Duration(0), false
		if cmd.keepTtl && hasPrevValue {
			remaining, hasRemaining = cb.layer.TTL(cmd.key)
		}
		switch {
		case hasRemaining: // KEEPTTL only copies the previous key expiry if it exists.
			cb.layer.PutWithTTL(cmd.key, cmd.value, remaining)
		case cmd.hasTtl:
			cb.layer.PutWithTTL(cmd.key, cmd.value, cmd.ttl)
		default:
			cb.layer.Put(cmd.key, cmd.value)
		}
	}

	// Client wants the previous value returned.
	if cmd.get {
		return SetResult{previousValue: prevValue, hasPreviousValue: hasPrevValue, couldSet: couldSet}
	}
	return SetResult{couldSet: couldSet}
}

// Delete removes `key` and reports whether a live entry was removed.
func (cb *CacheBackend) Delete(key string) bool {
	cb.mux.Lock()
	defer cb.mux.Unlock()
	return cb.layer.Remove(key)
}

// Exists reports whether `key` holds a live entry.
func (cb *CacheBackend) Exists(key string) bool {
	_, err := cb.Get(key)
	return err == nil
}

// TTL returns the remaining lifetime of `key` or ErrKeyNotFound.
func (cb *CacheBackend) TTL(key string) (time.Duration, error) {
	cb.mux.RLock()
	defer cb.mux.RUnlock()

	remaining, found := cb.layer.TTL(key)
	if !found {
		return 0, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return remaining, nil
}

// Keys lists live keys matching the glob `pattern` in lexicographic order.
func (cb *CacheBackend) Keys(pattern string) ([]string, error) {
	matched, err := scan.MatchGlob(pattern, cb.layer.SortedKeys(strings.Compare))
	if err != nil {
		return nil, err
	}
	return append(make([]string, 0), slices.Collect(matched)...), nil
}

// Size returns the number of live keys.
func (cb *CacheBackend) Size() int {
	return len(cb.layer.Keys())
}

// Flush removes every key.
func (cb *CacheBackend) Flush() {
	cb.mux.Lock()
	defer cb.mux.Unlock()
	cb.layer.Purge()
}

// Close stops the background work of the cache layer.
func (cb *CacheBackend) Close() error {
	cb.mux.Lock()
	defer cb.mux.Unlock()
	cb.layer.Close()
	return nil
}
