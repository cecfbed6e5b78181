package cache

import "time"

// entry is a single cached value together with its absolute deadline. Entries are never mutated after creation;
// an overwrite installs a new *entry in the map slot, which lets readers detect a concurrent refresh by pointer
// identity.
type entry[V any] struct {
	value    V
	deadline time.Time // The entry is valid up to and including this instant.
}

// newEntry computes the deadline once as `now + ttl`. A zero or negative ttl yields an already expired entry.
func newEntry[V any](value V, now time.Time, ttl time.Duration) *entry[V] {
	return &entry[V]{value: value, deadline: now.Add(ttl)}
}

// validAt reports whether the entry is still alive at `now`, i.e. `now <= deadline`.
func (e *entry[V]) validAt(now time.Time) bool {
	return !now.After(e.deadline)
}

// remainingAt returns the lifetime left at `now`; non-positive once the entry expired.
func (e *entry[V]) remainingAt(now time.Time) time.Duration {
	return e.deadline.Sub(now)
}
