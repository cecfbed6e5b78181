package cache

import "time"

// Clock supplies the current instant for deadline computations. Implementations must never move backwards for
// the lifetime of a cache; wall clock adjustments aren't handled.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now, which carries the monotonic clock reading, so deadline comparisons are immune to
// wall clock steps within the process.
type SystemClock struct{}

var _ Clock = SystemClock{}

func (SystemClock) Now() time.Time { return time.Now() }
