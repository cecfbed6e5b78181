// Key listings (e.g. the Redis KEYS command) filter keys with glob patterns; the following module implements glob
// matching over key streams.

package scan

import (
	"fmt"
	"iter"
	"strings"

	"v.io/v23/glob"
)

// Matcher reports whether a key matches a compiled glob pattern.
type Matcher func(key string) bool

// CompileGlob parses `pattern`. Patterns are matched segment by segment, where segments are separated by '/'.
func CompileGlob(pattern string) (Matcher, error) {
	parsed, err := glob.Parse(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	return func(key string) bool {
		current := parsed
		segments := strings.Split(key, "/")
		for _, segment := range segments {
			if current.Len() == 0 { // Pattern is exhausted; only a trailing "..." accepts more segments.
				return current.Recursive()
			}
			if !current.Head().Match(segment) {
				return false
			}
			current = current.Tail()
		}
		return current.Len() == 0
	}, nil
}

// MatchGlob filters the `keys` stream with the given glob `pattern`.
func MatchGlob(pattern string, keys iter.Seq[string]) (iter.Seq[string], error) {
	matcher, err := CompileGlob(pattern)
	if err != nil {
		return nil, err
	}
	return func(yield func(string) bool) {
		for key := range keys {
			if matcher(key) {
				if !yield(key) {
					return
				}
			}
		}
	}, nil
}
