// A sharded cache holds its keys in several independent shards. Listing keys in order shouldn't require copying
// every shard into one slice and sorting it again; each shard sorts its own keys and the streams are merged here.
//
// This module implements a heap-based multi-way merge that lazily pulls from several increasing sequences.
// Items are ordered by key and then by sequence priority (lower index wins); items whose key was already yielded
// are discarded.

package scan

import (
	"container/heap"
	"errors"
	"iter"

	"github.com/nobletooth/ttlcache/pkg/utils"
)

// head is the latest item pulled from one of the merged sequences.
type head[K any, V any] struct {
	pair   utils.Pair[K, V]
	seqIdx int // Index of the sequence that produced this item; also its priority.
}

// headHeap is a min-heap of heads. Implements heap.Interface.
type headHeap[K any, V any] struct {
	compare utils.CompareFn[K]
	heads   []head[K, V]
}

var _ heap.Interface = (*headHeap[int, int])(nil)

func (h *headHeap[K, V]) Len() int { return len(h.heads) }

// Less orders by key first and by sequence priority for equal keys.
func (h *headHeap[K, V]) Less(i, j int) bool {
	if c := h.compare(h.heads[i].pair.Key, h.heads[j].pair.Key); c != 0 {
		return c < 0
	}
	return h.heads[i].seqIdx < h.heads[j].seqIdx
}

func (h *headHeap[K, V]) Swap(i, j int) { h.heads[i], h.heads[j] = h.heads[j], h.heads[i] }

func (h *headHeap[K, V]) Push(x any) {
	next, ok := x.(head[K, V])
	if !ok {
		utils.RaiseInvariant("multi_head", "pushed_invalid_type", "An item with invalid type was pushed to heap.")
		return
	}
	h.heads = append(h.heads, next)
}

func (h *headHeap[K, V]) Pop() any {
	last := h.heads[len(h.heads)-1]
	h.heads = h.heads[:len(h.heads)-1]
	return last
}

// MultiHead merges increasing `sequences` into one increasing sequence. For keys present in more than one
// sequence, the pair of the sequence with the lowest index is kept.
func MultiHead[K any, V any](compare utils.CompareFn[K],
	sequences []iter.Seq[utils.Pair[K, V]]) (iter.Seq[utils.Pair[K, V]], error) {
	if compare == nil {
		return nil, errors.New("expected a non-nil comparison function")
	}
	if len(sequences) == 0 {
		return nil, errors.New("expected a non-empty sequences")
	}

	return func(yield func(utils.Pair[K, V]) bool) {
		heads := &headHeap[K, V]{compare: compare, heads: make([]head[K, V], 0, len(sequences))}
		pulls := make([]func() (utils.Pair[K, V], bool), len(sequences))
		for seqIdx, seq := range sequences {
			pull, stop := iter.Pull(seq)
			defer stop()
			pulls[seqIdx] = pull
			if first, ok := pull(); ok {
				heap.Push(heads, head[K, V]{pair: first, seqIdx: seqIdx})
			}
		}

		var last *utils.Pair[K, V]
		for heads.Len() > 0 {
			top := heap.Pop(heads).(head[K, V])
			if next, ok := pulls[top.seqIdx](); ok {
				heap.Push(heads, head[K, V]{pair: next, seqIdx: top.seqIdx})
			}
			if last != nil && compare(last.Key, top.pair.Key) == 0 {
				continue // Lower priority duplicate.
			}
			last = &top.pair
			if !yield(top.pair) {
				return
			}
		}
	}, nil
}

// MergeKeys merges increasing key sequences into one increasing sequence without duplicates.
func MergeKeys[K any](compare utils.CompareFn[K], sequences []iter.Seq[K]) (iter.Seq[K], error) {
	pairs := make([]iter.Seq[utils.Pair[K, struct{}]], len(sequences))
	for i, seq := range sequences {
		pairs[i] = func(yield func(utils.Pair[K, struct{}]) bool) {
			for key := range seq {
				if !yield(utils.Pair[K, struct{}]{Key: key}) {
					return
				}
			}
		}
	}
	merged, err := MultiHead(compare, pairs)
	if err != nil {
		return nil, err
	}
	return func(yield func(K) bool) {
		for pair := range merged {
			if !yield(pair.Key) {
				return
			}
		}
	}, nil
}
