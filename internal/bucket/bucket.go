// Package bucket partitions checkpoint write items into balanced groups,
// one group per shard file. Balancing minimizes the longest-running shard
// writer, which bounds checkpoint latency when groups are written in
// parallel.
//
// Byte blobs are tiny and roughly uniform, so they are spread round-robin.
// Tensor items dominate the byte volume and are packed with the
// longest-processing-time-first heuristic: sort descending by size, then
// assign each item to the currently smallest group. The heuristic is
// O(n log n) and within 4/3 of the optimal maximum group size.
package bucket

import (
	"github.com/dreamware/strata/internal/plan"
	"golang.org/x/exp/slices"
)

// Split partitions items into bins groups whose aggregate byte sizes are
// approximately balanced. Every input item appears in exactly one group.
// The packing is deterministic: ties on group size resolve to the lowest
// group index.
//
// With bins == 1 the input list is returned as the single group unchanged,
// skipping the sort.
func Split(bins int, items []plan.WriteItem) [][]plan.WriteItem {
	if bins == 1 {
		return [][]plan.WriteItem{items}
	}

	var blobs, tensors []plan.WriteItem
	for _, it := range items {
		if it.Kind == plan.ByteIO {
			blobs = append(blobs, it)
		} else {
			tensors = append(tensors, it)
		}
	}

	buckets := make([][]plan.WriteItem, bins)
	sizes := make([]int64, bins)

	for i, it := range blobs {
		buckets[i%bins] = append(buckets[i%bins], it)
	}

	// Largest first; stable so equal-sized items keep plan order.
	slices.SortStableFunc(tensors, func(a, b plan.WriteItem) int {
		switch {
		case a.ByteSize() > b.ByteSize():
			return -1
		case a.ByteSize() < b.ByteSize():
			return 1
		default:
			return 0
		}
	})

	for _, it := range tensors {
		idx := smallest(sizes)
		buckets[idx] = append(buckets[idx], it)
		sizes[idx] += it.ByteSize()
	}

	return buckets
}

// smallest returns the index of the smallest accumulated size, preferring
// the lowest index on ties. A linear scan is fine at realistic worker
// counts; a min-heap only pays off with hundreds of bins.
func smallest(sizes []int64) int {
	idx := 0
	for i, s := range sizes {
		if s < sizes[idx] {
			idx = i
		}
	}
	return idx
}
