package storage

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/dreamware/strata/internal/encoding"
	"github.com/dreamware/strata/internal/plan"
)

// BuildIndex merges the per-shard result lists of one checkpoint into the
// global storage index. Item identities must be unique across all results;
// a collision fails with DuplicateKeyError.
func BuildIndex(results [][]plan.WriteResult) (map[string]encoding.Entry, error) {
	total := 0
	for _, rs := range results {
		total += len(rs)
	}
	index := make(map[string]encoding.Entry, total)
	for _, rs := range results {
		for _, r := range rs {
			if _, dup := index[r.Key]; dup {
				return nil, &DuplicateKeyError{Key: r.Key}
			}
			index[r.Key] = encoding.Entry{Kind: r.Kind, Locator: r.Locator}
		}
	}
	return index, nil
}

// CheckOverlap validates the locator invariant of an index against the
// actual shard file sizes: within one file no two locator ranges overlap,
// and no range extends past the end of the file. sizes maps shard file
// names to their byte lengths.
func CheckOverlap(index map[string]encoding.Entry, sizes map[string]int64) error {
	perFile := make(map[string][]plan.Locator)
	for key, entry := range index {
		loc := entry.Locator
		if loc.Offset < 0 || loc.Length < 0 {
			return fmt.Errorf("item %q: negative locator range [%d, %d)", key, loc.Offset, loc.Offset+loc.Length)
		}
		size, ok := sizes[loc.Path]
		if !ok {
			return fmt.Errorf("item %q: locator references missing shard %s", key, loc.Path)
		}
		if loc.Offset+loc.Length > size {
			return fmt.Errorf("item %q: locator [%d, %d) extends past end of %s (%d bytes)",
				key, loc.Offset, loc.Offset+loc.Length, loc.Path, size)
		}
		perFile[loc.Path] = append(perFile[loc.Path], loc)
	}

	for path, locs := range perFile {
		slices.SortFunc(locs, func(a, b plan.Locator) int {
			switch {
			case a.Offset < b.Offset:
				return -1
			case a.Offset > b.Offset:
				return 1
			default:
				return 0
			}
		})
		for i := 1; i < len(locs); i++ {
			prev, cur := locs[i-1], locs[i]
			if prev.Offset+prev.Length > cur.Offset {
				return fmt.Errorf("shard %s: locators [%d, %d) and [%d, %d) overlap",
					path, prev.Offset, prev.Offset+prev.Length, cur.Offset, cur.Offset+cur.Length)
			}
		}
	}
	return nil
}
