package vector

import (
	"fmt"
	"slices"
	"sort"
)

// SortResults orders results by descending score. Equal scores are ordered
// by ID so that every backend returns ties in the same order.
func SortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}

// TopK sorts results and truncates them to at most k entries.
func TopK(results []SearchResult, k int) []SearchResult {
	SortResults(results)
	if k >= 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

// Keys returns the filter's field names in sorted order so generated
// predicates are deterministic.
func (f Filter) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Validate rejects filter values that cannot be compared for equality by
// every backend. Strings, booleans and numbers are accepted.
func (f Filter) Validate() error {
	for k, v := range f {
		if k == "" {
			return fmt.Errorf("%w: empty key", ErrInvalidFilter)
		}
		switch v.(type) {
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
		default:
			return fmt.Errorf("%w: unsupported value %T for key %q", ErrInvalidFilter, v, k)
		}
	}
	return nil
}
