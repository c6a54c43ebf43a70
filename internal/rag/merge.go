package rag

import (
	"sort"
)

const (
	// DefaultTopK is the number of fragments kept after merging results
	// across all queried collections.
	DefaultTopK = 7

	// DefaultPerCollectionK is the number of fragments requested from each
	// individual collection before merging.
	DefaultPerCollectionK = 5
)

// MergeTopK combines per-collection result lists into one globally ranked
// list of at most k fragments, ordered ascending by distance. The outer
// slice order is the caller's collection order; ties in distance keep that
// input order (stable sort), so the first-seen collection wins.
//
// Upstream search results arrive pre-sorted per collection, but that is not
// assumed — the merge re-sorts the flattened set. Identical fragment texts
// retrieved from different collections are deliberately NOT deduplicated:
// both are kept when both rank in the top k, preserving collection
// provenance.
//
// An empty or nil input yields an empty result, not an error. k values
// below 1 fall back to DefaultTopK.
func MergeTopK(resultSets [][]Fragment, k int) []Fragment {
	if k < 1 {
		k = DefaultTopK
	}

	total := 0
	for _, set := range resultSets {
		total += len(set)
	}
	if total == 0 {
		return nil
	}

	merged := make([]Fragment, 0, total)
	for _, set := range resultSets {
		merged = append(merged, set...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Distance < merged[j].Distance
	})

	if len(merged) > k {
		merged = merged[:k]
	}
	return merged
}
