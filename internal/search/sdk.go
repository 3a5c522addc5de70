package search

import (
	"sort"

	"github.com/gcbaptista/package-search/index"
	"github.com/gcbaptista/package-search/services"
)

// sdkLibraryHits matches the query terms against the snapshot's SDK library registry
// with the same unit-weight rule used for packages. The result is never nil.
func sdkLibraryHits(snapshot *index.Snapshot, terms []string) []services.SdkLibraryHit {
	hits := make([]services.SdkLibraryHit, 0)
	if len(terms) == 0 || len(snapshot.SdkLibraries) == 0 {
		return hits
	}

	matched := make(map[int]int)
	for _, term := range terms {
		for _, idx := range snapshot.SdkPostings[term] {
			matched[idx]++
		}
	}
	if len(matched) == 0 {
		return hits
	}

	indexes := make([]int, 0, len(matched))
	for idx := range matched {
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool {
		a, b := indexes[i], indexes[j]
		if matched[a] != matched[b] {
			return matched[a] > matched[b]
		}
		return a < b
	})

	total := float64(len(terms))
	for _, idx := range indexes {
		hits = append(hits, services.SdkLibraryHit{
			Library: snapshot.SdkLibraries[idx],
			Score:   float64(matched[idx]) / total,
		})
	}
	return hits
}
