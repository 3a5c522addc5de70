// Package search ranks packages in an index snapshot.
package search

import (
	"math"
	"sort"
	"time"

	"github.com/gcbaptista/package-search/index"
	"github.com/gcbaptista/package-search/model"
	"github.com/gcbaptista/package-search/services"
)

// Search ranks the packages of snapshot for query and returns the requested page.
// It only reads the snapshot, so any number of searches may run concurrently.
//
// Under text order a package qualifies when it matches at least one query term;
// its score is the fraction of distinct query terms it matches, so a package
// matching all of them scores exactly 1.0. Every other order keeps all packages
// and sorts them by the requested field, descending. Ties keep insertion order.
func Search(snapshot *index.Snapshot, query services.ServiceSearchQuery) services.PackageSearchResult {
	var candidates []candidateHit
	if query.Order == services.OrderText {
		candidates = textCandidates(snapshot, query)
	} else {
		candidates = fieldCandidates(snapshot, query)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].sortKey != candidates[j].sortKey {
			return candidates[i].sortKey > candidates[j].sortKey
		}
		return candidates[i].position < candidates[j].position
	})

	return services.PackageSearchResult{
		Timestamp:      snapshot.BuiltAt,
		TotalCount:     len(candidates),
		SdkLibraryHits: sdkLibraryHits(snapshot, query.Terms),
		PackageHits:    paginate(candidates, query.Offset, query.Limit),
	}
}

// textCandidates scores packages by distinct query term overlap.
// Term frequency is deliberately ignored: every matching term adds one unit.
func textCandidates(snapshot *index.Snapshot, query services.ServiceSearchQuery) []candidateHit {
	if len(query.Terms) == 0 {
		return nil
	}

	matched := make(map[string]int)
	for _, term := range query.Terms {
		for _, posting := range snapshot.Postings[term] {
			matched[posting.Package]++
		}
	}

	total := float64(len(query.Terms))
	candidates := make([]candidateHit, 0, len(matched))
	for name, count := range matched {
		doc, ok := snapshot.Documents[name]
		if !ok || !docMatchesFilters(doc, query) {
			continue
		}
		score := float64(count) / total
		candidates = append(candidates, candidateHit{
			doc:      doc,
			position: snapshot.Position[name],
			sortKey:  score,
			score:    score,
		})
	}
	return candidates
}

// fieldCandidates keeps every package that passes the filters, keyed by the order's field.
func fieldCandidates(snapshot *index.Snapshot, query services.ServiceSearchQuery) []candidateHit {
	candidates := make([]candidateHit, 0, len(snapshot.Order))
	for position, name := range snapshot.Order {
		doc := snapshot.Documents[name]
		if !docMatchesFilters(doc, query) {
			continue
		}
		value := fieldValue(doc, query.Order)
		score := 0.0
		if !math.IsInf(value, 0) {
			score = math.Max(0, value)
		}
		candidates = append(candidates, candidateHit{
			doc:      doc,
			position: position,
			sortKey:  value,
			score:    score,
		})
	}
	return candidates
}

// fieldValue returns the ranking value of doc for a non-text order.
// Timestamps rank by Unix seconds; an unset timestamp ranks below every set one.
// A NaN metric ranks as 0 so the ordering stays total.
func fieldValue(doc model.PackageDocument, order services.SortOrder) float64 {
	switch order {
	case services.OrderHealth:
		return finite(doc.Health)
	case services.OrderMaintenance:
		return finite(doc.Maintenance)
	case services.OrderCreated:
		return timeValue(doc.Created)
	case services.OrderUpdated:
		return timeValue(doc.Updated)
	default:
		return finite(doc.Popularity)
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func timeValue(t time.Time) float64 {
	if t.IsZero() {
		return math.Inf(-1)
	}
	return float64(t.Unix())
}

// paginate returns hits for [offset, offset+limit). The result is never nil.
func paginate(candidates []candidateHit, offset, limit int) []services.PackageHit {
	hits := make([]services.PackageHit, 0)
	if offset < 0 {
		offset = 0
	}
	if offset >= len(candidates) || limit <= 0 {
		return hits
	}
	end := offset + limit
	if end > len(candidates) {
		end = len(candidates)
	}
	for _, c := range candidates[offset:end] {
		hits = append(hits, services.PackageHit{Package: c.doc.Name, Score: c.score})
	}
	return hits
}
