package search

import (
	"github.com/gcbaptista/package-search/model"
	"github.com/gcbaptista/package-search/services"
)

// docMatchesFilters checks if a document passes the query's tag and discontinued filters.
// Every requested tag must be present on the document.
func docMatchesFilters(doc model.PackageDocument, query services.ServiceSearchQuery) bool {
	if doc.IsDiscontinued && !query.IncludeDiscontinued {
		return false
	}
	for _, tag := range query.Tags {
		if !doc.HasTag(tag) {
			return false
		}
	}
	return true
}
