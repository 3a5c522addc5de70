package search

import "github.com/gcbaptista/package-search/model"

// candidateHit represents a package candidate during search processing
type candidateHit struct {
	doc      model.PackageDocument
	position int     // Insertion position in the snapshot, the tie-break key
	sortKey  float64 // Value the candidates are ordered by, descending
	score    float64 // Score reported in the hit
}
