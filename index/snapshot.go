package index

import (
	"time"

	"github.com/gcbaptista/package-search/model"
)

// Snapshot is a fully built, immutable index state.
// Once published by the lifecycle controller it is never mutated; a rebuild produces a new Snapshot.
// Readers may therefore use it concurrently without locks.
type Snapshot struct {
	Postings  map[string]PostingList           // Token -> postings
	Documents map[string]model.PackageDocument // Package name -> document, for ranking fields and projection
	Order     []string                         // Package names in document store insertion order
	Position  map[string]int                   // Package name -> index in Order, the tie-break key

	SdkLibraries []string         // Registry of SDK library names, in registry order
	SdkPostings  map[string][]int // Token -> indexes into SdkLibraries

	BuiltAt            time.Time
	Version            uint64 // Document store version the snapshot was built from
	SettingsGeneration uint64 // Search settings generation the snapshot was built with
}

// Len returns the number of documents in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.Order)
}

// Document returns the document for a package name.
func (s *Snapshot) Document(name string) (model.PackageDocument, bool) {
	doc, ok := s.Documents[name]
	return doc, ok
}

// TermCount returns the number of distinct tokens in the snapshot.
func (s *Snapshot) TermCount() int {
	return len(s.Postings)
}

// Stats summarises a snapshot for status endpoints and metrics.
type Stats struct {
	Documents    int       `json:"documents"`
	Terms        int       `json:"terms"`
	SdkLibraries int       `json:"sdk_libraries"`
	BuiltAt      time.Time `json:"built_at"`
	Version      uint64    `json:"version"`
}

// Stats returns summary counts for the snapshot.
func (s *Snapshot) Stats() Stats {
	return Stats{
		Documents:    s.Len(),
		Terms:        s.TermCount(),
		SdkLibraries: len(s.SdkLibraries),
		BuiltAt:      s.BuiltAt,
		Version:      s.Version,
	}
}
