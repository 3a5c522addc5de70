package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/gcbaptista/package-search/internal/errors"
	"github.com/gcbaptista/package-search/model"
)

// DocumentStore holds the current set of package documents keyed by package name.
// Every name is assigned a sequence number the first time it is inserted; replacing a
// document keeps its sequence, so snapshot order is insertion order.
type DocumentStore struct {
	Mu       sync.RWMutex
	Docs     map[string]model.PackageDocument // Package name to full document
	Sequence map[string]uint64                // Package name to insertion sequence
	NextSeq  uint64
	Version  uint64 // Incremented by every mutation
}

// NewDocumentStore creates an empty store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		Docs:     make(map[string]model.PackageDocument),
		Sequence: make(map[string]uint64),
	}
}

// AddPackage inserts or fully replaces the document for doc.Name.
// The only validation is a non-empty name.
func (ds *DocumentStore) AddPackage(doc model.PackageDocument) error {
	name := strings.TrimSpace(doc.Name)
	if name == "" {
		return errors.NewValidationError("name", "package name cannot be empty or whitespace-only")
	}
	doc.Name = name

	ds.Mu.Lock()
	defer ds.Mu.Unlock()

	ds.ensureInitializedUnsafe()
	if _, exists := ds.Sequence[name]; !exists {
		ds.Sequence[name] = ds.NextSeq
		ds.NextSeq++
	}
	ds.Docs[name] = doc.Clone()
	ds.Version++
	return nil
}

// DeletePackage removes a document. A later AddPackage with the same name is a fresh insertion.
// The name is trimmed the same way AddPackage trims it.
func (ds *DocumentStore) DeletePackage(name string) error {
	name = strings.TrimSpace(name)

	ds.Mu.Lock()
	defer ds.Mu.Unlock()

	if _, exists := ds.Docs[name]; !exists {
		return errors.NewPackageNotFoundError(name)
	}
	delete(ds.Docs, name)
	delete(ds.Sequence, name)
	ds.Version++
	return nil
}

// Get returns a copy of the stored document.
func (ds *DocumentStore) Get(name string) (model.PackageDocument, bool) {
	ds.Mu.RLock()
	defer ds.Mu.RUnlock()

	doc, ok := ds.Docs[name]
	if !ok {
		return model.PackageDocument{}, false
	}
	return doc.Clone(), true
}

// Len returns the number of stored documents.
func (ds *DocumentStore) Len() int {
	ds.Mu.RLock()
	defer ds.Mu.RUnlock()
	return len(ds.Docs)
}

// Names returns every stored package name, in insertion order.
func (ds *DocumentStore) Names() []string {
	ds.Mu.RLock()
	defer ds.Mu.RUnlock()
	return ds.orderedNamesUnsafe()
}

// AllDocuments returns a copy of every document ordered by insertion sequence.
// The result does not reflect later mutations.
func (ds *DocumentStore) AllDocuments() []model.PackageDocument {
	docs, _ := ds.Export()
	return docs
}

// Export returns AllDocuments together with the store version they were read at.
func (ds *DocumentStore) Export() ([]model.PackageDocument, uint64) {
	ds.Mu.RLock()
	defer ds.Mu.RUnlock()

	names := ds.orderedNamesUnsafe()
	docs := make([]model.PackageDocument, 0, len(names))
	for _, name := range names {
		docs = append(docs, ds.Docs[name].Clone())
	}
	return docs, ds.Version
}

// CurrentVersion returns the mutation counter.
func (ds *DocumentStore) CurrentVersion() uint64 {
	ds.Mu.RLock()
	defer ds.Mu.RUnlock()
	return ds.Version
}

// orderedNamesUnsafe assumes the caller holds at least a read lock.
func (ds *DocumentStore) orderedNamesUnsafe() []string {
	names := make([]string, 0, len(ds.Docs))
	for name := range ds.Docs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return ds.Sequence[names[i]] < ds.Sequence[names[j]]
	})
	return names
}

func (ds *DocumentStore) ensureInitializedUnsafe() {
	if ds.Docs == nil {
		ds.Docs = make(map[string]model.PackageDocument)
	}
	if ds.Sequence == nil {
		ds.Sequence = make(map[string]uint64)
	}
}
