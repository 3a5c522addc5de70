package engine

import (
	"fmt"

	"github.com/gcbaptista/package-search/internal/errors"
	"github.com/gcbaptista/package-search/model"
)

// AddPackage inserts or replaces a package in the store. The published
// snapshot is unaffected until the next rebuild.
func (e *Engine) AddPackage(doc model.PackageDocument) error {
	if err := e.store.AddPackage(doc); err != nil {
		return err
	}
	e.logger.Debug("package stored", "package", doc.Name)
	return nil
}

// AddPackages stores a batch. Invalid documents are skipped; the returned
// error describes the first of them and how many were rejected.
func (e *Engine) AddPackages(docs []model.PackageDocument) error {
	var firstErr error
	rejected := 0
	for i, doc := range docs {
		if err := e.store.AddPackage(doc); err != nil {
			rejected++
			if firstErr == nil {
				firstErr = fmt.Errorf("package at index %d: %w", i, err)
			}
		}
	}
	e.logger.Debug("package batch stored", "count", len(docs)-rejected, "rejected", rejected)
	if firstErr != nil {
		return fmt.Errorf("%d of %d packages rejected: %w", rejected, len(docs), firstErr)
	}
	return nil
}

// DeletePackage removes a package from the store.
func (e *Engine) DeletePackage(name string) error {
	if err := e.store.DeletePackage(name); err != nil {
		return err
	}
	e.logger.Debug("package deleted", "package", name)
	return nil
}

// GetPackage returns the stored document for name. The store may be ahead of
// the published snapshot.
func (e *Engine) GetPackage(name string) (model.PackageDocument, error) {
	doc, ok := e.store.Get(name)
	if !ok {
		return model.PackageDocument{}, errors.NewPackageNotFoundError(name)
	}
	return doc, nil
}

// PackageCount returns the number of packages in the store.
func (e *Engine) PackageCount() int {
	return e.store.Len()
}
