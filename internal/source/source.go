// Package source loads the package corpus from an external system of record.
package source

import (
	"context"

	"github.com/gcbaptista/package-search/model"
)

// Source supplies the complete current corpus. Load returns every package the
// source knows about, in the order they should be inserted into the store.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]model.PackageDocument, error)
}
