package engine

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/gcbaptista/package-search/internal/source"
)

// RefreshResult describes what a source refresh changed.
type RefreshResult struct {
	Source    string `json:"source"`
	Loaded    int    `json:"loaded"`
	Upserted  int    `json:"upserted"`
	Unchanged int    `json:"unchanged"`
	Removed   int    `json:"removed"`
	Skipped   int    `json:"skipped"`
	Packages  int    `json:"packages"`
}

// Refresh reconciles the store with src and rebuilds. Packages missing from
// the source are removed, new or changed ones are upserted, and documents the
// store rejects are skipped. Concurrent refreshes of the same source share one load.
// A failed load leaves the store and the published snapshot untouched.
func (e *Engine) Refresh(ctx context.Context, src source.Source) (RefreshResult, error) {
	v, err, shared := e.refreshes.Do(src.Name(), func() (interface{}, error) {
		return e.refresh(ctx, src)
	})
	if err != nil {
		return RefreshResult{}, err
	}
	if shared {
		e.logger.Debug("refresh shared with a concurrent caller", "source", src.Name())
	}
	return v.(RefreshResult), nil
}

func (e *Engine) refresh(ctx context.Context, src source.Source) (RefreshResult, error) {
	result := RefreshResult{Source: src.Name()}

	docs, err := src.Load(ctx)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RebuildsTotal.WithLabelValues("source_failed").Inc()
		}
		return result, fmt.Errorf("loading packages from %s: %w", src.Name(), err)
	}
	result.Loaded = len(docs)

	seen := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		doc.Name = strings.TrimSpace(doc.Name)
		if existing, ok := e.store.Get(doc.Name); ok && reflect.DeepEqual(existing, doc) {
			seen[doc.Name] = struct{}{}
			result.Unchanged++
			continue
		}
		if err := e.store.AddPackage(doc); err != nil {
			result.Skipped++
			e.logger.Warn("skipping package from source", "source", src.Name(), "error", err)
			continue
		}
		seen[doc.Name] = struct{}{}
		result.Upserted++
	}

	for _, name := range e.store.Names() {
		if _, ok := seen[name]; ok {
			continue
		}
		if err := e.store.DeletePackage(name); err == nil {
			result.Removed++
		}
	}

	snapshot, err := e.Rebuild(ctx)
	if err != nil {
		return result, err
	}
	result.Packages = snapshot.Len()

	e.logger.Info("source refreshed",
		"source", result.Source,
		"loaded", result.Loaded,
		"upserted", result.Upserted,
		"removed", result.Removed,
		"skipped", result.Skipped)
	return result, nil
}
