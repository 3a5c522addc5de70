package engine

import (
	"context"
	"time"

	"github.com/gcbaptista/package-search/index"
)

// MarkReady builds and publishes the first snapshot from everything stored so
// far, moving the engine from NotReady to Ready. Calling it again behaves like Rebuild.
func (e *Engine) MarkReady(ctx context.Context) error {
	wasReady := e.Ready()
	snapshot, err := e.Rebuild(ctx)
	if err != nil {
		return err
	}
	if !wasReady {
		e.logger.Info("index ready",
			"packages", snapshot.Len(),
			"waited", snapshot.BuiltAt.Sub(e.createdAt))
	}
	return nil
}

// Rebuild builds a snapshot from the current store contents and publishes it.
//
// Builds are serialized. A caller whose store mutations are already covered by
// the published snapshot, because a build that started after them has
// finished, gets that snapshot back without a second build. A build is never
// interrupted by a newer trigger; the newer trigger queues behind it.
func (e *Engine) Rebuild(ctx context.Context) (*index.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	requestedVersion := e.store.CurrentVersion()
	_, requestedSettings := e.settingsSnapshot()

	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	if current := e.current.Load(); current != nil &&
		current.Version >= requestedVersion && e.builtSettingsGen >= requestedSettings {
		e.logger.Debug("rebuild coalesced", "version", current.Version)
		return current, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	docs, version := e.store.Export()
	settings, settingsGen := e.settingsSnapshot()

	snapshot := e.builder.Build(docs, settings.SdkLibraries, e.now())
	snapshot.Version = version
	snapshot.SettingsGeneration = settingsGen

	e.builtSettingsGen = settingsGen
	e.publish(snapshot, time.Since(start))
	return snapshot, nil
}

// publish swaps in a fully built snapshot. The caller holds buildMu.
func (e *Engine) publish(snapshot *index.Snapshot, took time.Duration) {
	previous := e.current.Swap(snapshot)

	if e.metrics != nil {
		e.metrics.RebuildsTotal.WithLabelValues("completed").Inc()
		e.metrics.RebuildDuration.Observe(took.Seconds())
		e.metrics.IndexedDocuments.Set(float64(snapshot.Len()))
		e.metrics.IndexedTerms.Set(float64(snapshot.TermCount()))
		e.metrics.IndexReady.Set(1)
	}

	attrs := []any{
		"packages", snapshot.Len(),
		"terms", snapshot.TermCount(),
		"version", snapshot.Version,
		"duration", took,
	}
	if previous != nil {
		attrs = append(attrs, "previous_packages", previous.Len())
	}
	e.logger.Info("index snapshot published", attrs...)
}
