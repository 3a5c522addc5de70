// Package engine owns the package corpus and the published index snapshot.
//
// Mutations go to the document store. Rebuilds snapshot the store, build a new
// index off to the side and publish it with a single atomic pointer swap, so
// queries never wait on a rebuild and always see one consistent snapshot.
package engine

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gcbaptista/package-search/config"
	"github.com/gcbaptista/package-search/index"
	"github.com/gcbaptista/package-search/internal/cache"
	"github.com/gcbaptista/package-search/internal/errors"
	"github.com/gcbaptista/package-search/internal/indexing"
	"github.com/gcbaptista/package-search/internal/jobs"
	"github.com/gcbaptista/package-search/internal/logger"
	"github.com/gcbaptista/package-search/internal/metrics"
	"github.com/gcbaptista/package-search/store"
)

// Options configures an Engine. Only Settings is required; nil collaborators
// are replaced by defaults or disabled.
type Options struct {
	Settings   config.SearchSettings
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Cache      *cache.QueryCache // Optional result cache
	Jobs       *jobs.Manager     // Shared job manager; the engine creates and owns one when nil
	Builder    *indexing.Builder
	JobWorkers int
	Now        func() time.Time
}

// Engine is the index lifecycle controller.
// It is NotReady until the first snapshot is published and Ready from then on.
type Engine struct {
	store   *store.DocumentStore
	current atomic.Pointer[index.Snapshot]

	settingsMu  sync.RWMutex
	settings    config.SearchSettings
	settingsGen uint64

	buildMu          sync.Mutex
	builtSettingsGen uint64

	refreshes  singleflight.Group
	builder    *indexing.Builder
	jobManager *jobs.Manager
	ownsJobs   bool
	cache      *cache.QueryCache
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
	createdAt  time.Time
}

// NewEngine creates an Engine in the NotReady state.
func NewEngine(opts Options) (*Engine, error) {
	settings := opts.Settings
	settings.ApplyDefaults()
	if problems := settings.Validate(); len(problems) > 0 {
		return nil, errors.NewValidationError("settings", strings.Join(problems, "; "))
	}

	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	log = log.With("component", "engine")

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	builder := opts.Builder
	if builder == nil {
		builder = indexing.NewBuilder(indexing.DefaultBuildConfig(), log)
	}

	e := &Engine{
		store:      store.NewDocumentStore(),
		settings:   settings,
		builder:    builder,
		jobManager: opts.Jobs,
		cache:      opts.Cache,
		metrics:    opts.Metrics,
		logger:     log,
		now:        now,
		createdAt:  now(),
	}

	if e.jobManager == nil {
		workers := opts.JobWorkers
		if workers <= 0 {
			workers = 2
		}
		e.jobManager = jobs.NewManager(workers, log)
		e.jobManager.Start()
		e.ownsJobs = true
	}
	if e.metrics != nil {
		e.metrics.IndexReady.Set(0)
	}
	return e, nil
}

// Close stops the engine's own job manager, cancelling running jobs.
func (e *Engine) Close() {
	if e.ownsJobs {
		e.jobManager.Stop()
	}
}

// Ready reports whether a snapshot has been published.
func (e *Engine) Ready() bool {
	return e.current.Load() != nil
}

// Snapshot returns the published snapshot, or nil while NotReady.
func (e *Engine) Snapshot() *index.Snapshot {
	return e.current.Load()
}

// Stats summarises the published snapshot.
func (e *Engine) Stats() (index.Stats, error) {
	snapshot := e.current.Load()
	if snapshot == nil {
		return index.Stats{}, errors.NewNotReadyError(e.createdAt)
	}
	return snapshot.Stats(), nil
}

// Settings returns a copy of the current search settings.
func (e *Engine) Settings() config.SearchSettings {
	e.settingsMu.RLock()
	defer e.settingsMu.RUnlock()
	return copySettings(e.settings)
}

// UpdateSettings validates and applies new search settings. Changes to the SDK
// library registry take effect with the next rebuild.
func (e *Engine) UpdateSettings(settings config.SearchSettings) error {
	settings.ApplyDefaults()
	if problems := settings.Validate(); len(problems) > 0 {
		return errors.NewValidationError("settings", strings.Join(problems, "; "))
	}

	e.settingsMu.Lock()
	e.settings = copySettings(settings)
	e.settingsGen++
	e.settingsMu.Unlock()

	e.logger.Info("search settings updated",
		"default_limit", settings.DefaultLimit,
		"max_limit", settings.MaxLimit,
		"sdk_libraries", len(settings.SdkLibraries),
		"rebuild_interval", settings.RebuildInterval)
	return nil
}

func (e *Engine) settingsSnapshot() (config.SearchSettings, uint64) {
	e.settingsMu.RLock()
	defer e.settingsMu.RUnlock()
	return copySettings(e.settings), e.settingsGen
}

func copySettings(s config.SearchSettings) config.SearchSettings {
	if s.SdkLibraries != nil {
		s.SdkLibraries = append([]string(nil), s.SdkLibraries...)
	}
	return s
}

// JobManager exposes the job manager for status endpoints.
func (e *Engine) JobManager() *jobs.Manager {
	return e.jobManager
}

func (e *Engine) String() string {
	snapshot := e.current.Load()
	if snapshot == nil {
		return "engine(not ready)"
	}
	return fmt.Sprintf("engine(ready, %d packages, built %s)", snapshot.Len(), snapshot.BuiltAt.Format(time.RFC3339))
}
