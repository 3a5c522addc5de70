package services

import (
	"context"
	"time"

	"github.com/gcbaptista/package-search/config"
	"github.com/gcbaptista/package-search/index"
	"github.com/gcbaptista/package-search/internal/source"
	"github.com/gcbaptista/package-search/model"
)

// SortOrder selects how package hits are ranked.
type SortOrder string

const (
	OrderText        SortOrder = "text"        // Relevance by query term overlap
	OrderPopularity  SortOrder = "popularity"  // PackageDocument.Popularity, descending
	OrderHealth      SortOrder = "health"      // PackageDocument.Health, descending
	OrderMaintenance SortOrder = "maintenance" // PackageDocument.Maintenance, descending
	OrderCreated     SortOrder = "created"     // Newest first
	OrderUpdated     SortOrder = "updated"     // Most recently updated first
)

// SortOrders lists every supported order in documentation order.
var SortOrders = []SortOrder{OrderText, OrderPopularity, OrderHealth, OrderMaintenance, OrderCreated, OrderUpdated}

// ServiceSearchQuery is a parsed, normalized query ready for the ranker.
type ServiceSearchQuery struct {
	Terms               []string  `json:"terms"` // Distinct normalized query terms
	Order               SortOrder `json:"order"`
	Offset              int       `json:"offset"` // Always >= 0
	Limit               int       `json:"limit"`  // Always > 0
	Tags                []string  `json:"tags,omitempty"`
	IncludeDiscontinued bool      `json:"include_discontinued,omitempty"`
}

// HasTerms reports whether the query carries free text.
func (q ServiceSearchQuery) HasTerms() bool {
	return len(q.Terms) > 0
}

// PackageHit is one ranked package in a result page.
type PackageHit struct {
	Package string  `json:"package"`
	Score   float64 `json:"score"`
}

// SdkLibraryHit is one SDK library matched by the query text.
type SdkLibraryHit struct {
	Library string  `json:"library"`
	Score   float64 `json:"score"`
}

// PackageSearchResult is the ranked response for a query.
type PackageSearchResult struct {
	Timestamp      time.Time       `json:"timestamp"`      // Build time of the snapshot that answered the query
	TotalCount     int             `json:"totalCount"`     // Qualifying packages before pagination
	SdkLibraryHits []SdkLibraryHit `json:"sdkLibraryHits"` // Never nil, not paginated
	PackageHits    []PackageHit    `json:"packageHits"`    // The requested page; never nil
}

// PackageIndexer defines operations for changing the package corpus
type PackageIndexer interface {
	AddPackage(doc model.PackageDocument) error
	AddPackages(docs []model.PackageDocument) error
	DeletePackage(name string) error
	GetPackage(name string) (model.PackageDocument, error)
}

// Searcher defines operations for querying the published index
type Searcher interface {
	Search(ctx context.Context, query ServiceSearchQuery) (PackageSearchResult, error)
}

// IndexLifecycle manages snapshot publication
type IndexLifecycle interface {
	MarkReady(ctx context.Context) error
	Rebuild(ctx context.Context) (*index.Snapshot, error)
	RebuildAsync(trigger string) (string, error) // Returns job ID
	Ready() bool
	Stats() (index.Stats, error)
}

// SourceRefresher reloads the corpus from an external source in the background
type SourceRefresher interface {
	RefreshAsync(src source.Source, trigger string) (string, error) // Returns job ID
}

// SettingsManager reads and replaces the live search settings
type SettingsManager interface {
	Settings() config.SearchSettings
	UpdateSettings(settings config.SearchSettings) error
}

// JobManager defines operations for inspecting background jobs
type JobManager interface {
	GetJob(jobID string) (*model.Job, error)
	ListJobs(status *model.JobStatus) []*model.Job
}

// PackageSearchEngine is everything the HTTP layer needs from the engine.
type PackageSearchEngine interface {
	PackageIndexer
	Searcher
	IndexLifecycle
	SourceRefresher
	SettingsManager
	JobManager
}
