package engine

import (
	"context"
	"time"

	"github.com/gcbaptista/package-search/internal/cache"
	"github.com/gcbaptista/package-search/internal/errors"
	"github.com/gcbaptista/package-search/internal/search"
	"github.com/gcbaptista/package-search/services"
)

// Search answers a parsed query against the published snapshot.
// The snapshot is loaded once, so a rebuild finishing mid-query does not
// affect the answer. Before the first publication it returns ErrNotReady.
func (e *Engine) Search(ctx context.Context, q services.ServiceSearchQuery) (services.PackageSearchResult, error) {
	start := time.Now()

	snapshot := e.current.Load()
	if snapshot == nil {
		e.observeSearch("not_ready", "none", start, 0)
		return services.PackageSearchResult{}, errors.NewNotReadyError(e.createdAt)
	}

	var (
		result      services.PackageSearchResult
		cacheStatus = "none"
	)
	if e.cache == nil {
		result = search.Search(snapshot, q)
	} else {
		cached, hit, err := e.cache.GetOrCompute(ctx, cache.IDOf(snapshot), q, func() (services.PackageSearchResult, error) {
			return search.Search(snapshot, q), nil
		})
		if err != nil {
			e.observeSearch("error", "miss", start, 0)
			return services.PackageSearchResult{}, err
		}
		result = cached
		cacheStatus = "miss"
		if hit {
			cacheStatus = "hit"
		}
		e.observeCache(hit)
	}

	kind := "hit"
	if result.TotalCount == 0 {
		kind = "zero_result"
	}
	e.observeSearch(kind, cacheStatus, start, result.TotalCount)
	e.logger.Debug("search served",
		"terms", len(q.Terms),
		"order", q.Order,
		"total", result.TotalCount,
		"cache", cacheStatus)
	return result, nil
}

func (e *Engine) observeCache(hit bool) {
	if e.metrics == nil {
		return
	}
	if hit {
		e.metrics.CacheHitsTotal.Inc()
	} else {
		e.metrics.CacheMissesTotal.Inc()
	}
}

func (e *Engine) observeSearch(kind, cacheStatus string, start time.Time, total int) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(kind).Inc()
	e.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	if kind == "hit" || kind == "zero_result" {
		e.metrics.SearchResultsCount.Observe(float64(total))
	}
}
