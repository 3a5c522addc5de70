// Package cache memoizes search results in an external key-value store.
//
// Keys include the identity of the snapshot that produced the result (build
// time, store version and settings generation), so publishing a new snapshot
// makes every older entry unreachable without an explicit flush. Entries then
// simply expire by TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gcbaptista/package-search/index"
	"github.com/gcbaptista/package-search/internal/logger"
	"github.com/gcbaptista/package-search/services"
)

const keyPrefix = "pkgsearch:"

// ErrMiss is returned by a Store when a key is absent.
var ErrMiss = errors.New("cache miss")

// Store is the key-value backend of the cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// QueryCache caches PackageSearchResults and collapses concurrent misses for
// the same key into a single computation.
type QueryCache struct {
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a QueryCache on top of store.
func New(store Store, ttl time.Duration, log *slog.Logger) *QueryCache {
	if log == nil {
		log = logger.Discard()
	}
	return &QueryCache{
		store:  store,
		ttl:    ttl,
		logger: log.With("component", "query-cache"),
	}
}

// Get looks up a cached result. Backend and decoding failures count as misses.
func (c *QueryCache) Get(ctx context.Context, key string) (services.PackageSearchResult, bool) {
	var result services.PackageSearchResult

	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return result, false
	}
	c.hits.Add(1)
	return result, true
}

// Set stores a result. Failures are logged and otherwise ignored.
func (c *QueryCache) Set(ctx context.Context, key string, result services.PackageSearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// SnapshotID identifies the snapshot a cached result was computed from.
type SnapshotID struct {
	BuiltAt            time.Time
	Version            uint64
	SettingsGeneration uint64
}

// IDOf returns the cache identity of snapshot.
func IDOf(snapshot *index.Snapshot) SnapshotID {
	return SnapshotID{
		BuiltAt:            snapshot.BuiltAt,
		Version:            snapshot.Version,
		SettingsGeneration: snapshot.SettingsGeneration,
	}
}

// GetOrCompute returns the cached result for the query against the snapshot
// identified by id, computing and storing it on a miss. The boolean reports a hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	id SnapshotID,
	query services.ServiceSearchQuery,
	compute func() (services.PackageSearchResult, error),
) (services.PackageSearchResult, bool, error) {
	key := BuildKey(id, query)
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}

	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return services.PackageSearchResult{}, false, err
	}
	return val.(services.PackageSearchResult), false, nil
}

// Invalidate removes every entry written by this cache.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.DeletePrefix(ctx, keyPrefix)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns the hit and miss counters.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BuildKey derives the cache key for a query against a snapshot.
// Queries that parse to the same terms, order, page and filters share a key.
func BuildKey(id SnapshotID, query services.ServiceSearchQuery) string {
	raw := fmt.Sprintf("%d|%d|%d|%s|%s|%d|%d|%s|%t",
		id.BuiltAt.UnixNano(),
		id.Version,
		id.SettingsGeneration,
		strings.Join(query.Terms, ","),
		query.Order,
		query.Offset,
		query.Limit,
		strings.Join(query.Tags, ","),
		query.IncludeDiscontinued,
	)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
