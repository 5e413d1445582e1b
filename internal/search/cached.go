package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	redispkg "github.com/swen/dms/pkg/redis"
)

const queryCacheTTL = 30 * time.Second

// CachedIndex decorates an Index with a short-lived Redis query cache.
// Writes invalidate every cached query; a cache outage falls through to the
// inner index. Results can be stale for at most the cache TTL when another
// process writes without sharing this cache.
type CachedIndex struct {
	inner  Index
	cache  *redispkg.Client
	logger *slog.Logger
}

// NewCachedIndex wraps inner with a query cache backed by cache.
func NewCachedIndex(inner Index, cache *redispkg.Client) *CachedIndex {
	return &CachedIndex{
		inner:  inner,
		cache:  cache,
		logger: slog.Default().With("component", "search-cache"),
	}
}

func queryKey(query string) string {
	return fmt.Sprintf("%s:query:%s", IndexName, query)
}

// Upsert writes through to the inner index and invalidates cached queries.
func (c *CachedIndex) Upsert(ctx context.Context, rec Record) error {
	if err := c.inner.Upsert(ctx, rec); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// QueryFuzzy serves from the cache when possible and falls back to the inner
// index otherwise.
func (c *CachedIndex) QueryFuzzy(ctx context.Context, query string) ([]Record, error) {
	key := queryKey(query)
	if cached, err := c.cache.Get(ctx, key); err == nil {
		var results []Record
		if err := json.Unmarshal([]byte(cached), &results); err == nil {
			return results, nil
		}
		c.logger.Warn("dropping corrupt cache entry", "key", key)
		_ = c.cache.Del(ctx, key)
	} else if !redispkg.IsNilError(err) {
		c.logger.Warn("query cache read failed, querying index directly", "error", err)
	}

	results, err := c.inner.QueryFuzzy(ctx, query)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(results); err == nil {
		if err := c.cache.Set(ctx, key, payload, queryCacheTTL); err != nil {
			c.logger.Warn("query cache write failed", "error", err)
		}
	}
	return results, nil
}

// Delete removes the record from the inner index and invalidates cached
// queries.
func (c *CachedIndex) Delete(ctx context.Context, id string) error {
	if err := c.inner.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *CachedIndex) invalidate(ctx context.Context) {
	if _, err := c.cache.FlushByPattern(ctx, queryKey("*")); err != nil {
		c.logger.Warn("query cache invalidation failed", "error", err)
	}
}
