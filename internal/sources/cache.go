package sources

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/foresight-intel/foresight/internal/models"
)

// DefaultCacheSize bounds the per-adapter result cache. Sessions rarely
// touch more than a handful of companies, so a small cache is plenty.
const DefaultCacheSize = 128

// Cached decorates an adapter with an LRU of successful fetches. Only Ok
// and Empty results are cached; degraded fetches are retried on the next
// call so a transient outage does not stick for the cache lifetime.
type Cached struct {
	inner Adapter
	cache *lru.Cache[string, *models.SourceResult]
}

func NewCached(inner Adapter, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *models.SourceResult](size)
	if err != nil {
		return nil, fmt.Errorf("creating %s result cache: %w", inner.Kind(), err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Kind() models.SourceKind { return c.inner.Kind() }

func (c *Cached) Fetch(ctx context.Context, company string, params Params) *models.SourceResult {
	key := fmt.Sprintf("%s|%d", company, params.Limit)
	if result, ok := c.cache.Get(key); ok {
		return result
	}
	result := c.inner.Fetch(ctx, company, params)
	if result.Status == models.StatusOk || result.Status == models.StatusEmpty {
		c.cache.Add(key, result)
	}
	return result
}

// Purge drops all cached results. Used when company aliases are reloaded.
func (c *Cached) Purge() { c.cache.Purge() }
