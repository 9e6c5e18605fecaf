package evidence

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ppiankov/veritas/internal/cache"
	"github.com/ppiankov/veritas/internal/model"
)

// Cached memoizes a source's successful retrievals. Errors are never cached.
type Cached struct {
	source Source
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCached wraps source with c. A zero ttl uses the cache default.
func NewCached(source Source, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{source: source, cache: c, ttl: ttl, logger: logger}
}

// Name returns the wrapped source name
func (c *Cached) Name() string { return c.source.Name() }

// Retrieve serves from cache or delegates and stores the result
func (c *Cached) Retrieve(ctx context.Context, claim string, opts Options) ([]model.Evidence, error) {
	key := cache.EvidenceKey(c.source.Name(), claim, opts.Depth)

	if data, ok := c.cache.Get(key); ok {
		var items []model.Evidence
		if err := json.Unmarshal(data, &items); err == nil {
			return items, nil
		}
		c.logger.Warn("dropping undecodable cache entry", "source", c.source.Name())
		_ = c.cache.Delete(key)
	}

	items, err := c.source.Retrieve(ctx, claim, opts)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(items); err == nil {
		if err := c.cache.Set(key, data, c.ttl); err != nil {
			c.logger.Warn("evidence cache write failed", "source", c.source.Name(), "error", err)
		}
	}
	return items, nil
}
