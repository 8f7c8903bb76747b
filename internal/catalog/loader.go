package catalog

import (
	"context"
	"log/slog"

	"github.com/star/orbtrack/internal/metrics"
)

// Source fetches element sets for an identifier. *Fetcher implements it.
type Source interface {
	Fetch(ctx context.Context, id Identifier) ([]ElementSet, error)
}

// Loader resolves a group's element sets from the disk cache, falling back
// to the network and refreshing the cache on success.
type Loader struct {
	cache      *Cache
	source     Source
	allowStale bool
	logger     *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithStaleFallback makes Load return an expired cache record when the
// network fetch fails.
func WithStaleFallback(allow bool) LoaderOption {
	return func(l *Loader) { l.allowStale = allow }
}

// NewLoader creates a Loader over cache and source.
func NewLoader(cache *Cache, source Source, logger *slog.Logger, opts ...LoaderOption) *Loader {
	l := &Loader{
		cache:  cache,
		source: source,
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Cache returns the underlying disk cache.
func (l *Loader) Cache() *Cache { return l.cache }

// Cached returns g's record when a fresh one is on disk. It never touches
// the network.
func (l *Loader) Cached(g Group) ([]ElementSet, bool) {
	sets, ok := l.cache.Fresh(g.Label)
	if ok {
		metrics.IncCacheLookup("hit")
		return sets, true
	}
	metrics.IncCacheLookup("miss")
	return nil, false
}

// Load returns g's element sets: the fresh cache record if one exists,
// otherwise the catalog's answer, which is then written back to the cache.
// A failed cache write is logged and does not fail the load.
func (l *Loader) Load(ctx context.Context, g Group) ([]ElementSet, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if sets, ok := l.Cached(g); ok {
		return sets, nil
	}

	sets, err := l.source.Fetch(ctx, g.Identifier)
	if err != nil {
		if l.allowStale && ctx.Err() == nil {
			if stale, mod, rerr := l.cache.Read(g.Label); rerr == nil {
				metrics.IncCacheLookup("stale")
				l.logger.Warn("catalog fetch failed, using stale cache",
					"group", g.Label,
					"cached_at", mod.UTC(),
					"error", err,
				)
				return stale, nil
			}
		}
		return nil, err
	}

	if werr := l.cache.Write(g.Label, sets); werr != nil {
		l.logger.Warn("cache write failed", "group", g.Label, "error", werr)
	}
	return sets, nil
}
