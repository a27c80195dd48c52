package course

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"coursehub.org/internal/kv"
	"coursehub.org/internal/obs"
)

const (
	// AllKey caches the full course list.
	AllKey = "courses:all"
	// AllGenKey counts invalidations of the course list.
	AllGenKey = "courses:all:gen"

	defaultCacheTTL = time.Hour
)

// Key returns the cache key of a single course.
func Key(courseID string) string {
	return "course:" + courseID
}

// GenKey returns the invalidation counter of a single course. A cache fill
// only lands when the counter is unchanged since before its repository read.
func GenKey(courseID string) string {
	return "course-gen:" + courseID
}

var _ Invalidator = (*Catalog)(nil)

// Catalog is a read-through cache in front of the repository. Cache failures
// on the read path fall back to the repository; failures to invalidate are
// reported to the writer.
type Catalog struct {
	repo    Repository
	cache   kv.Store
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

func WithCacheTTL(d time.Duration) CatalogOption {
	return func(c *Catalog) {
		if d > 0 {
			c.ttl = d
		}
	}
}

func WithCacheTimeout(d time.Duration) CatalogOption {
	return func(c *Catalog) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithCatalogLogger(l *zap.Logger) CatalogOption {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCatalog builds a catalog reading through cache into repo.
func NewCatalog(repo Repository, cache kv.Store, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		repo:    repo,
		cache:   cache,
		ttl:     defaultCacheTTL,
		timeout: defaultStoreTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns one course, from cache when present.
func (c *Catalog) Get(ctx context.Context, courseID string) (*Course, error) {
	var cached Course
	if c.lookup(ctx, "course", Key(courseID), &cached) {
		return &cached, nil
	}
	gen, genOK := c.generation(ctx, GenKey(courseID))

	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	course, err := c.repo.FindByID(rctx, courseID)
	if err != nil {
		if errors.Is(err, ErrAggregateNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load %s: %v", ErrStoreUnavailable, courseID, err)
	}
	if genOK {
		c.populate(ctx, GenKey(courseID), gen, Key(courseID), course)
	}
	return course, nil
}

// All returns every course in creation order, from cache when present.
func (c *Catalog) All(ctx context.Context) ([]*Course, error) {
	var cached []*Course
	if c.lookup(ctx, "all", AllKey, &cached) {
		return cached, nil
	}
	gen, genOK := c.generation(ctx, AllGenKey)

	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	courses, err := c.repo.Find(rctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrStoreUnavailable, err)
	}
	if genOK {
		c.populate(ctx, AllGenKey, gen, AllKey, courses)
	}
	return courses, nil
}

// Invalidate removes the course entry and the list entry and advances both
// counters, so fills that read the repository earlier are dropped.
func (c *Catalog) Invalidate(ctx context.Context, courseID string) error {
	return c.cache.Bump(ctx, []string{GenKey(courseID), AllGenKey}, Key(courseID), AllKey)
}

func (c *Catalog) generation(ctx context.Context, counter string) (int64, bool) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	gen, err := c.cache.Generation(cctx, counter)
	if err != nil {
		c.logger.Warn("catalog cache generation read failed", zap.String("key", counter), zap.Error(err))
		return 0, false
	}
	return gen, true
}

func (c *Catalog) lookup(ctx context.Context, kind, key string, dst any) bool {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	raw, err := c.cache.Get(cctx, key)
	switch {
	case err == nil:
	case errors.Is(err, kv.ErrNotFound):
		obs.CacheLookup(kind, "miss")
		return false
	default:
		obs.CacheLookup(kind, "error")
		c.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		obs.CacheLookup(kind, "error")
		c.logger.Warn("catalog cache entry unreadable", zap.String("key", key), zap.Error(err))
		return false
	}
	obs.CacheLookup(kind, "hit")
	return true
}

func (c *Catalog) populate(ctx context.Context, counter string, gen int64, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("catalog cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ok, err := c.cache.SetIfGeneration(cctx, counter, gen, key, raw, c.ttl)
	switch {
	case err != nil:
		c.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	case !ok:
		c.logger.Debug("catalog cache fill dropped after invalidation", zap.String("key", key))
	}
}
