package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"switchdesk/internal/common/cache"
	"switchdesk/internal/problem/model"
	"switchdesk/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultLookupTTL      = 10 * time.Minute
	defaultLookupEmptyTTL = time.Minute
	defaultLocalTTL       = 30 * time.Second
	defaultLocalSize      = 512

	listingGenerationKey = "problems:listing:gen"
	listingKeyPrefix     = "problems:listing:"
)

// LookupConfig tunes the listing cache.
type LookupConfig struct {
	TTL       time.Duration `yaml:"ttl"`
	EmptyTTL  time.Duration `yaml:"emptyTTL"`
	LocalTTL  time.Duration `yaml:"localTTL"`
	LocalSize int           `yaml:"localSize"`
}

func (c *LookupConfig) applyDefaults() {
	if c.TTL <= 0 {
		c.TTL = defaultLookupTTL
	}
	if c.EmptyTTL <= 0 {
		c.EmptyTTL = defaultLookupEmptyTTL
	}
	if c.LocalTTL <= 0 {
		c.LocalTTL = defaultLocalTTL
	}
	if c.LocalSize <= 0 {
		c.LocalSize = defaultLocalSize
	}
}

// Lookups serves the selector lists and chart series.
type Lookups interface {
	Operators(ctx context.Context) ([]string, error)
	Commutators(ctx context.Context, operator string) ([]string, error)
	Aggregates(ctx context.Context) (model.Aggregates, error)
	// Invalidate drops every cached listing and returns the new generation.
	Invalidate(ctx context.Context) (int64, error)
	// PurgeLocal drops the in-process tier only.
	PurgeLocal()
}

// CachedLookups reads through an in-process LRU, then Redis, then the
// store. Every Redis key carries the listing generation, so bumping the
// generation invalidates all listings at once.
type CachedLookups struct {
	repo  ProblemRepository
	cache cache.Cache
	cfg   LookupConfig

	lists *cache.LRU[[]string]
	aggs  *cache.LRU[model.Aggregates]
}

// NewCachedLookups builds the lookup layer. cacheClient may be nil, in
// which case every call goes to the store.
func NewCachedLookups(repo ProblemRepository, cacheClient cache.Cache, cfg LookupConfig) *CachedLookups {
	cfg.applyDefaults()
	return &CachedLookups{
		repo:  repo,
		cache: cacheClient,
		cfg:   cfg,
		lists: cache.NewLRU[[]string](cfg.LocalSize, cfg.LocalTTL),
		aggs:  cache.NewLRU[model.Aggregates](cfg.LocalSize, cfg.LocalTTL),
	}
}

func (l *CachedLookups) Operators(ctx context.Context) ([]string, error) {
	return l.cachedList(ctx, "operators", func(ctx context.Context) ([]string, error) {
		return l.repo.SelectDistinct(ctx, "operator", nil)
	})
}

func (l *CachedLookups) Commutators(ctx context.Context, operator string) ([]string, error) {
	return l.cachedList(ctx, "commutators:"+operator, func(ctx context.Context) ([]string, error) {
		return l.repo.SelectDistinct(ctx, "commutator", map[string]string{"operator": operator})
	})
}

func (l *CachedLookups) Aggregates(ctx context.Context) (model.Aggregates, error) {
	if l.cache == nil {
		return l.loadAggregates(ctx)
	}
	key, ok := l.key(ctx, "aggregates")
	if !ok {
		return l.loadAggregates(ctx)
	}
	if aggs, hit := l.aggs.Get(key); hit {
		return aggs, nil
	}
	aggs, err := cache.GetJSONWithCached(ctx, l.cache, key,
		cache.JitterTTL(l.cfg.TTL), cache.JitterTTL(l.cfg.EmptyTTL),
		func(a model.Aggregates) bool { return len(a.Operator) == 0 && len(a.Commutator) == 0 },
		l.loadAggregates,
	)
	if err != nil {
		return model.EmptyAggregates(), err
	}
	if aggs.Operator == nil {
		aggs.Operator = []model.GroupCount{}
	}
	if aggs.Commutator == nil {
		aggs.Commutator = []model.GroupCount{}
	}
	l.aggs.Set(key, aggs)
	return aggs, nil
}

func (l *CachedLookups) Invalidate(ctx context.Context) (int64, error) {
	l.PurgeLocal()
	if l.cache == nil {
		return 0, nil
	}
	gen, err := l.cache.Incr(ctx, listingGenerationKey)
	if err != nil {
		return 0, fmt.Errorf("bump listing generation: %w", err)
	}
	return gen, nil
}

func (l *CachedLookups) PurgeLocal() {
	l.lists.Purge()
	l.aggs.Purge()
}

// loadAggregates reads both series concurrently.
func (l *CachedLookups) loadAggregates(ctx context.Context) (model.Aggregates, error) {
	var aggs model.Aggregates
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		groups, err := l.repo.GroupByCount(gctx, "operator")
		aggs.Operator = groups
		return err
	})
	g.Go(func() error {
		groups, err := l.repo.GroupByCount(gctx, "commutator")
		aggs.Commutator = groups
		return err
	})
	if err := g.Wait(); err != nil {
		return model.EmptyAggregates(), err
	}
	return aggs, nil
}

func (l *CachedLookups) cachedList(ctx context.Context, name string, load func(context.Context) ([]string, error)) ([]string, error) {
	if l.cache == nil {
		return load(ctx)
	}
	key, ok := l.key(ctx, name)
	if !ok {
		return load(ctx)
	}
	if values, hit := l.lists.Get(key); hit {
		return values, nil
	}
	values, err := cache.GetJSONWithCached(ctx, l.cache, key,
		cache.JitterTTL(l.cfg.TTL), cache.JitterTTL(l.cfg.EmptyTTL),
		func(v []string) bool { return len(v) == 0 },
		load,
	)
	if err != nil {
		return []string{}, err
	}
	if values == nil {
		values = []string{}
	}
	l.lists.Set(key, values)
	return values, nil
}

// key prefixes name with the current generation. ok is false when Redis is
// unreachable; callers then bypass both tiers.
func (l *CachedLookups) key(ctx context.Context, name string) (string, bool) {
	raw, err := l.cache.Get(ctx, listingGenerationKey)
	if err != nil {
		logger.Warn(ctx, "listing cache unavailable", zap.Error(err))
		return "", false
	}
	gen := int64(0)
	if raw != "" {
		if gen, err = strconv.ParseInt(raw, 10, 64); err != nil {
			logger.Warn(ctx, "listing generation corrupt", zap.String("value", raw))
			return "", false
		}
	}
	return listingKeyPrefix + strconv.FormatInt(gen, 10) + ":" + name, true
}
