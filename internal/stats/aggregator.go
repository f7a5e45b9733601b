// Package stats builds the dashboard rollups.
package stats

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"utilisoft/backend/internal/cache"
	"utilisoft/backend/internal/domain"
	"utilisoft/backend/internal/logger"
)

type Source interface {
	LedgerStats(ctx context.Context) (domain.LedgerStats, error)
	CatalogStats(ctx context.Context) (domain.CatalogStats, error)
	DebtorStats(ctx context.Context) (domain.AmountStats, error)
	VendorStats(ctx context.Context) (domain.AmountStats, error)
	WorkerStats(ctx context.Context) (domain.AmountStats, error)
}

type Aggregator struct {
	source   Source
	cache    cache.StatsCache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewAggregator(source Source, statsCache cache.StatsCache, cacheTTL time.Duration) *Aggregator {
	if statsCache == nil {
		statsCache = cache.Noop{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Second
	}
	return &Aggregator{
		source:   source,
		cache:    statsCache,
		cacheTTL: cacheTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Aggregate returns the five rollups, fetched concurrently. A cached result
// is served while it is fresh.
func (a *Aggregator) Aggregate(ctx context.Context) (domain.DashboardStats, error) {
	if cached, ok, err := a.cache.GetStats(ctx); err != nil {
		logger.Warn(ctx).Err(err).Msg("stats cache read failed")
	} else if ok {
		return *cached, nil
	}

	var out domain.DashboardStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Sales, err = a.source.LedgerStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Products, err = a.source.CatalogStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Debtors, err = a.source.DebtorStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Vendors, err = a.source.VendorStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Workers, err = a.source.WorkerStats(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.DashboardStats{}, err
	}
	out.GeneratedAt = a.now()

	if err := a.cache.SetStats(ctx, &out, a.cacheTTL); err != nil {
		logger.Warn(ctx).Err(err).Msg("stats cache write failed")
	}
	return out, nil
}

// Invalidate drops the cached rollup so the next read sees fresh totals.
func (a *Aggregator) Invalidate(ctx context.Context) {
	if err := a.cache.InvalidateStats(ctx); err != nil {
		logger.Warn(ctx).Err(err).Msg("stats cache invalidation failed")
	}
}
