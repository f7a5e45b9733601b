// Package suggest produces the product suggestions shown under the search
// box while the operator types.
package suggest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"utilisoft/backend/internal/cache"
	"utilisoft/backend/internal/domain"
	"utilisoft/backend/internal/logger"
)

const defaultLimit = 10

type Catalog interface {
	SuggestProducts(ctx context.Context, text string, limit int) ([]domain.Product, error)
}

type Engine struct {
	catalog  Catalog
	cache    cache.SuggestionCache
	cacheTTL time.Duration
	limit    int
}

func NewEngine(catalog Catalog, cacheStore cache.SuggestionCache, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.Noop{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}

	return &Engine{
		catalog:  catalog,
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		limit:    defaultLimit,
	}
}

// Suggest returns up to ten in-stock products whose name contains text.
// Blank input yields no suggestions. Cache failures are logged and fall
// through to the catalog.
func (e *Engine) Suggest(ctx context.Context, text string) ([]domain.Product, error) {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	if normalized == "" {
		return []domain.Product{}, nil
	}

	key := buildCacheKey(normalized, e.limit)
	cached, ok, err := e.cache.GetSuggestions(ctx, key)
	if err != nil {
		logger.Warn(ctx).Err(err).Msg("suggestion cache read failed")
	}
	if ok {
		return cached, nil
	}

	products, err := e.catalog.SuggestProducts(ctx, normalized, e.limit)
	if err != nil {
		return nil, err
	}
	if err := e.cache.SetSuggestions(ctx, key, products, e.cacheTTL); err != nil {
		logger.Warn(ctx).Err(err).Msg("suggestion cache write failed")
	}
	return products, nil
}

// Invalidate drops cached suggestions, typically after stock changed.
func (e *Engine) Invalidate(ctx context.Context) {
	if err := e.cache.InvalidateSuggestions(ctx); err != nil {
		logger.Warn(ctx).Err(err).Msg("suggestion cache invalidation failed")
	}
}

func buildCacheKey(text string, limit int) string {
	sum := sha1.Sum([]byte(text + "|" + strconv.Itoa(limit)))
	return hex.EncodeToString(sum[:])
}
