package cache

import (
	"context"
	"time"

	"utilisoft/backend/internal/domain"
)

type StatsCache interface {
	GetStats(ctx context.Context) (*domain.DashboardStats, bool, error)
	SetStats(ctx context.Context, value *domain.DashboardStats, ttl time.Duration) error
	InvalidateStats(ctx context.Context) error
}

// SuggestionCache stores suggestion lists by query key. Invalidation drops
// every key at once.
type SuggestionCache interface {
	GetSuggestions(ctx context.Context, key string) ([]domain.Product, bool, error)
	SetSuggestions(ctx context.Context, key string, value []domain.Product, ttl time.Duration) error
	InvalidateSuggestions(ctx context.Context) error
}

type Noop struct{}

func (Noop) GetStats(_ context.Context) (*domain.DashboardStats, bool, error) {
	return nil, false, nil
}

func (Noop) SetStats(_ context.Context, _ *domain.DashboardStats, _ time.Duration) error {
	return nil
}

func (Noop) InvalidateStats(_ context.Context) error {
	return nil
}

func (Noop) GetSuggestions(_ context.Context, _ string) ([]domain.Product, bool, error) {
	return nil, false, nil
}

func (Noop) SetSuggestions(_ context.Context, _ string, _ []domain.Product, _ time.Duration) error {
	return nil
}

func (Noop) InvalidateSuggestions(_ context.Context) error {
	return nil
}
