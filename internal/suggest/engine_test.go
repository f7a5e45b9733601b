package suggest

import (
	"context"
	"sync"
	"testing"
	"time"

	"utilisoft/backend/internal/domain"
	"utilisoft/backend/internal/store/memory"
)

// memoryCache is an in-process SuggestionCache for tests.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]domain.Product
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]domain.Product{}}
}

func (c *memoryCache) GetSuggestions(_ context.Context, key string) ([]domain.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memoryCache) SetSuggestions(_ context.Context, key string, value []domain.Product, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memoryCache) InvalidateSuggestions(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string][]domain.Product{}
	return nil
}

// countingCatalog counts catalog round trips.
type countingCatalog struct {
	*memory.Store
	calls int
}

func (c *countingCatalog) SuggestProducts(ctx context.Context, text string, limit int) ([]domain.Product, error) {
	c.calls++
	return c.Store.SuggestProducts(ctx, text, limit)
}

func TestSuggestUsesCacheUntilInvalidated(t *testing.T) {
	catalog := &countingCatalog{Store: memory.NewSeeded()}
	engine := NewEngine(catalog, newMemoryCache(), time.Minute)
	ctx := context.Background()

	first, err := engine.Suggest(ctx, "  Tea ")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if len(first) != 1 || first[0].Name != "Green Tea 100 bags" {
		t.Fatalf("unexpected suggestions: %+v", first)
	}

	if _, err := engine.Suggest(ctx, "tea"); err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if catalog.calls != 1 {
		t.Fatalf("expected cached second lookup, got %d catalog calls", catalog.calls)
	}

	engine.Invalidate(ctx)
	if _, err := engine.Suggest(ctx, "tea"); err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if catalog.calls != 2 {
		t.Fatalf("expected catalog hit after invalidation, got %d calls", catalog.calls)
	}
}

func TestSuggestBlankInput(t *testing.T) {
	catalog := &countingCatalog{Store: memory.NewSeeded()}
	engine := NewEngine(catalog, nil, 0)

	got, err := engine.Suggest(context.Background(), "   ")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if len(got) != 0 || catalog.calls != 0 {
		t.Fatalf("expected no lookup for blank input, got %v after %d calls", got, catalog.calls)
	}
}

func TestSuggestSkipsOutOfStockAndCaps(t *testing.T) {
	engine := NewEngine(memory.NewSeeded(), nil, 0)

	got, err := engine.Suggest(context.Background(), "laundry")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected out-of-stock product to be hidden, got %+v", got)
	}

	all, err := engine.Suggest(context.Background(), "e")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if len(all) > defaultLimit {
		t.Fatalf("expected at most %d suggestions, got %d", defaultLimit, len(all))
	}
}
