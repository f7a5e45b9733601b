package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"utilisoft/backend/internal/domain"
)

const (
	statsKey            = "utilisoft:stats:dashboard"
	suggestionGenKey    = "utilisoft:suggest:gen"
	suggestionKeyPrefix = "utilisoft:suggest"
	claimKeyPrefix      = "utilisoft:claim"
)

// Redis backs the stats and suggestion caches and the checkout idempotency
// guard with one client.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr string, password string, db int) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &Redis{client: client}
}

func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Redis) Close() error {
	return c.client.Close()
}

func (c *Redis) GetStats(ctx context.Context) (*domain.DashboardStats, bool, error) {
	var stats domain.DashboardStats
	ok, err := c.getJSON(ctx, statsKey, &stats)
	if !ok || err != nil {
		return nil, false, err
	}
	return &stats, true, nil
}

func (c *Redis) SetStats(ctx context.Context, value *domain.DashboardStats, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	return c.setJSON(ctx, statsKey, value, ttl)
}

func (c *Redis) InvalidateStats(ctx context.Context) error {
	return c.client.Del(ctx, statsKey).Err()
}

func (c *Redis) GetSuggestions(ctx context.Context, key string) ([]domain.Product, bool, error) {
	fullKey, err := c.suggestionKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	var products []domain.Product
	ok, err := c.getJSON(ctx, fullKey, &products)
	if !ok || err != nil {
		return nil, false, err
	}
	return products, true, nil
}

func (c *Redis) SetSuggestions(ctx context.Context, key string, value []domain.Product, ttl time.Duration) error {
	fullKey, err := c.suggestionKey(ctx, key)
	if err != nil {
		return err
	}
	return c.setJSON(ctx, fullKey, value, ttl)
}

// InvalidateSuggestions bumps the generation counter; entries written under
// older generations are never read again and age out through their TTL.
func (c *Redis) InvalidateSuggestions(ctx context.Context) error {
	return c.client.Incr(ctx, suggestionGenKey).Err()
}

func (c *Redis) suggestionKey(ctx context.Context, key string) (string, error) {
	gen, err := c.client.Get(ctx, suggestionGenKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("%s:%d:%s", suggestionKeyPrefix, gen, key), nil
}

// Claim implements the checkout idempotency guard with SET NX.
func (c *Redis) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, claimKeyPrefix+":"+key, time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
}

func (c *Redis) Release(ctx context.Context, key string) error {
	return c.client.Del(ctx, claimKeyPrefix+":"+key).Err()
}

func (c *Redis) getJSON(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Redis) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}
