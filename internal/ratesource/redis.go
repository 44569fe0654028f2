package ratesource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const rateKeyPrefix = "smsmargin:rate:"

// DefaultRateTTL bounds how stale a cached wholesale rate may get
// before the next source is consulted again.
const DefaultRateTTL = 24 * time.Hour

// RedisCache caches wholesale rates in Redis with a TTL, delegating
// misses to the next source in the chain. Cache write failures are
// ignored: a rate from the fallback chain is always preferred over a
// failed quote.
type RedisCache struct {
	client *redis.Client
	next   Source
	ttl    time.Duration
}

// NewRedisCache wraps next with a Redis rate cache.
func NewRedisCache(client *redis.Client, next Source, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultRateTTL
	}
	return &RedisCache{client: client, next: next, ttl: ttl}
}

// UnitCost returns the cached rate for the country, falling through to
// the next source on a miss or a cache error.
func (c *RedisCache) UnitCost(ctx context.Context, countryCode string) (decimal.Decimal, error) {
	key := rateKey(countryCode)
	if raw, err := c.client.Get(ctx, key).Result(); err == nil {
		if rate, perr := decimal.NewFromString(raw); perr == nil {
			return rate, nil
		}
	}

	rate, err := c.next.UnitCost(ctx, countryCode)
	if err != nil {
		return decimal.Zero, err
	}
	c.client.Set(ctx, key, rate.String(), c.ttl)
	return rate, nil
}

// Put stores a refreshed rate, used by the rates-update command.
func (c *RedisCache) Put(ctx context.Context, countryCode string, rate decimal.Decimal) error {
	if err := c.client.Set(ctx, rateKey(countryCode), rate.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache rate for %s: %w", countryCode, err)
	}
	return nil
}

func rateKey(countryCode string) string {
	return rateKeyPrefix + strings.ToUpper(countryCode)
}
