package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/live-vibe/internal/logging"
	"github.com/live-vibe/internal/metrics"
)

// CacheService keeps JSON copies of read-mostly rows, such as the seeded
// plan catalogue, in Redis.
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// Key groups
const (
	keyGroupPlans = "plans"
	keyGroupPlan  = "plan"
)

// PlansKey is the key of the active plan list for a plan type ("" for all)
func PlansKey(planType string) string {
	if planType == "" {
		planType = "all"
	}
	return keyGroupPlans + ":" + strings.ToLower(planType)
}

// PlanKey is the key of a single plan
func PlanKey(id string) string {
	return keyGroupPlan + ":" + strings.ToLower(id)
}

// Set stores value under key. A zero ttl uses the service default.
func (c *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.redis.Set(ctx, key, data, ttl)
}

// Get decodes the value under key into dest. A missing key is a miss, not an error.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// Invalidate removes keys
func (c *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...)
}

// Remember returns the cached value under key, or calls load and caches its
// result for ttl. Cache failures are logged and fall through to load; a nil
// cache always loads.
func Remember[T any](ctx context.Context, c *CacheService, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return load(ctx)
	}

	group, _, _ := strings.Cut(key, ":")
	logger := logging.FromContext(ctx).WithField("key", key)

	var cached T
	hit, err := c.Get(ctx, key, &cached)
	switch {
	case err != nil:
		metrics.CollectCacheLookup(group, "error")
		logger.WithError(err).Warn("Cache read failed")
	case hit:
		metrics.CollectCacheLookup(group, "hit")
		return cached, nil
	default:
		metrics.CollectCacheLookup(group, "miss")
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		logger.WithError(err).Warn("Cache write failed")
	}
	return value, nil
}
