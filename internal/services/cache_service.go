package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"trendscope-pipeline/internal/config"
	"trendscope-pipeline/internal/models"
	"trendscope-pipeline/internal/pkg/logger"
)

// CacheClient is the key-value surface the pipeline depends on. Values
// are opaque strings with a TTL; updates are idempotent read-then-write
// operations, so concurrent writers may race but never corrupt (worst
// case is a redundant upstream fetch).
type CacheClient interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

const (
	taxonomyCacheKey    = "trendscope:category_dictionary"
	relatedPostsKeyStem = "trendscope:related_posts:"
	rateLimitKeyStem    = "trendscope:slack_rate_limit:"
)

// RelatedPostsKey builds an order-independent cache key for a category
// id set and result limit. Ids are sorted before hashing so {3,1} and
// {1,3} share an entry.
func RelatedPostsKey(categoryIDs []int, limit int) string {
	ids := make([]int, len(categoryIDs))
	copy(ids, categoryIDs)
	sort.Ints(ids)

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	digest := sha256.Sum256([]byte(strings.Join(parts, ",") + "_" + fmt.Sprintf("%d", limit)))
	return relatedPostsKeyStem + hex.EncodeToString(digest[:])
}

func TaxonomyKey() string {
	return taxonomyCacheKey
}

// RateLimitKey hashes the requester id so raw user ids never appear as
// cache keys.
func RateLimitKey(userID string) string {
	digest := sha256.Sum256([]byte(userID))
	return rateLimitKeyStem + hex.EncodeToString(digest[:])
}

// RedisCache backs CacheClient with Redis. The server uses this; the CLI
// and tests use MemoryCache.
type RedisCache struct {
	client *redis.Client
	logger *logger.Logger
}

func NewRedisCache(cfg config.RedisConfig, log *logger.Logger) (*RedisCache, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	opt.PoolSize = cfg.PoolSize
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connection to Redis failed: %w", err)
	}

	log.Info("Redis cache initialized", "url", cfg.URL, "pool_size", cfg.PoolSize)

	return &RedisCache{client: client, logger: log}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, models.NewExternalError("REDIS_GET_FAILED", "failed to read cache entry").WithCause(err)
	}
	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return models.NewExternalError("REDIS_SET_FAILED", "failed to write cache entry").WithCause(err)
	}
	return nil
}

func (c *RedisCache) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := c.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, models.NewExternalError("REDIS_INCR_FAILED", "failed to increment counter").WithCause(err)
	}
	return incr.Val(), nil
}

func (c *RedisCache) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection unhealthy: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// MemoryCache is an in-process CacheClient with TTL semantics, used by
// the CLI entry point and in tests.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     string
	counter   int64
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{value: value, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expiresAt) {
		entry = memoryEntry{}
	}
	entry.counter++
	entry.value = fmt.Sprintf("%d", entry.counter)
	entry.expiresAt = c.now().Add(ttl)
	c.entries[key] = entry
	return entry.counter, nil
}
