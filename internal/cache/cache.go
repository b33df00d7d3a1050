package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lookbook-ai/lookbook/internal/domain"
)

// HistoryCache is a read-through cache for per-user history listings.
// Implementations must tolerate being bypassed entirely; the database
// remains the source of truth.
type HistoryCache interface {
	// Get returns the cached listing for (userID, limit), or ok=false on miss.
	Get(ctx context.Context, userID string, limit int) ([]domain.Generation, bool, error)

	// Set stores a listing for (userID, limit).
	Set(ctx context.Context, userID string, limit int, generations []domain.Generation) error

	// Invalidate drops every cached listing for the user.
	Invalidate(ctx context.Context, userID string) error
}

// historyTTL keeps cached listings short-lived; invalidation on write makes
// staleness bounded by TTL only when invalidation itself fails.
const historyTTL = 30 * time.Second

// RedisHistoryCache implements HistoryCache on Redis.
type RedisHistoryCache struct {
	client *redis.Client
}

// NewRedisHistoryCache creates a Redis-backed history cache.
func NewRedisHistoryCache(client *redis.Client) *RedisHistoryCache {
	return &RedisHistoryCache{client: client}
}

func historyKey(userID string, limit int) string {
	return fmt.Sprintf("lookbook:history:%s:%d", userID, limit)
}

func historyKeyPattern(userID string) string {
	return fmt.Sprintf("lookbook:history:%s:*", userID)
}

// Get returns the cached listing for (userID, limit).
func (c *RedisHistoryCache) Get(ctx context.Context, userID string, limit int) ([]domain.Generation, bool, error) {
	data, err := c.client.Get(ctx, historyKey(userID, limit)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get history cache: %w", err)
	}

	var generations []domain.Generation
	if err := json.Unmarshal(data, &generations); err != nil {
		return nil, false, fmt.Errorf("decode history cache: %w", err)
	}

	return generations, true, nil
}

// Set stores a listing for (userID, limit) with a short TTL.
func (c *RedisHistoryCache) Set(ctx context.Context, userID string, limit int, generations []domain.Generation) error {
	data, err := json.Marshal(generations)
	if err != nil {
		return fmt.Errorf("encode history cache: %w", err)
	}

	if err := c.client.Set(ctx, historyKey(userID, limit), data, historyTTL).Err(); err != nil {
		return fmt.Errorf("set history cache: %w", err)
	}

	return nil
}

// Invalidate drops every cached listing for the user.
func (c *RedisHistoryCache) Invalidate(ctx context.Context, userID string) error {
	iter := c.client.Scan(ctx, 0, historyKeyPattern(userID), 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan history cache keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete history cache keys: %w", err)
	}

	return nil
}
