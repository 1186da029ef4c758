package storysource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storyworld/internal/story"
)

const (
	cacheKeyPrefix = "storyworld:story:"
	cacheListKey   = "storyworld:stories"
)

// RedisCache keeps validated story graphs in Redis in front of a slower source.
// Redis failures are logged and the call falls through to the wrapped source.
type RedisCache struct {
	next   Source
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

var _ Source = (*RedisCache)(nil)

// NewRedisCache wraps next with a Redis read-through cache.
func NewRedisCache(next Source, client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisStoryCache"),
	}
}

func (c *RedisCache) Get(ctx context.Context, id string) (*story.Graph, error) {
	key := cacheKeyPrefix + id

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		g, decodeErr := story.DecodeGraph(id, raw, story.FormatJSON)
		if decodeErr == nil {
			c.logger.Debug("Story cache hit", zap.String("storyID", id))
			return g, nil
		}
		c.logger.Warn("Dropping undecodable cached story", zap.String("storyID", id), zap.Error(decodeErr))
		c.client.Del(ctx, key)
	case errors.Is(err, redis.Nil):
		c.logger.Debug("Story cache miss", zap.String("storyID", id))
	default:
		c.logger.Warn("Story cache read failed", zap.String("storyID", id), zap.Error(err))
	}

	g, err := c.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	encoded, err := story.EncodeGraph(g)
	if err != nil {
		c.logger.Error("Failed to encode story for cache", zap.String("storyID", id), zap.Error(err))
		return g, nil
	}
	if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		c.logger.Warn("Story cache write failed", zap.String("storyID", id), zap.Error(err))
	}
	return g, nil
}

func (c *RedisCache) List(ctx context.Context) ([]story.Summary, error) {
	raw, err := c.client.Get(ctx, cacheListKey).Bytes()
	if err == nil {
		var out []story.Summary
		if err := json.Unmarshal(raw, &out); err == nil {
			return out, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("Story list cache read failed", zap.Error(err))
	}

	out, err := c.next.List(ctx)
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(out); err == nil {
		if err := c.client.Set(ctx, cacheListKey, encoded, c.ttl).Err(); err != nil {
			c.logger.Warn("Story list cache write failed", zap.Error(err))
		}
	}
	return out, nil
}

// Invalidate drops the cached copy of the given stories and the listing.
func (c *RedisCache) Invalidate(ctx context.Context, ids ...string) error {
	keys := make([]string, 0, len(ids)+1)
	keys = append(keys, cacheListKey)
	for _, id := range ids {
		keys = append(keys, cacheKeyPrefix+id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate story cache: %w", err)
	}
	return nil
}
