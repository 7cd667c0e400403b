package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"veridoc/internal/domain"
	platformredis "veridoc/internal/platform/redis"
)

// RedisCache stores hints in redis with a bounded TTL so drifted layouts
// self-heal without the hint outliving another layout change.
type RedisCache struct {
	client *platformredis.Client
	ttl    time.Duration
}

func NewRedisCache(client *platformredis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

type hintPayload struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
}

func (c *RedisCache) Get(ctx context.Context, entryID string, lane domain.Lane) (domain.StorageLocation, bool, error) {
	raw, err := c.client.Get(ctx, key(entryID, lane)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.StorageLocation{}, false, nil
		}
		return domain.StorageLocation{}, false, fmt.Errorf("hint cache get: %w", err)
	}
	var payload hintPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.StorageLocation{}, false, fmt.Errorf("hint cache decode: %w", err)
	}
	return domain.StorageLocation{Bucket: payload.Bucket, Path: payload.Path}, true, nil
}

func (c *RedisCache) Set(ctx context.Context, entryID string, lane domain.Lane, loc domain.StorageLocation) error {
	raw, err := json.Marshal(hintPayload{Bucket: loc.Bucket, Path: loc.Path})
	if err != nil {
		return fmt.Errorf("hint cache encode: %w", err)
	}
	if err := c.client.Set(ctx, key(entryID, lane), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("hint cache set: %w", err)
	}
	return nil
}
