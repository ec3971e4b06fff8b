package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chat-relay/internal/config"
	"chat-relay/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisTranscriptCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTranscriptCache(cfg config.RedisConfig) (*RedisTranscriptCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisTranscriptCache{
		client: client,
		ttl:    cfg.HistoryTTL,
	}, nil
}

func (c *RedisTranscriptCache) key(room string) string {
	return "transcript:" + room
}

func (c *RedisTranscriptCache) Get(ctx context.Context, room string) ([]*models.Message, error) {
	data, err := c.client.Get(ctx, c.key(room)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var messages []*models.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}

	return messages, nil
}

func (c *RedisTranscriptCache) Set(ctx context.Context, room string, messages []*models.Message) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := c.client.Set(ctx, c.key(room), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}

	return nil
}

func (c *RedisTranscriptCache) Invalidate(ctx context.Context, room string) error {
	return c.client.Del(ctx, c.key(room)).Err()
}

func (c *RedisTranscriptCache) Close() error {
	return c.client.Close()
}
