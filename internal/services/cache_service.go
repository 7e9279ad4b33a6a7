package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ollama-gateway/internal/config"
)

// CacheService is the short-TTL cache in front of the usage ledger. It
// holds JSON-encoded report rollups keyed per user and day. Admission
// decisions never read from it, so a stale entry can only make a report
// lag, never let a request through.
type CacheService interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// DeleteByPattern drops every cached report matching the glob. Used
	// when a wipe invalidates all rollups at once.
	DeleteByPattern(ctx context.Context, pattern string) error
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(cfg *config.CacheConfig) (CacheService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisCacheService{client: client}, nil
}

func (c *redisCacheService) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

func (c *redisCacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cached report: %w", err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *redisCacheService) DeleteByPattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
