package config

import (
	"time"
)

type CacheConfig struct {
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	// DefaultTTL bounds how stale a cached usage report may be. Admission
	// decisions never read the cache.
	DefaultTTL time.Duration
}

func NewCacheConfig() *CacheConfig {
	return &CacheConfig{
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       0,
		DefaultTTL:    5 * time.Second,
	}
}
