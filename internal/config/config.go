package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the process-level configuration read from the environment at
// startup. Runtime-mutable limits do not live here; they are persisted in
// the app_configs table and re-read on every check.
type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	OllamaCmd   string
	ChatTimeout time.Duration
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		OllamaCmd:   getEnv("OLLAMA_CMD", "ollama"),
		ChatTimeout: getDurationEnv("CHAT_TIMEOUT", 5*time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
