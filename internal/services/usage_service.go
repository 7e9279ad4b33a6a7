package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ollama-gateway/internal/logger"
	"ollama-gateway/internal/models"
	"ollama-gateway/internal/repository"
)

// UsageStats is the per-user rollup served to reporting callers.
type UsageStats struct {
	Day   int `json:"day"`
	Total int `json:"total"`
}

// GlobalUsageStats is the all-users rollup polled by dashboards.
type GlobalUsageStats struct {
	DayTotal int `json:"day_total"`
	AllTotal int `json:"all_total"`
}

// UsageService serves read-only usage rollups. Reports may lag an
// in-flight admission by up to the cache TTL; admission decisions never
// read from here.
type UsageService interface {
	ForUser(ctx context.Context, username string, today time.Time) (*UsageStats, error)
	ForAll(ctx context.Context, today time.Time) (*GlobalUsageStats, error)
	ResetAll(ctx context.Context) error
}

type usageService struct {
	usageRepo repository.UsageRepository
	cache     CacheService
	cacheTTL  time.Duration
}

// NewUsageService builds the aggregator. cache may be nil, in which case
// every read hits the ledger.
func NewUsageService(usageRepo repository.UsageRepository, cache CacheService, cacheTTL time.Duration) UsageService {
	return &usageService{
		usageRepo: usageRepo,
		cache:     cache,
		cacheTTL:  cacheTTL,
	}
}

func (s *usageService) ForUser(ctx context.Context, username string, today time.Time) (*UsageStats, error) {
	day := models.Day(today)
	cacheKey := fmt.Sprintf("usage:user:%s:%s", username, day.Format("2006-01-02"))

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			var stats UsageStats
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				return &stats, nil
			}
		}
	}

	dayCount, err := s.usageRepo.Sum(ctx, username, &day)
	if err != nil {
		return nil, err
	}
	total, err := s.usageRepo.Sum(ctx, username, nil)
	if err != nil {
		return nil, err
	}

	stats := &UsageStats{Day: dayCount, Total: total}
	s.cacheSet(ctx, cacheKey, stats)
	return stats, nil
}

func (s *usageService) ForAll(ctx context.Context, today time.Time) (*GlobalUsageStats, error) {
	day := models.Day(today)
	cacheKey := fmt.Sprintf("usage:all:%s", day.Format("2006-01-02"))

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			var stats GlobalUsageStats
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				return &stats, nil
			}
		}
	}

	dayTotal, err := s.usageRepo.SumAll(ctx, &day)
	if err != nil {
		return nil, err
	}
	allTotal, err := s.usageRepo.SumAll(ctx, nil)
	if err != nil {
		return nil, err
	}

	stats := &GlobalUsageStats{DayTotal: dayTotal, AllTotal: allTotal}
	s.cacheSet(ctx, cacheKey, stats)
	return stats, nil
}

func (s *usageService) ResetAll(ctx context.Context) error {
	if err := s.usageRepo.ResetAll(ctx); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, "usage:*"); err != nil {
			// Cached reports age out within the TTL anyway.
			logger.Logger.WithFields(logrus.Fields{"error": err}).
				Warn("failed to invalidate usage cache after reset")
		}
	}
	return nil
}

func (s *usageService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		logger.Logger.WithFields(logrus.Fields{"key": key, "error": err}).
			Warn("failed to cache usage report")
	}
}
