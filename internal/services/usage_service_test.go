package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ollama-gateway/internal/config"
	"ollama-gateway/internal/repository"
)

func newTestCache(t *testing.T, ttl time.Duration) (CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache, err := NewRedisCacheService(&config.CacheConfig{
		RedisHost:  mr.Host(),
		RedisPort:  mr.Port(),
		DefaultTTL: ttl,
	})
	require.NoError(t, err)
	return cache, mr
}

func TestForUserReportsLedgerTotals(t *testing.T) {
	ctx := context.Background()
	ledger := repository.NewMemoryUsageRepository(nil)
	usage := NewUsageService(ledger, nil, 0)

	yesterday := testDay.AddDate(0, 0, -1)
	for _, day := range []time.Time{yesterday, testDay, testDay} {
		_, err := ledger.Admit(ctx, "u", day, 1000)
		require.NoError(t, err)
	}
	_, err := ledger.Admit(ctx, "other", testDay, 1000)
	require.NoError(t, err)

	stats, err := usage.ForUser(ctx, "u", testDay)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Day)
	assert.Equal(t, 3, stats.Total)

	// Unknown users report zeros rather than an error.
	stats, err = usage.ForUser(ctx, "ghost", testDay)
	require.NoError(t, err)
	assert.Zero(t, stats.Day)
	assert.Zero(t, stats.Total)
}

func TestForAllReportsLedgerTotals(t *testing.T) {
	ctx := context.Background()
	ledger := repository.NewMemoryUsageRepository(nil)
	usage := NewUsageService(ledger, nil, 0)

	yesterday := testDay.AddDate(0, 0, -1)
	_, err := ledger.Admit(ctx, "a", yesterday, 1000)
	require.NoError(t, err)
	_, err = ledger.Admit(ctx, "a", testDay, 1000)
	require.NoError(t, err)
	_, err = ledger.Admit(ctx, "b", testDay, 1000)
	require.NoError(t, err)

	stats, err := usage.ForAll(ctx, testDay)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DayTotal)
	assert.Equal(t, 3, stats.AllTotal)
}

func TestForUserCachedReportMayLag(t *testing.T) {
	ctx := context.Background()
	ledger := repository.NewMemoryUsageRepository(nil)
	cache, mr := newTestCache(t, 5*time.Second)
	usage := NewUsageService(ledger, cache, 5*time.Second)

	_, err := ledger.Admit(ctx, "u", testDay, 1000)
	require.NoError(t, err)

	stats, err := usage.ForUser(ctx, "u", testDay)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Day)

	// A new admission is not visible until the cached report expires.
	_, err = ledger.Admit(ctx, "u", testDay, 1000)
	require.NoError(t, err)

	stats, err = usage.ForUser(ctx, "u", testDay)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Day)

	mr.FastForward(6 * time.Second)

	stats, err = usage.ForUser(ctx, "u", testDay)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Day)
}

func TestResetAllZerosReports(t *testing.T) {
	ctx := context.Background()
	ledger := repository.NewMemoryUsageRepository(nil)
	usage := NewUsageService(ledger, nil, 0)

	_, err := ledger.Admit(ctx, "u", testDay, 1000)
	require.NoError(t, err)

	require.NoError(t, usage.ResetAll(ctx))

	stats, err := usage.ForUser(ctx, "u", testDay)
	require.NoError(t, err)
	assert.Zero(t, stats.Day)
	assert.Zero(t, stats.Total)
}

func TestResetAllInvalidatesCachedReports(t *testing.T) {
	ctx := context.Background()
	ledger := repository.NewMemoryUsageRepository(nil)
	cache, _ := newTestCache(t, time.Minute)
	usage := NewUsageService(ledger, cache, time.Minute)

	_, err := ledger.Admit(ctx, "u", testDay, 1000)
	require.NoError(t, err)

	stats, err := usage.ForUser(ctx, "u", testDay)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Day)
	all, err := usage.ForAll(ctx, testDay)
	require.NoError(t, err)
	require.Equal(t, 1, all.DayTotal)

	// The reset must not serve the pre-wipe cached rollups.
	require.NoError(t, usage.ResetAll(ctx))

	stats, err = usage.ForUser(ctx, "u", testDay)
	require.NoError(t, err)
	assert.Zero(t, stats.Day)
	all, err = usage.ForAll(ctx, testDay)
	require.NoError(t, err)
	assert.Zero(t, all.DayTotal)
	assert.Zero(t, all.AllTotal)
}
