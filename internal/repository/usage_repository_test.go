package repository

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ollama-gateway/internal/models"
)

// The postgres ledger depends on row locking, so its tests need a real
// database. They are skipped unless TEST_DATABASE_URL points at a scratch
// database; the tables involved are truncated on setup.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.UsageCounter{}, &models.AppConfig{}))
	require.NoError(t, db.Where("1 = 1").Delete(&models.UsageCounter{}).Error)
	require.NoError(t, db.Where("1 = 1").Delete(&models.AppConfig{}).Error)
	return db
}

func TestPostgresAdmitPerUserLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewUsageRepository(newTestDB(t))
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	adm, err := repo.Admit(ctx, "u", day, 2)
	require.NoError(t, err)
	assert.Equal(t, models.AdmitAllowed, adm.Status)
	assert.Equal(t, 1, adm.Count)

	adm, err = repo.Admit(ctx, "u", day, 2)
	require.NoError(t, err)
	assert.Equal(t, models.AdmitAllowed, adm.Status)

	adm, err = repo.Admit(ctx, "u", day, 2)
	require.NoError(t, err)
	assert.Equal(t, models.AdmitDeniedPerUser, adm.Status)
	assert.Equal(t, 2, adm.Count, "denied call must not mutate the counter")

	total, err := repo.Sum(ctx, "u", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestPostgresGetOrCreateTodayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewUsageRepository(newTestDB(t))
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	counter, err := repo.GetOrCreateToday(ctx, "u", day)
	require.NoError(t, err)
	assert.Zero(t, counter.Count)

	_, err = repo.Admit(ctx, "u", day, 10)
	require.NoError(t, err)

	counter, err = repo.GetOrCreateToday(ctx, "u", day)
	require.NoError(t, err)
	assert.Equal(t, 1, counter.Count)
}

func TestPostgresNoOverAdmissionUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	repo := NewUsageRepository(newTestDB(t))
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	const limit = 5
	const calls = 20

	var admitted int64
	var failures int64
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			adm, err := repo.Admit(ctx, "u", day, limit)
			if err != nil {
				atomic.AddInt64(&failures, 1)
				return
			}
			if adm.Allowed() {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, failures)
	assert.EqualValues(t, limit, admitted)

	total, err := repo.Sum(ctx, "u", nil)
	require.NoError(t, err)
	assert.Equal(t, limit, total)
}

func TestPostgresGlobalCapSerializesConcurrentUsers(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewUsageRepository(db)
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	const globalLimit = 10
	require.NoError(t, NewConfigRepository(db).SetGlobalDailyLimit(ctx, globalLimit))

	usernames := []string{"a", "b", "c"}
	var admitted int64
	var globalDenied int64
	var wg sync.WaitGroup
	for i := 0; i < globalLimit+5; i++ {
		wg.Add(1)
		username := usernames[i%len(usernames)]
		go func() {
			defer wg.Done()
			adm, err := repo.Admit(ctx, username, day, 1000)
			if err != nil {
				return
			}
			switch adm.Status {
			case models.AdmitAllowed:
				atomic.AddInt64(&admitted, 1)
			case models.AdmitDeniedGlobal:
				atomic.AddInt64(&globalDenied, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, globalLimit, admitted)
	assert.EqualValues(t, 5, globalDenied)

	dayTotal, err := repo.SumAll(ctx, &day)
	require.NoError(t, err)
	assert.Equal(t, globalLimit, dayTotal)
}
