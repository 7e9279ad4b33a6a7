package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ollama-gateway/internal/models"
	apperrors "ollama-gateway/internal/pkg/errors"
)

// UsageRepository is the usage ledger: durable per-user-per-day counters
// and the atomic check-then-increment admission step. Sum and SumAll treat
// a nil since as all-time; missing users simply sum to zero.
type UsageRepository interface {
	GetOrCreateToday(ctx context.Context, username string, day time.Time) (*models.UsageCounter, error)
	// Admit performs the per-user check, the global check and the
	// increment as one atomic unit. perUserLimit must be positive; the
	// global limit is resolved inside the same transaction.
	Admit(ctx context.Context, username string, day time.Time, perUserLimit int) (models.Admission, error)
	Sum(ctx context.Context, username string, since *time.Time) (int, error)
	SumAll(ctx context.Context, since *time.Time) (int, error)
	ResetAll(ctx context.Context) error
}

type usageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

func (r *usageRepository) GetOrCreateToday(ctx context.Context, username string, day time.Time) (*models.UsageCounter, error) {
	day = models.Day(day)
	counter := models.UsageCounter{Username: username, Date: day, Count: 0}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// ON CONFLICT DO NOTHING keeps concurrent first requests from
		// creating duplicate rows for the same user and day.
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error; err != nil {
			return err
		}
		return tx.Where("username = ? AND date = ?", username, day).First(&counter).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get or create usage counter")
	}
	return &counter, nil
}

func (r *usageRepository) Admit(ctx context.Context, username string, day time.Time, perUserLimit int) (models.Admission, error) {
	day = models.Day(day)
	var adm models.Admission

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Locking the global-limit config row serializes every admission
		// that must be measured against the global cap; without it two
		// requests from different users could both pass a cap with one
		// unit of headroom.
		globalLimit, err := lockGlobalLimit(tx)
		if err != nil {
			return err
		}

		counter, err := lockCounter(tx, username, day)
		if err != nil {
			return err
		}

		// Per-user before global: an individually exhausted user gets the
		// more specific reason even when the global cap is also hit.
		if counter.Count >= perUserLimit {
			adm = models.Admission{Status: models.AdmitDeniedPerUser, Count: counter.Count, Limit: perUserLimit}
			return nil
		}

		if globalLimit > 0 {
			var dayTotal int64
			if err := tx.Model(&models.UsageCounter{}).
				Where("date = ?", day).
				Select("COALESCE(SUM(count), 0)").
				Scan(&dayTotal).Error; err != nil {
				return err
			}
			if int(dayTotal) >= globalLimit {
				adm = models.Admission{Status: models.AdmitDeniedGlobal, Count: counter.Count, Limit: globalLimit}
				return nil
			}
		}

		if err := tx.Model(&models.UsageCounter{}).
			Where("username = ? AND date = ?", username, day).
			UpdateColumn("count", gorm.Expr("count + 1")).Error; err != nil {
			return err
		}

		adm = models.Admission{Status: models.AdmitAllowed, Count: counter.Count + 1, Limit: perUserLimit}
		return nil
	})
	if err != nil {
		return models.Admission{}, apperrors.Wrap(err, "quota admission failed")
	}
	return adm, nil
}

// lockCounter loads today's counter row FOR UPDATE, creating it lazily on
// the first request of the day.
func lockCounter(tx *gorm.DB, username string, day time.Time) (*models.UsageCounter, error) {
	var counter models.UsageCounter
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("username = ? AND date = ?", username, day).
		First(&counter).Error
	if err == nil {
		return &counter, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	counter = models.UsageCounter{Username: username, Date: day, Count: 0}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error; err != nil {
		return nil, err
	}

	// Re-read under lock; a concurrent first request may have won the insert.
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("username = ? AND date = ?", username, day).
		First(&counter).Error
	if err != nil {
		return nil, err
	}
	return &counter, nil
}

// lockGlobalLimit reads the global daily cap FOR UPDATE. An absent row
// means no cap is configured, so there is nothing to serialize against.
func lockGlobalLimit(tx *gorm.DB) (int, error) {
	var cfg models.AppConfig
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("key = ?", models.ConfigGlobalDailyLimit).
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	limit, err := strconv.Atoi(cfg.Value)
	if err != nil || limit < 0 {
		return 0, nil
	}
	return limit, nil
}

func (r *usageRepository) Sum(ctx context.Context, username string, since *time.Time) (int, error) {
	query := r.db.WithContext(ctx).Model(&models.UsageCounter{}).
		Where("username = ?", username)
	if since != nil {
		query = query.Where("date >= ?", models.Day(*since))
	}

	var total int64
	if err := query.Select("COALESCE(SUM(count), 0)").Scan(&total).Error; err != nil {
		return 0, apperrors.Wrap(err, "failed to sum usage")
	}
	return int(total), nil
}

func (r *usageRepository) SumAll(ctx context.Context, since *time.Time) (int, error) {
	query := r.db.WithContext(ctx).Model(&models.UsageCounter{})
	if since != nil {
		query = query.Where("date >= ?", models.Day(*since))
	}

	var total int64
	if err := query.Select("COALESCE(SUM(count), 0)").Scan(&total).Error; err != nil {
		return 0, apperrors.Wrap(err, "failed to sum usage for all users")
	}
	return int(total), nil
}

func (r *usageRepository) ResetAll(ctx context.Context) error {
	result := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.UsageCounter{})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "failed to reset usage counters")
	}
	return nil
}
