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

// DefaultDailyLimit is applied when no per-user or configured default
// limit is set.
const DefaultDailyLimit = 1000

// ConfigRepository persists runtime-mutable limits. Reads always hit the
// store so that administrative changes apply without a restart and are
// visible to every process sharing the database.
type ConfigRepository interface {
	GlobalDailyLimit(ctx context.Context) (int, error)
	SetGlobalDailyLimit(ctx context.Context, limit int) error
	DefaultUserDailyLimit(ctx context.Context) (int, error)
	SetDefaultUserDailyLimit(ctx context.Context, limit int) error
}

type configRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) ConfigRepository {
	return &configRepository{db: db}
}

var _ GlobalLimitSource = (ConfigRepository)(nil)

func (r *configRepository) GlobalDailyLimit(ctx context.Context) (int, error) {
	return r.intValue(ctx, models.ConfigGlobalDailyLimit, 0)
}

func (r *configRepository) SetGlobalDailyLimit(ctx context.Context, limit int) error {
	return r.setValue(ctx, models.ConfigGlobalDailyLimit, limit)
}

func (r *configRepository) DefaultUserDailyLimit(ctx context.Context) (int, error) {
	return r.intValue(ctx, models.ConfigDefaultDailyLimit, DefaultDailyLimit)
}

func (r *configRepository) SetDefaultUserDailyLimit(ctx context.Context, limit int) error {
	return r.setValue(ctx, models.ConfigDefaultDailyLimit, limit)
}

func (r *configRepository) intValue(ctx context.Context, key string, fallback int) (int, error) {
	var cfg models.AppConfig
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fallback, nil
	}
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read config value")
	}

	value, err := strconv.Atoi(cfg.Value)
	if err != nil || value < 0 {
		return fallback, nil
	}
	return value, nil
}

func (r *configRepository) setValue(ctx context.Context, key string, value int) error {
	cfg := models.AppConfig{
		Key:       key,
		Value:     strconv.Itoa(value),
		UpdatedAt: time.Now(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&cfg).Error
	if err != nil {
		return apperrors.Wrap(err, "failed to write config value")
	}
	return nil
}
