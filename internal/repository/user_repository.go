package repository

import (
	"context"

	"gorm.io/gorm"

	"ollama-gateway/internal/models"
	apperrors "ollama-gateway/internal/pkg/errors"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, username string) error
	SetDailyLimitForNonAdmins(ctx context.Context, limit int) error
	DeleteAll(ctx context.Context) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	result := r.db.WithContext(ctx).Create(user)
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "failed to create user")
	}
	return nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).First(&user, "username = ?", username)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(result.Error, "failed to get user by username")
	}

	return &user, nil
}

func (r *userRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	result := r.db.WithContext(ctx).Order("username").Find(&users)
	if result.Error != nil {
		return nil, apperrors.Wrap(result.Error, "failed to list users")
	}
	return users, nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	result := r.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"password_hash": user.PasswordHash,
		"daily_limit":   user.DailyLimit,
		"updated_at":    user.UpdatedAt,
	})

	if result.Error != nil {
		return apperrors.Wrap(result.Error, "failed to update user")
	}

	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes a user together with their ledger rows and transcripts.
func (r *userRepository) Delete(ctx context.Context, username string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("username = ?", username).Delete(&models.ChatMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("username = ?", username).Delete(&models.ChatSession{}).Error; err != nil {
			return err
		}
		if err := tx.Where("username = ?", username).Delete(&models.UsageCounter{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.User{}, "username = ?", username)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}
		return nil
	})
	if err == apperrors.ErrNotFound {
		return err
	}
	if err != nil {
		return apperrors.Wrap(err, "failed to delete user")
	}
	return nil
}

func (r *userRepository) SetDailyLimitForNonAdmins(ctx context.Context, limit int) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("is_admin = ?", false).
		Update("daily_limit", limit)
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "failed to update user limits")
	}
	return nil
}

func (r *userRepository) DeleteAll(ctx context.Context) error {
	result := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.User{})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "failed to delete users")
	}
	return nil
}
