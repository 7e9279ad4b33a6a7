package repository

import (
	"context"

	"gorm.io/gorm"

	"ollama-gateway/internal/models"
	apperrors "ollama-gateway/internal/pkg/errors"
)

type SessionRepository interface {
	GetSession(ctx context.Context, username, sessionID string) (*models.ChatSession, error)
	CreateSession(ctx context.Context, session *models.ChatSession) error
	UpdateTitle(ctx context.Context, username, sessionID, title string) error
	ListSessions(ctx context.Context, username string) ([]models.ChatSession, error)
	CountSessions(ctx context.Context, username string) (int64, error)
	AddMessage(ctx context.Context, message *models.ChatMessage) error
	ListMessages(ctx context.Context, username, sessionID string) ([]models.ChatMessage, error)
	DeleteAll(ctx context.Context) error
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) GetSession(ctx context.Context, username, sessionID string) (*models.ChatSession, error) {
	var session models.ChatSession
	result := r.db.WithContext(ctx).
		First(&session, "username = ? AND session_id = ?", username, sessionID)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(result.Error, "failed to get chat session")
	}

	return &session, nil
}

func (r *sessionRepository) CreateSession(ctx context.Context, session *models.ChatSession) error {
	result := r.db.WithContext(ctx).Create(session)
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "failed to create chat session")
	}
	return nil
}

func (r *sessionRepository) UpdateTitle(ctx context.Context, username, sessionID, title string) error {
	result := r.db.WithContext(ctx).Model(&models.ChatSession{}).
		Where("username = ? AND session_id = ?", username, sessionID).
		Update("title", title)
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "failed to update session title")
	}
	return nil
}

func (r *sessionRepository) ListSessions(ctx context.Context, username string) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	result := r.db.WithContext(ctx).
		Where("username = ?", username).
		Order("created_at DESC").
		Find(&sessions)
	if result.Error != nil {
		return nil, apperrors.Wrap(result.Error, "failed to list chat sessions")
	}
	return sessions, nil
}

func (r *sessionRepository) CountSessions(ctx context.Context, username string) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.ChatSession{}).
		Where("username = ?", username).
		Count(&count)
	if result.Error != nil {
		return 0, apperrors.Wrap(result.Error, "failed to count chat sessions")
	}
	return count, nil
}

func (r *sessionRepository) AddMessage(ctx context.Context, message *models.ChatMessage) error {
	result := r.db.WithContext(ctx).Create(message)
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "failed to store chat message")
	}
	return nil
}

func (r *sessionRepository) ListMessages(ctx context.Context, username, sessionID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	result := r.db.WithContext(ctx).
		Where("username = ? AND session_id = ?", username, sessionID).
		Order("id").
		Find(&messages)
	if result.Error != nil {
		return nil, apperrors.Wrap(result.Error, "failed to list chat messages")
	}
	return messages, nil
}

func (r *sessionRepository) DeleteAll(ctx context.Context) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.ChatMessage{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&models.ChatSession{}).Error
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to delete chat history")
	}
	return nil
}
