package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"ollama-gateway/internal/logger"
	"ollama-gateway/internal/models"
	apperrors "ollama-gateway/internal/pkg/errors"
	"ollama-gateway/internal/ollama"
	"ollama-gateway/internal/repository"
)

// UserService covers the administrative user-management surface.
type UserService interface {
	List(ctx context.Context) ([]models.User, error)
	Get(ctx context.Context, username string) (*models.User, error)
	CreateOrUpdate(ctx context.Context, username, password string, dailyLimit int) (*models.User, error)
	ChatCount(ctx context.Context, username string) (int64, error)
	// Delete removes a non-admin user and their counters and transcripts.
	// Administrator accounts cannot be deleted.
	Delete(ctx context.Context, username string) error
	// WipeAll clears transcripts, ledger and users, then best-effort
	// removes installed models. Model removal failures are returned as
	// warnings and never roll back the database wipe.
	WipeAll(ctx context.Context) ([]string, error)
}

type userService struct {
	userRepo     repository.UserRepository
	sessionRepo  repository.SessionRepository
	usageService UsageService
	runner       ollama.Runner
}

func NewUserService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	usageService UsageService,
	runner ollama.Runner,
) UserService {
	return &userService{
		userRepo:     userRepo,
		sessionRepo:  sessionRepo,
		usageService: usageService,
		runner:       runner,
	}
}

func (s *userService) List(ctx context.Context) ([]models.User, error) {
	return s.userRepo.List(ctx)
}

func (s *userService) Get(ctx context.Context, username string) (*models.User, error) {
	return s.userRepo.GetByUsername(ctx, username)
}

func (s *userService) ChatCount(ctx context.Context, username string) (int64, error) {
	return s.sessionRepo.CountSessions(ctx, username)
}

func (s *userService) CreateOrUpdate(ctx context.Context, username, password string, dailyLimit int) (*models.User, error) {
	if username == "" || password == "" {
		return nil, apperrors.ErrInvalidInput
	}
	if dailyLimit < 0 {
		return nil, apperrors.ErrInvalidInput
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err == nil {
		user.PasswordHash = string(hashedPassword)
		user.DailyLimit = dailyLimit
		user.UpdatedAt = time.Now()
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	user = &models.User{
		Username:     username,
		PasswordHash: string(hashedPassword),
		IsAdmin:      false,
		DailyLimit:   dailyLimit,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) Delete(ctx context.Context, username string) error {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if user.IsAdmin {
		return apperrors.ErrForbidden
	}
	return s.userRepo.Delete(ctx, username)
}

func (s *userService) WipeAll(ctx context.Context) ([]string, error) {
	if err := s.sessionRepo.DeleteAll(ctx); err != nil {
		return nil, err
	}
	if err := s.usageService.ResetAll(ctx); err != nil {
		return nil, err
	}
	if err := s.userRepo.DeleteAll(ctx); err != nil {
		return nil, err
	}

	var warnings []string
	if s.runner != nil {
		installed, err := s.runner.ListInstalled(ctx)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("could not list installed models: %v", err))
			return warnings, nil
		}
		for _, model := range installed {
			if err := s.runner.Remove(ctx, model); err != nil {
				logger.Logger.WithFields(logrus.Fields{
					"model": model,
					"error": err,
				}).Warn("failed to remove model during wipe")
				warnings = append(warnings, fmt.Sprintf("could not remove model %q: %v", model, err))
			}
		}
	}
	return warnings, nil
}
