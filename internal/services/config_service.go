package services

import (
	"context"

	"ollama-gateway/internal/pkg/errors"
	"ollama-gateway/internal/repository"
)

// ConfigService exposes the runtime-mutable limits. Values are read from
// the store on every call, so administrative changes apply to the next
// admission check without a restart.
type ConfigService interface {
	GlobalDailyLimit(ctx context.Context) (int, error)
	SetGlobalDailyLimit(ctx context.Context, limit int) error
	DefaultUserDailyLimit(ctx context.Context) (int, error)
	// SetDefaultUserDailyLimit updates the default for new users. With
	// cascade it also overwrites the limit of every existing non-admin
	// user, including individually customized ones.
	SetDefaultUserDailyLimit(ctx context.Context, limit int, cascade bool) error
}

type configService struct {
	configRepo repository.ConfigRepository
	userRepo   repository.UserRepository
}

func NewConfigService(configRepo repository.ConfigRepository, userRepo repository.UserRepository) ConfigService {
	return &configService{
		configRepo: configRepo,
		userRepo:   userRepo,
	}
}

func (s *configService) GlobalDailyLimit(ctx context.Context) (int, error) {
	return s.configRepo.GlobalDailyLimit(ctx)
}

func (s *configService) SetGlobalDailyLimit(ctx context.Context, limit int) error {
	if limit < 0 {
		return errors.ErrInvalidInput
	}
	return s.configRepo.SetGlobalDailyLimit(ctx, limit)
}

func (s *configService) DefaultUserDailyLimit(ctx context.Context) (int, error) {
	return s.configRepo.DefaultUserDailyLimit(ctx)
}

func (s *configService) SetDefaultUserDailyLimit(ctx context.Context, limit int, cascade bool) error {
	if limit < 0 {
		return errors.ErrInvalidInput
	}
	if err := s.configRepo.SetDefaultUserDailyLimit(ctx, limit); err != nil {
		return err
	}
	if cascade {
		return s.userRepo.SetDailyLimitForNonAdmins(ctx, limit)
	}
	return nil
}
