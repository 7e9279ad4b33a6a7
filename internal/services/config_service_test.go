package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ollama-gateway/internal/models"
	apperrors "ollama-gateway/internal/pkg/errors"
	"ollama-gateway/internal/repository"
)

type fakeConfigRepo struct {
	globalLimit  int
	defaultLimit int
}

func (f *fakeConfigRepo) GlobalDailyLimit(ctx context.Context) (int, error) {
	return f.globalLimit, nil
}

func (f *fakeConfigRepo) SetGlobalDailyLimit(ctx context.Context, limit int) error {
	f.globalLimit = limit
	return nil
}

func (f *fakeConfigRepo) DefaultUserDailyLimit(ctx context.Context) (int, error) {
	if f.defaultLimit == 0 {
		return repository.DefaultDailyLimit, nil
	}
	return f.defaultLimit, nil
}

func (f *fakeConfigRepo) SetDefaultUserDailyLimit(ctx context.Context, limit int) error {
	f.defaultLimit = limit
	return nil
}

func TestSetGlobalDailyLimit(t *testing.T) {
	configRepo := &fakeConfigRepo{}
	svc := NewConfigService(configRepo, newFakeUserRepo())
	ctx := context.Background()

	require.NoError(t, svc.SetGlobalDailyLimit(ctx, 500))
	limit, err := svc.GlobalDailyLimit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500, limit)

	assert.ErrorIs(t, svc.SetGlobalDailyLimit(ctx, -1), apperrors.ErrInvalidInput)
}

func TestSetDefaultLimitCascadesToNonAdmins(t *testing.T) {
	configRepo := &fakeConfigRepo{}
	users := newFakeUserRepo(
		&models.User{Username: "root", IsAdmin: true, DailyLimit: 1},
		&models.User{Username: "a", DailyLimit: 50},
		&models.User{Username: "b", DailyLimit: 75},
	)
	svc := NewConfigService(configRepo, users)
	ctx := context.Background()

	require.NoError(t, svc.SetDefaultUserDailyLimit(ctx, 200, true))

	limit, err := svc.DefaultUserDailyLimit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 200, limit)

	// Customized limits are overwritten; admins are untouched.
	assert.Equal(t, 200, users.users["a"].DailyLimit)
	assert.Equal(t, 200, users.users["b"].DailyLimit)
	assert.Equal(t, 1, users.users["root"].DailyLimit)
}

func TestSetDefaultLimitWithoutCascade(t *testing.T) {
	configRepo := &fakeConfigRepo{}
	users := newFakeUserRepo(&models.User{Username: "a", DailyLimit: 50})
	svc := NewConfigService(configRepo, users)
	ctx := context.Background()

	require.NoError(t, svc.SetDefaultUserDailyLimit(ctx, 200, false))

	assert.Equal(t, 50, users.users["a"].DailyLimit, "existing limits keep their value")
	assert.Empty(t, users.bulkLimit)
	assert.Equal(t, 200, configRepo.defaultLimit)
}

func TestSetDefaultLimitRejectsNegative(t *testing.T) {
	svc := NewConfigService(&fakeConfigRepo{}, newFakeUserRepo())
	err := svc.SetDefaultUserDailyLimit(context.Background(), -5, true)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
