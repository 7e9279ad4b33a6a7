package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"ollama-gateway/internal/logger"
	"ollama-gateway/internal/metrics"
	"ollama-gateway/internal/models"
	apperrors "ollama-gateway/internal/pkg/errors"
	"ollama-gateway/internal/repository"
)

// QuotaService decides whether a chat request may proceed and charges the
// ledger when it may. Callers pass "today" so decisions stay deterministic
// under test; nothing below this line calls time.Now for quota purposes.
type QuotaService interface {
	// Admit returns the decision as a value. It returns an error only for
	// an unknown user (ErrNotFound) or an internal failure
	// (ErrServiceUnavailable) — and an internal failure always means the
	// request is denied, never admitted.
	Admit(ctx context.Context, username string, today time.Time) (models.Admission, error)
}

type quotaService struct {
	userRepo  repository.UserRepository
	usageRepo repository.UsageRepository
}

func NewQuotaService(userRepo repository.UserRepository, usageRepo repository.UsageRepository) QuotaService {
	return &quotaService{
		userRepo:  userRepo,
		usageRepo: usageRepo,
	}
}

func (s *quotaService) Admit(ctx context.Context, username string, today time.Time) (models.Admission, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return models.Admission{}, apperrors.ErrNotFound
		}
		metrics.AdmissionErrorsTotal.Inc()
		logger.Logger.WithFields(logrus.Fields{
			"username": username,
			"error":    err,
		}).Error("user lookup failed during admission, denying")
		return models.Admission{}, apperrors.ErrServiceUnavailable
	}

	// Administrators are exempt and never counted; the ledger stays
	// untouched.
	if user.IsAdmin {
		metrics.AdmissionsTotal.WithLabelValues(metrics.DecisionAdminExempt).Inc()
		return models.Admission{Status: models.AdmitAllowed}, nil
	}

	limit := user.DailyLimit
	if limit <= 0 {
		limit = repository.DefaultDailyLimit
	}

	adm, err := s.usageRepo.Admit(ctx, username, today, limit)
	if err != nil {
		metrics.AdmissionErrorsTotal.Inc()
		logger.Logger.WithFields(logrus.Fields{
			"username": username,
			"error":    err,
		}).Error("ledger admission failed, denying")
		return models.Admission{}, apperrors.ErrServiceUnavailable
	}

	switch adm.Status {
	case models.AdmitAllowed:
		metrics.AdmissionsTotal.WithLabelValues(metrics.DecisionAllowed).Inc()
	case models.AdmitDeniedPerUser:
		metrics.AdmissionsTotal.WithLabelValues(metrics.DecisionPerUserDenied).Inc()
	case models.AdmitDeniedGlobal:
		metrics.AdmissionsTotal.WithLabelValues(metrics.DecisionGlobalDenied).Inc()
	}

	return adm, nil
}
