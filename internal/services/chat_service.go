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
	"ollama-gateway/internal/ollama"
	"ollama-gateway/internal/repository"
)

// ChatService runs one chat request end to end: admission, transcript
// bookkeeping, dispatch to the model runtime, reply bookkeeping. The
// charge is committed before the dispatch and is not refunded if the
// dispatch fails.
type ChatService interface {
	Send(ctx context.Context, username, sessionID, model, prompt string, today time.Time) (string, models.Admission, error)
}

type chatService struct {
	quota       QuotaService
	sessionRepo repository.SessionRepository
	runner      ollama.Runner
}

func NewChatService(quota QuotaService, sessionRepo repository.SessionRepository, runner ollama.Runner) ChatService {
	return &chatService{
		quota:       quota,
		sessionRepo: sessionRepo,
		runner:      runner,
	}
}

func (s *chatService) Send(ctx context.Context, username, sessionID, model, prompt string, today time.Time) (string, models.Admission, error) {
	if sessionID == "" || model == "" || prompt == "" {
		return "", models.Admission{}, apperrors.ErrInvalidInput
	}

	adm, err := s.quota.Admit(ctx, username, today)
	if err != nil {
		return "", models.Admission{}, err
	}
	if !adm.Allowed() {
		return "", adm, nil
	}

	if err := s.recordPrompt(ctx, username, sessionID, model, prompt); err != nil {
		// The charge above stands; transcript failures do not refund it.
		return "", adm, err
	}

	// The dispatch runs strictly after admission and outside any quota
	// lock; a slow model never blocks other admission decisions.
	start := time.Now()
	reply, err := s.runner.Chat(ctx, model, prompt)
	metrics.ChatDispatchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ChatDispatchesTotal.WithLabelValues("error").Inc()
		logger.Logger.WithFields(logrus.Fields{
			"username": username,
			"session":  sessionID,
			"model":    model,
			"error":    err,
		}).Error("model dispatch failed")
		return "", adm, apperrors.Wrap(err, "model invocation failed")
	}
	metrics.ChatDispatchesTotal.WithLabelValues("ok").Inc()

	botMsg := &models.ChatMessage{
		SessionID: sessionID,
		Username:  username,
		Role:      models.RoleAssistant,
		Model:     model,
		Content:   reply,
	}
	if err := s.sessionRepo.AddMessage(ctx, botMsg); err != nil {
		return "", adm, err
	}

	return reply, adm, nil
}

// recordPrompt lazily creates the session (titled after its first prompt)
// and stores the user message.
func (s *chatService) recordPrompt(ctx context.Context, username, sessionID, model, prompt string) error {
	session, err := s.sessionRepo.GetSession(ctx, username, sessionID)
	if errors.Is(err, apperrors.ErrNotFound) {
		session = &models.ChatSession{
			SessionID: sessionID,
			Username:  username,
			Title:     prompt,
			CreatedAt: time.Now(),
		}
		if err := s.sessionRepo.CreateSession(ctx, session); err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else if session.Title == "" {
		if err := s.sessionRepo.UpdateTitle(ctx, username, sessionID, prompt); err != nil {
			return err
		}
	}

	userMsg := &models.ChatMessage{
		SessionID: sessionID,
		Username:  username,
		Role:      models.RoleUser,
		Model:     model,
		Content:   prompt,
	}
	return s.sessionRepo.AddMessage(ctx, userMsg)
}
