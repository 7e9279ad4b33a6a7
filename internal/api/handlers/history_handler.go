package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"ollama-gateway/internal/repository"
	"ollama-gateway/internal/services"
)

// HistoryHandler serves chat transcripts for the authenticated user
type HistoryHandler struct {
	sessionRepo repository.SessionRepository
}

func NewHistoryHandler(sessionRepo repository.SessionRepository) *HistoryHandler {
	return &HistoryHandler{
		sessionRepo: sessionRepo,
	}
}

func (h *HistoryHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessions, err := h.sessionRepo.ListSessions(r.Context(), user.Username)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessions)
}

func (h *HistoryHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID := mux.Vars(r)["session_id"]

	messages, err := h.sessionRepo.ListMessages(r.Context(), user.Username, sessionID)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}
