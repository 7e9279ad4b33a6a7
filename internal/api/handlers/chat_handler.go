package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"ollama-gateway/internal/models"
	apperrors "ollama-gateway/internal/pkg/errors"
	"ollama-gateway/internal/services"
)

// ChatHandler dispatches chat requests after quota admission
type ChatHandler struct {
	chatService services.ChatService
}

func NewChatHandler(chatService services.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

type chatRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type denyResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID := mux.Vars(r)["session_id"]

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	reply, adm, err := h.chatService.Send(r.Context(), user.Username, sessionID, req.Model, req.Prompt, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			http.Error(w, "User not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrInvalidInput):
			http.Error(w, "model and prompt are required", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrServiceUnavailable):
			http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		case adm.Allowed():
			// Admitted but the dispatch or transcript step failed. The
			// charge stands.
			http.Error(w, "Model invocation failed", http.StatusBadGateway)
		default:
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	if !adm.Allowed() {
		writeDenial(w, adm)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatResponse{Response: reply})
}

func writeDenial(w http.ResponseWriter, adm models.Admission) {
	resp := denyResponse{Reason: string(adm.Status)}
	switch adm.Status {
	case models.AdmitDeniedPerUser:
		resp.Error = "Daily request limit reached"
	case models.AdmitDeniedGlobal:
		resp.Error = "Global daily request limit reached"
	default:
		resp.Error = "Request denied"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(resp)
}
