package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	apperrors "ollama-gateway/internal/pkg/errors"
	"ollama-gateway/internal/services"
)

// UsageHandler serves usage rollups to dashboards and admin views. These
// endpoints are read-only and safe to poll.
type UsageHandler struct {
	usageService services.UsageService
	userService  services.UserService
}

func NewUsageHandler(usageService services.UsageService, userService services.UserService) *UsageHandler {
	return &UsageHandler{
		usageService: usageService,
		userService:  userService,
	}
}

func (h *UsageHandler) GetAllUsage(w http.ResponseWriter, r *http.Request) {
	stats, err := h.usageService.ForAll(r.Context(), time.Now())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (h *UsageHandler) GetUserUsage(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	if _, err := h.userService.Get(r.Context(), username); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	stats, err := h.usageService.ForUser(r.Context(), username, time.Now())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
