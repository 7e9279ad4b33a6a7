package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"ollama-gateway/internal/repository"
	"ollama-gateway/internal/services"
)

// LimitsHandler serves the authenticated user's quota view
type LimitsHandler struct {
	usageService services.UsageService
}

func NewLimitsHandler(usageService services.UsageService) *LimitsHandler {
	return &LimitsHandler{
		usageService: usageService,
	}
}

type limitInfo struct {
	DailyLimit int `json:"daily_limit"`
	Used       int `json:"used"`
	Remaining  int `json:"remaining"`
}

func (h *LimitsHandler) GetLimits(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	// Admins are exempt and have no meaningful numbers to report.
	if user.IsAdmin {
		json.NewEncoder(w).Encode(limitInfo{})
		return
	}

	stats, err := h.usageService.ForUser(r.Context(), user.Username, time.Now())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	limit := user.DailyLimit
	if limit <= 0 {
		limit = repository.DefaultDailyLimit
	}
	remaining := limit - stats.Day
	if remaining < 0 {
		remaining = 0
	}

	json.NewEncoder(w).Encode(limitInfo{
		DailyLimit: limit,
		Used:       stats.Day,
		Remaining:  remaining,
	})
}
