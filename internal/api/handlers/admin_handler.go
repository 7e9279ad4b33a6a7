package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	apperrors "ollama-gateway/internal/pkg/errors"
	"ollama-gateway/internal/ollama"
	"ollama-gateway/internal/services"
)

// AdminHandler covers the administrative JSON API: user management,
// runtime configuration and the full wipe.
type AdminHandler struct {
	userService   services.UserService
	configService services.ConfigService
	usageService  services.UsageService
	runner        ollama.Runner
}

func NewAdminHandler(
	userService services.UserService,
	configService services.ConfigService,
	usageService services.UsageService,
	runner ollama.Runner,
) *AdminHandler {
	return &AdminHandler{
		userService:   userService,
		configService: configService,
		usageService:  usageService,
		runner:        runner,
	}
}

type userSummary struct {
	Username   string `json:"username"`
	IsAdmin    bool   `json:"is_admin"`
	DailyLimit int    `json:"daily_limit"`
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	payload := make([]userSummary, 0, len(users))
	for _, u := range users {
		payload = append(payload, userSummary{
			Username:   u.Username,
			IsAdmin:    u.IsAdmin,
			DailyLimit: u.DailyLimit,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

type userDetail struct {
	Username   string    `json:"username"`
	IsAdmin    bool      `json:"is_admin"`
	DailyLimit int       `json:"daily_limit"`
	CreatedAt  time.Time `json:"created_at"`
	ChatCount  int64     `json:"chat_count"`
	Day        int       `json:"day"`
	Total      int       `json:"total"`
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	user, err := h.userService.Get(r.Context(), username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	chatCount, err := h.userService.ChatCount(r.Context(), username)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	stats, err := h.usageService.ForUser(r.Context(), username, time.Now())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(userDetail{
		Username:   user.Username,
		IsAdmin:    user.IsAdmin,
		DailyLimit: user.DailyLimit,
		CreatedAt:  user.CreatedAt,
		ChatCount:  chatCount,
		Day:        stats.Day,
		Total:      stats.Total,
	})
}

type upsertUserRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	DailyLimit *int   `json:"daily_limit"`
}

func (h *AdminHandler) CreateOrUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req upsertUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var dailyLimit int
	if req.DailyLimit != nil {
		dailyLimit = *req.DailyLimit
	} else {
		// Absent limit falls back to the configured default, so a changed
		// default applies to users created afterwards.
		configured, err := h.configService.DefaultUserDailyLimit(r.Context())
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		dailyLimit = configured
	}

	if _, err := h.userService.CreateOrUpdate(r.Context(), req.Username, req.Password, dailyLimit); err != nil {
		if errors.Is(err, apperrors.ErrInvalidInput) {
			http.Error(w, "username and password required", http.StatusBadRequest)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "User '" + req.Username + "' created/updated.",
	})
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	if err := h.userService.Delete(r.Context(), username); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			http.Error(w, "User not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrForbidden):
			http.Error(w, "Cannot delete admin user", http.StatusForbidden)
		default:
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "User '" + username + "' deleted.",
	})
}

type configResponse struct {
	GlobalDailyLimit  int `json:"global_daily_limit"`
	DefaultDailyLimit int `json:"default_daily_limit"`
}

func (h *AdminHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	globalLimit, err := h.configService.GlobalDailyLimit(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defaultLimit, err := h.configService.DefaultUserDailyLimit(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(configResponse{
		GlobalDailyLimit:  globalLimit,
		DefaultDailyLimit: defaultLimit,
	})
}

type updateConfigRequest struct {
	GlobalDailyLimit  *int  `json:"global_daily_limit"`
	DefaultDailyLimit *int  `json:"default_daily_limit"`
	Cascade           *bool `json:"cascade"`
}

func (h *AdminHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.GlobalDailyLimit != nil {
		if err := h.configService.SetGlobalDailyLimit(r.Context(), *req.GlobalDailyLimit); err != nil {
			if errors.Is(err, apperrors.ErrInvalidInput) {
				http.Error(w, "limit must be non-negative", http.StatusBadRequest)
				return
			}
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}

	if req.DefaultDailyLimit != nil {
		// Cascading overwrites every non-admin user's limit, including
		// customized ones. Callers opt out with "cascade": false.
		cascade := true
		if req.Cascade != nil {
			cascade = *req.Cascade
		}
		if err := h.configService.SetDefaultUserDailyLimit(r.Context(), *req.DefaultDailyLimit, cascade); err != nil {
			if errors.Is(err, apperrors.ErrInvalidInput) {
				http.Error(w, "limit must be non-negative", http.StatusBadRequest)
				return
			}
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Configuration updated."})
}

func (h *AdminHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.runner.ListInstalled(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models)
}

type clearResponse struct {
	Message  string   `json:"message"`
	Warnings []string `json:"warnings,omitempty"`
}

func (h *AdminHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	warnings, err := h.userService.WipeAll(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(clearResponse{
		Message:  "Database cleared.",
		Warnings: warnings,
	})
}
