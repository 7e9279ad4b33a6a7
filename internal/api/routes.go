package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ollama-gateway/internal/api/handlers"
	"ollama-gateway/internal/middleware"
	"ollama-gateway/internal/services"
)

// Handlers bundles everything the router needs.
type Handlers struct {
	Auth    *handlers.AuthHandler
	Chat    *handlers.ChatHandler
	Limits  *handlers.LimitsHandler
	History *handlers.HistoryHandler
	Usage   *handlers.UsageHandler
	Admin   *handlers.AdminHandler
}

func SetupRoutes(h Handlers, authService services.AuthService) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)

	// Public routes
	router.HandleFunc("/auth/login", h.Auth.Login).Methods("POST")
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API routes (protected)
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.AuthMiddleware(authService))

	apiRouter.HandleFunc("/chat/{session_id}", h.Chat.SendMessage).Methods("POST")
	apiRouter.HandleFunc("/limits", h.Limits.GetLimits).Methods("GET")
	apiRouter.HandleFunc("/history", h.History.ListSessions).Methods("GET")
	apiRouter.HandleFunc("/history/{session_id}", h.History.GetMessages).Methods("GET")

	// Admin routes
	adminRouter := router.PathPrefix("/admin/api").Subrouter()
	adminRouter.Use(middleware.AdminMiddleware(authService))

	adminRouter.HandleFunc("/users", h.Admin.ListUsers).Methods("GET")
	adminRouter.HandleFunc("/users", h.Admin.CreateOrUpdateUser).Methods("POST")
	adminRouter.HandleFunc("/users/{username}", h.Admin.GetUser).Methods("GET")
	adminRouter.HandleFunc("/users/{username}", h.Admin.DeleteUser).Methods("DELETE")
	adminRouter.HandleFunc("/config", h.Admin.GetConfig).Methods("GET")
	adminRouter.HandleFunc("/config", h.Admin.UpdateConfig).Methods("POST")
	adminRouter.HandleFunc("/models", h.Admin.ListModels).Methods("GET")
	adminRouter.HandleFunc("/clear", h.Admin.ClearAll).Methods("POST")
	adminRouter.HandleFunc("/usage", h.Usage.GetAllUsage).Methods("GET")
	adminRouter.HandleFunc("/usage/{username}", h.Usage.GetUserUsage).Methods("GET")

	return router
}
