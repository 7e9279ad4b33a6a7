package main

import (
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"ollama-gateway/internal/api"
	"ollama-gateway/internal/api/handlers"
	"ollama-gateway/internal/config"
	"ollama-gateway/internal/database"
	"ollama-gateway/internal/ollama"
	"ollama-gateway/internal/repository"
	"ollama-gateway/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	// Initialize database connection
	db, err := database.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Get underlying *sql.DB instance for connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to get underlying *sql.DB instance:", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	configRepo := repository.NewConfigRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	// Reporting cache is optional; without redis every report hits the
	// ledger directly.
	cacheConfig := config.NewCacheConfig()
	var cache services.CacheService
	if redisCache, err := services.NewRedisCacheService(cacheConfig); err != nil {
		log.Printf("Warning: usage cache disabled: %v", err)
	} else {
		cache = redisCache
	}

	// Initialize services
	runner := ollama.NewCLIRunner(cfg.OllamaCmd, cfg.ChatTimeout)

	authService := services.NewAuthService(userRepo, cfg.JWTSecret)
	quotaService := services.NewQuotaService(userRepo, usageRepo)
	usageService := services.NewUsageService(usageRepo, cache, cacheConfig.DefaultTTL)
	configService := services.NewConfigService(configRepo, userRepo)
	chatService := services.NewChatService(quotaService, sessionRepo, runner)
	userService := services.NewUserService(userRepo, sessionRepo, usageService, runner)

	// Initialize handlers and router
	router := api.SetupRoutes(api.Handlers{
		Auth:    handlers.NewAuthHandler(authService),
		Chat:    handlers.NewChatHandler(chatService),
		Limits:  handlers.NewLimitsHandler(usageService),
		History: handlers.NewHistoryHandler(sessionRepo),
		Usage:   handlers.NewUsageHandler(usageService, userService),
		Admin:   handlers.NewAdminHandler(userService, configService, usageService, runner),
	}, authService)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
		},
		AllowCredentials: true,
		MaxAge:           300,
	})

	// Create server with timeouts. The chat dispatch can be slow, so the
	// write timeout follows the configured model timeout.
	srv := &http.Server{
		Handler:      corsMiddleware.Handler(router),
		Addr:         ":" + cfg.Port,
		WriteTimeout: cfg.ChatTimeout + 15*time.Second,
		ReadTimeout:  15 * time.Second,
	}

	// Start server
	log.Printf("Server starting on port %s...", cfg.Port)
	log.Fatal(srv.ListenAndServe())
}
