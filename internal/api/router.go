package api

import (
	"log/slog"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/familyhub/schoolmail-backend/internal/api/handlers"
	"github.com/familyhub/schoolmail-backend/internal/api/middleware"
	"github.com/familyhub/schoolmail-backend/internal/mail"
	"github.com/familyhub/schoolmail-backend/internal/repository"
	"github.com/familyhub/schoolmail-backend/internal/services"
	"github.com/familyhub/schoolmail-backend/internal/websocket"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	DB           *gorm.DB
	Cipher       *mail.CredentialCipher
	SyncService  *services.SyncService
	BatchService *services.BatchService
	Associations *services.AssociationService
	Hub          *websocket.Hub
	Logger       *slog.Logger
	// Security configuration
	APIKey         string   // API key for authentication (empty = disabled)
	AllowedOrigins []string // Allowed CORS origins
	RateLimit      int      // Requests per second (0 = use env default)
	RateBurst      int      // Burst size for rate limiter
	EnableAuth     bool     // Enable API key authentication
}

// NewRouter creates and configures the Echo router with all routes
func NewRouter(cfg *RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Security Middleware (applied in correct order)
	// 1. Recover from panics
	e.Use(middleware.Recover())

	// 2. Security headers (applied to all responses)
	e.Use(middleware.SecureHeaders())

	// 3. CORS - Set environment variable if origins provided in config
	if len(cfg.AllowedOrigins) > 0 {
		os.Setenv("ALLOWED_ORIGINS", strings.Join(cfg.AllowedOrigins, ","))
	}
	e.Use(middleware.SecureCORS())

	// 4. Rate limiting - use RateLimiterWithConfig if custom values provided
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiterWithConfig(float64(cfg.RateLimit), cfg.RateBurst, cfg.Logger))
	} else {
		e.Use(middleware.RateLimiter(cfg.Logger))
	}

	// 5. Request logging
	if cfg.Logger != nil {
		e.Use(middleware.RequestLogger(cfg.Logger))
	}

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(cfg.DB)
	emailRepo := repository.NewEmailRepository(cfg.DB)
	childRepo := repository.NewChildRepository(cfg.DB)
	eventRepo := repository.NewEventRepository(cfg.DB)
	assocRepo := repository.NewAssociationRepository(cfg.DB)
	actionRepo := repository.NewActionRepository(cfg.DB)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB)
	accountHandler := handlers.NewAccountHandler(accountRepo, cfg.Cipher)
	syncHandler := handlers.NewSyncHandler(cfg.SyncService, cfg.BatchService)
	emailHandler := handlers.NewEmailHandler(emailRepo, eventRepo, actionRepo)
	associationHandler := handlers.NewAssociationHandler(assocRepo, cfg.Associations)
	childHandler := handlers.NewChildHandler(childRepo)

	// Health routes (no auth required)
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)

	// WebSocket endpoint for sync progress events
	if cfg.Hub != nil {
		e.GET("/ws", websocketHandler(cfg.Hub, cfg.Logger))
	}

	// API routes
	api := e.Group("/api")

	// Apply API key authentication if enabled
	// Set API_KEY env var if provided in config
	if cfg.EnableAuth && cfg.APIKey != "" {
		os.Setenv("API_KEY", cfg.APIKey)
	}
	api.Use(middleware.APIKeyAuth(cfg.Logger))

	// Account routes
	accounts := api.Group("/accounts")
	accounts.POST("", accountHandler.Create)
	accounts.GET("", accountHandler.List)
	accounts.GET("/:id", accountHandler.Get)
	accounts.POST("/:id/sync", syncHandler.SyncAccount)

	// Sync-all and backlog routes
	api.POST("/sync", syncHandler.SyncAll)

	// Email routes
	emails := api.Group("/emails")
	emails.GET("", emailHandler.List)
	emails.POST("/process", syncHandler.ProcessUnprocessed)
	emails.GET("/unprocessed/count", syncHandler.UnprocessedCount)
	emails.GET("/:id", emailHandler.Get)
	emails.POST("/:id/process", associationHandler.ProcessEmail)
	emails.GET("/:id/events", emailHandler.ListEvents)
	emails.GET("/:id/actions", emailHandler.ListActions)
	emails.GET("/:id/associations", associationHandler.ListForEmail)
	emails.POST("/:id/feedback", associationHandler.SubmitFeedback)

	// Action routes
	api.PATCH("/actions/:id/complete", emailHandler.CompleteAction)

	// Association verification
	api.POST("/associations/:id/verify", associationHandler.Verify)

	// Children routes
	children := api.Group("/children")
	children.POST("", childHandler.Create)
	children.GET("", childHandler.List)
	children.GET("/:id", childHandler.Get)

	return e
}

// websocketHandler upgrades the connection and attaches the client to
// the hub.
func websocketHandler(hub *websocket.Hub, logger *slog.Logger) echo.HandlerFunc {
	upgrader := websocket.NewSecureUpgrader(logger)
	return func(c echo.Context) error {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}

		client := websocket.NewClient(hub, conn, logger)
		hub.Register(client)

		go client.WritePump()
		go client.ReadPump()
		return nil
	}
}
