package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/familyhub/schoolmail-backend/internal/ai"
	"github.com/familyhub/schoolmail-backend/internal/api"
	"github.com/familyhub/schoolmail-backend/internal/config"
	"github.com/familyhub/schoolmail-backend/internal/database"
	"github.com/familyhub/schoolmail-backend/internal/mail"
	"github.com/familyhub/schoolmail-backend/internal/repository"
	"github.com/familyhub/schoolmail-backend/internal/services"
	"github.com/familyhub/schoolmail-backend/internal/storage"
	"github.com/familyhub/schoolmail-backend/internal/websocket"
)

func main() {
	// Load configuration first so the log level is known
	cfg, err := config.LoadWithValidation()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("starting schoolmail backend")
	cfg.LogConfig(logger)

	// Database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Error("failed to close database", slog.String("error", err.Error()))
		}
	}()

	if err := database.Migrate(db); err != nil {
		logger.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Attachment storage
	fileStorage, err := storage.NewLocalStorage(cfg.AttachmentStoragePath)
	if err != nil {
		logger.Error("failed to initialize file storage", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Credential cipher protects stored mailbox credentials at rest
	cipher, err := mail.NewCredentialCipher(cfg.CredentialEncryptionKey)
	if err != nil {
		logger.Error("failed to initialize credential cipher", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Repositories
	accountRepo := repository.NewAccountRepository(db)
	emailRepo := repository.NewEmailRepository(db)
	childRepo := repository.NewChildRepository(db)
	eventRepo := repository.NewEventRepository(db)
	assocRepo := repository.NewAssociationRepository(db)
	actionRepo := repository.NewActionRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)

	// WebSocket hub for sync and classification events
	hub := websocket.NewHub(logger)
	go hub.Run()
	notifier := websocket.NewHubNotifier(hub)

	// Classification pipeline
	analyzer := ai.NewClient(cfg.AnthropicAPIKey, cfg.AIModel)
	associations := services.NewAssociationService(
		emailRepo, childRepo, eventRepo, assocRepo, actionRepo, feedbackRepo,
		analyzer, notifier, logger,
	)

	queueCtx, queueCancel := context.WithCancel(context.Background())
	defer queueCancel()

	queue := services.NewClassifyQueue(associations, logger,
		services.WithQueueCapacity(cfg.QueueCapacity))
	queue.Start(queueCtx)

	// Ingestion and sync
	ingest := services.NewIngestService(emailRepo, fileStorage, logger)
	sources := services.NewSourceFactory(cipher, logger)
	syncService := services.NewSyncService(
		accountRepo, ingest, sources, queue, notifier, cfg.SyncFetchLimit, logger,
	)
	batchService := services.NewBatchService(emailRepo, associations, cfg.BatchSize, logger)

	// HTTP router
	e := api.NewRouter(&api.RouterConfig{
		DB:             db,
		Cipher:         cipher,
		SyncService:    syncService,
		BatchService:   batchService,
		Associations:   associations,
		Hub:            hub,
		Logger:         logger,
		APIKey:         cfg.APIKey,
		AllowedOrigins: splitOrigins(cfg.AllowedOrigins),
		RateLimit:      int(cfg.RateLimitRequests),
		RateBurst:      cfg.RateLimitBurst,
		EnableAuth:     cfg.APIKey != "",
	})

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		logger.Info("http server listening", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}

	// Stop the classification worker after the server stops accepting
	// requests so in-flight enqueues are not dropped mid-request.
	queue.Stop()
	queueCancel()

	logger.Info("server stopped")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
