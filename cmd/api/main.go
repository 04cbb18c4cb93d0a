package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/folio-works/portfolio-api/docs"
	"github.com/folio-works/portfolio-api/internal/app"
	"github.com/folio-works/portfolio-api/internal/auth"
	"github.com/folio-works/portfolio-api/internal/config"
	"github.com/folio-works/portfolio-api/internal/http/handler"
	"github.com/folio-works/portfolio-api/internal/http/middleware"
	"github.com/folio-works/portfolio-api/internal/http/router"
	"github.com/folio-works/portfolio-api/internal/jobs"
	"github.com/folio-works/portfolio-api/internal/logger"
	"github.com/folio-works/portfolio-api/internal/service"
	"github.com/folio-works/portfolio-api/internal/session"
	"github.com/folio-works/portfolio-api/internal/storage"
	"go.uber.org/zap"
)

// @title Portfolio API
// @version 1.0
// @description Content backend for a portfolio site: projects, about and home documents, pending images and GitHub publishing

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token from /auth/login

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for automation
// @Security BearerAuth
// @Security ApiKeyAuth

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	docs.SwaggerInfo.Host = swaggerHost(basicCfg)

	// In staging/production secrets may come from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	if cfg.Admin.JWTSecret == "" || cfg.Admin.PasswordHash == "" {
		log.Warn("Admin credentials are incomplete, login is disabled")
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("Error closing database", zap.Error(err))
		}
	}()

	if err := a.Sync.RecoverAbandoned(ctx); err != nil {
		log.Warn("Failed to recover abandoned sync runs", zap.Error(err))
	}

	sessions, err := newSessionStore(&cfg.Session, log)
	if err != nil {
		return err
	}
	defer func() { _ = sessions.Close() }()

	tokens := auth.NewTokenManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTLDuration())
	authService := service.NewAuthService(cfg, tokens, sessions, a.Sync, log)

	authMiddleware := auth.NewMiddleware(&cfg.Admin, tokens, sessions, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	maxBytes := cfg.Storage.MaxUploadBytes()
	handlers := router.Handlers{
		Health:  handler.NewHealthHandler(a.DB, sessions, log),
		Auth:    handler.NewAuthHandler(authService, log),
		Content: handler.NewContentHandler(a.Content, 4*maxBytes, log),
		Images:  handler.NewImageHandler(a.Images, maxBytes, log),
		Uploads: handler.NewUploadHandler(a.Uploads, maxBytes, log),
		Sync:    handler.NewSyncHandler(a.Sync, log),
	}
	// Local storage hands out URLs under /media, so this API serves them
	if downloader, ok := a.Host.(storage.Downloader); ok {
		handlers.Media = handler.NewMediaHandler(downloader, log)
	}

	rt := router.NewRouter(cfg, log, authMiddleware, rateLimiter, handlers)

	scheduler, err := startScheduler(cfg, a, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		if scheduler != nil {
			stopCtx := scheduler.Stop()
			<-stopCtx.Done()
			log.Info("Scheduler stopped")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		// a logout sync may still be publishing
		a.Sync.Wait()
		log.Info("Server stopped gracefully")
	}

	return nil
}

func swaggerHost(cfg *config.Config) string {
	if cfg.App.PublicBaseURL != "" {
		if u, err := url.Parse(cfg.App.PublicBaseURL); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return fmt.Sprintf("localhost:%d", cfg.App.Port)
}

func newSessionStore(cfg *config.SessionConfig, log *zap.Logger) (session.Store, error) {
	if cfg.RedisURL == "" {
		log.Info("Using in-memory session store")
		return session.NewMemoryStore(), nil
	}
	store, err := session.NewRedisStore(cfg.RedisURL, cfg.Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info("Using Redis session store", zap.String("prefix", cfg.Prefix))
	return store, nil
}

// startScheduler registers the periodic jobs. It returns nil when no job is enabled.
func startScheduler(cfg *config.Config, a *app.App, log *zap.Logger) (*jobs.Scheduler, error) {
	syncEnabled := cfg.Sync.Enabled && cfg.Sync.Schedule != ""
	pruneEnabled := cfg.Sync.PruneSchedule != ""
	if !syncEnabled && !pruneEnabled && !cfg.Sync.RunOnStartup {
		log.Info("Periodic jobs disabled")
		return nil, nil
	}

	scheduler := jobs.NewScheduler(log)

	if syncEnabled || cfg.Sync.RunOnStartup {
		cronExpr := ""
		if syncEnabled {
			cronExpr = cfg.Sync.Schedule
		}
		if err := jobs.RegisterContentSyncJob(
			scheduler,
			a.Sync,
			log,
			cronExpr,
			cfg.Sync.TimeoutDuration(),
			cfg.Sync.RunOnStartup,
		); err != nil {
			return nil, fmt.Errorf("failed to register content sync job: %w", err)
		}
	}

	if pruneEnabled {
		if err := jobs.RegisterImagePruneJob(
			scheduler,
			a.Images,
			log,
			cfg.Sync.PruneSchedule,
			cfg.Sync.PruneAfterDuration(),
		); err != nil {
			return nil, fmt.Errorf("failed to register image prune job: %w", err)
		}
	}

	scheduler.Start()
	log.Info("Scheduler started", zap.Strings("jobs", scheduler.GetJobNames()))
	return scheduler, nil
}
