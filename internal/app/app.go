// Package app wires configuration into the repositories, blob host, GitHub
// client and services shared by the API server and the CLI.
package app

import (
	"errors"
	"fmt"

	"github.com/folio-works/portfolio-api/internal/config"
	"github.com/folio-works/portfolio-api/internal/database"
	"github.com/folio-works/portfolio-api/internal/ghcontent"
	"github.com/folio-works/portfolio-api/internal/history"
	"github.com/folio-works/portfolio-api/internal/repository"
	"github.com/folio-works/portfolio-api/internal/service"
	"github.com/folio-works/portfolio-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds the long-lived dependencies of a process
type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *gorm.DB
	Host   storage.Host

	Images  *service.ImageService
	Content *service.ContentService
	Sync    *service.SyncService
	Uploads *service.UploadService
}

// New connects to the database and builds every service. The caller owns the
// returned App and must Close it.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		log.Info("Database schema migrated", zap.String("driver", cfg.Database.Driver))
	}

	a, err := build(cfg, log, db)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return a, nil
}

func build(cfg *config.Config, log *zap.Logger, db *gorm.DB) (*App, error) {
	host, err := storage.NewHost(&cfg.Storage, cfg.App.PublicBaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Info("Blob host initialized", zap.String("host", host.Name()))

	// publisher and snapshots stay untyped nil when not configured
	var publisher service.Publisher
	client, err := ghcontent.New(&cfg.GitHub, log)
	switch {
	case errors.Is(err, ghcontent.ErrNotConfigured):
		log.Warn("GitHub repository not configured, publishing disabled")
	case err != nil:
		return nil, fmt.Errorf("failed to create github client: %w", err)
	default:
		publisher = client
		log.Info("GitHub publishing enabled",
			zap.String("repository", client.Repository()),
			zap.String("path", cfg.GitHub.Path),
		)
	}

	var snapshots service.SnapshotStore
	if cfg.History.Enabled {
		store, err := history.Open(&cfg.History)
		if err != nil {
			return nil, fmt.Errorf("failed to open history repository: %w", err)
		}
		snapshots = store
		log.Info("Publish history enabled", zap.String("path", cfg.History.Path))
	}

	maxBytes := cfg.Storage.MaxUploadBytes()
	images := service.NewImageService(repository.NewPendingImageRepository(db), maxBytes, log)
	content := service.NewContentService(repository.NewDocumentRepository(db), images, log)
	syncService := service.NewSyncService(
		content,
		images,
		repository.NewSyncRunRepository(db),
		host,
		publisher,
		snapshots,
		cfg,
		log,
	)
	uploads := service.NewUploadService(host, storage.NewImageKitSigner(&cfg.Storage.ImageKit), maxBytes, log)

	return &App{
		Config:  cfg,
		Logger:  log,
		DB:      db,
		Host:    host,
		Images:  images,
		Content: content,
		Sync:    syncService,
		Uploads: uploads,
	}, nil
}

// Close waits for background syncs and releases the database
func (a *App) Close() error {
	a.Sync.Wait()
	return database.Close(a.DB)
}
