package router

import (
	"net/http"

	"github.com/folio-works/portfolio-api/internal/auth"
	"github.com/folio-works/portfolio-api/internal/config"
	"github.com/folio-works/portfolio-api/internal/http/handler"
	"github.com/folio-works/portfolio-api/internal/http/middleware"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	_ "github.com/folio-works/portfolio-api/docs" // Import generated swagger docs
)

// Handlers groups the HTTP handlers mounted by the router. Media is nil unless
// images are hosted by this API (storage mode "local").
type Handlers struct {
	Health  *handler.HealthHandler
	Auth    *handler.AuthHandler
	Content *handler.ContentHandler
	Images  *handler.ImageHandler
	Uploads *handler.UploadHandler
	Sync    *handler.SyncHandler
	Media   *handler.MediaHandler
}

type Router struct {
	cfg            *config.Config
	logger         *zap.Logger
	authMiddleware *auth.Middleware
	rateLimiter    *middleware.RateLimiter
	handlers       Handlers
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	handlers Handlers,
) *Router {
	return &Router{
		cfg:            cfg,
		logger:         logger,
		authMiddleware: authMiddleware,
		rateLimiter:    rateLimiter,
		handlers:       handlers,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()
	h := rt.handlers

	// Global middleware
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	// Health checks
	r.Get("/health", h.Health.Live)
	r.Get("/health/db", h.Health.Database)
	r.Get("/health/ready", h.Health.Ready)

	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	// Published images in local storage mode
	if h.Media != nil {
		r.Get("/media/*", h.Media.Serve)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.With(rt.rateLimiter.LimitLogin).Post("/auth/login", h.Auth.Login)
		// image tags cannot send credentials
		r.Get("/images/{id}", h.Images.Get)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.Authenticate)

			// Auth
			r.Get("/auth/me", h.Auth.Me)
			r.Post("/auth/logout", h.Auth.Logout)

			// Content
			r.Route("/content", func(r chi.Router) {
				r.Get("/", h.Content.Export)
				r.Post("/import", h.Content.Import)
				r.Get("/documents", h.Content.Documents)
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", h.Content.ListProjects)
				r.Post("/", h.Content.CreateProject)
				r.Put("/", h.Content.ReplaceProjects)
				r.Delete("/", h.Content.ResetProjects)
				r.Get("/{id}", h.Content.GetProject)
				r.Patch("/{id}", h.Content.UpdateProject)
				r.Put("/{id}", h.Content.UpdateProject)
				r.Delete("/{id}", h.Content.DeleteProject)
			})

			r.Route("/about", func(r chi.Router) {
				r.Get("/", h.Content.GetAbout)
				r.Put("/", h.Content.UpdateAbout)
				r.Delete("/", h.Content.ResetAbout)
			})

			r.Route("/home", func(r chi.Router) {
				r.Get("/", h.Content.GetHome)
				r.Put("/", h.Content.UpdateHome)
				r.Delete("/", h.Content.ResetHome)
			})

			// Pending images
			r.Route("/images", func(r chi.Router) {
				r.Get("/", h.Images.List)
				r.Post("/", h.Images.Save)
				r.Delete("/{id}", h.Images.Delete)
			})

			// Direct uploads to the blob host
			r.Route("/uploads", func(r chi.Router) {
				r.Post("/", h.Uploads.Upload)
				r.Get("/imagekit/auth", h.Uploads.ImageKitAuth)
			})

			// Sync
			r.Route("/sync", func(r chi.Router) {
				r.Post("/", h.Sync.Sync)
				r.Get("/status", h.Sync.Status)
				r.Get("/runs", h.Sync.ListRuns)
				r.Get("/runs/{id}", h.Sync.GetRun)
				r.Post("/pull", h.Sync.Pull)
				r.Post("/migrate-images", h.Sync.MigrateImages)
				r.Post("/repair-refs", h.Sync.RepairReferences)
				r.Post("/scrape-images", h.Sync.ScrapeImages)
			})

			r.Get("/deployed", h.Sync.Deployed)

			// Publish history
			r.Route("/history", func(r chi.Router) {
				r.Get("/", h.Sync.ListVersions)
				r.Get("/{hash}", h.Sync.GetVersion)
				r.Post("/{hash}/restore", h.Sync.RestoreVersion)
			})
		})
	})

	return r
}
