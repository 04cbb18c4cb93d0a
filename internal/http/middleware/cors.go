package middleware

import (
	"net/http"
	"slices"

	"github.com/folio-works/portfolio-api/internal/config"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

var (
	defaultCORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	defaultCORSHeaders = []string{"Accept", "Authorization", "Content-Type", "X-API-Key", RequestIDHeader}
)

// CORS returns a CORS middleware for the admin panel origins
func CORS(cfg *config.CORSConfig, environment string, logger *zap.Logger) func(http.Handler) http.Handler {
	options := cors.Options{
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   cfg.ExposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}
	if len(options.AllowedMethods) == 0 {
		options.AllowedMethods = defaultCORSMethods
	}
	if len(options.AllowedHeaders) == 0 {
		options.AllowedHeaders = defaultCORSHeaders
	}
	if len(options.ExposedHeaders) == 0 {
		options.ExposedHeaders = []string{RequestIDHeader}
	}

	isDev := environment == "development" || environment == "local" || environment == ""
	allowAny := func(r *http.Request, origin string) bool { return origin != "" }

	switch {
	case slices.Contains(cfg.AllowedOrigins, "*"):
		if !isDev {
			logger.Warn("CORS configured with wildcard origin in non-development environment",
				zap.String("environment", environment))
		}
		options.AllowOriginFunc = allowAny
	case len(cfg.AllowedOrigins) > 0:
		options.AllowedOrigins = cfg.AllowedOrigins
		logger.Info("CORS configured with explicit origins",
			zap.Strings("origins", cfg.AllowedOrigins))
	case isDev:
		options.AllowOriginFunc = allowAny
		logger.Info("CORS configured to allow all origins in development mode")
	default:
		// empty AllowedOrigins means "*" to go-chi/cors, so deny explicitly
		options.AllowOriginFunc = func(r *http.Request, origin string) bool { return false }
		logger.Warn("CORS configured with no allowed origins - all cross-origin requests will be denied",
			zap.String("environment", environment))
	}

	return cors.Handler(options)
}
