package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/folio-works/portfolio-api/internal/config"
	"github.com/folio-works/portfolio-api/internal/domain"
	"github.com/folio-works/portfolio-api/internal/session"
	"go.uber.org/zap"
)

// Middleware handles authentication for HTTP requests
type Middleware struct {
	tokens   *TokenManager
	sessions session.Store
	apiKey   string
	logger   *zap.Logger
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(cfg *config.AdminConfig, tokens *TokenManager, sessions session.Store, logger *zap.Logger) *Middleware {
	return &Middleware{
		tokens:   tokens,
		sessions: sessions,
		apiKey:   cfg.APIKey,
		logger:   logger,
	}
}

// Authenticate accepts either the X-API-Key header or a Bearer token whose
// session has not been revoked.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
			if !m.validateAPIKey(apiKey) {
				m.logger.Warn("invalid API key attempt",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remoteAddr", r.RemoteAddr),
				)
				writeUnauthorized(w, "invalid API key")
				return
			}

			admin := &AdminContext{Email: "automation", Method: MethodAPIKey}
			m.logger.Debug("request authenticated",
				zap.String("path", r.URL.Path),
				zap.String("authType", string(MethodAPIKey)),
				zap.Duration("authDuration", time.Since(start)),
			)
			next.ServeHTTP(w, r.WithContext(WithAdminContext(r.Context(), admin)))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeUnauthorized(w, "invalid authorization header format")
			return
		}

		claims, err := m.tokens.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remoteAddr", r.RemoteAddr),
				zap.Error(err),
			)
			writeUnauthorized(w, err.Error())
			return
		}

		sess, err := m.sessions.Get(r.Context(), claims.ID)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				m.logger.Error("session lookup failed", zap.Error(err))
			}
			writeUnauthorized(w, "session expired or revoked")
			return
		}

		admin := &AdminContext{
			Email:     sess.Email,
			SessionID: sess.ID,
			ExpiresAt: sess.ExpiresAt,
			Method:    MethodJWT,
		}
		m.logger.Debug("request authenticated",
			zap.String("path", r.URL.Path),
			zap.String("authType", string(MethodJWT)),
			zap.String("sessionId", sess.ID),
			zap.Duration("authDuration", time.Since(start)),
		)
		next.ServeHTTP(w, r.WithContext(WithAdminContext(r.Context(), admin)))
	})
}

func (m *Middleware) validateAPIKey(key string) bool {
	if m.apiKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(m.apiKey)) == 1
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="portfolio-api"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(domain.APIError{
		Type:   domain.ErrorTypeUnauthorized,
		Title:  http.StatusText(http.StatusUnauthorized),
		Status: http.StatusUnauthorized,
		Detail: detail,
	})
}
