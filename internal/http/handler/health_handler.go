package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/folio-works/portfolio-api/internal/database"
	"github.com/folio-works/portfolio-api/internal/session"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const healthTimeout = 3 * time.Second

// HealthHandler answers liveness and readiness checks
type HealthHandler struct {
	db       *gorm.DB
	sessions session.Store
	logger   *zap.Logger
}

func NewHealthHandler(db *gorm.DB, sessions session.Store, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, sessions: sessions, logger: logger}
}

// Live is the basic liveness check
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Database reports database health with pool statistics
func (h *HealthHandler) Database(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := database.Ping(ctx, h.db); err != nil {
		h.logger.Error("database health check failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"error":   err.Error(),
			"service": "database",
		})
		return
	}

	sqlDB, err := h.db.DB()
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"error":   err.Error(),
			"service": "database",
		})
		return
	}
	stats := sqlDB.Stats()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "database",
		"stats": map[string]interface{}{
			"maxOpenConnections": stats.MaxOpenConnections,
			"openConnections":    stats.OpenConnections,
			"inUse":              stats.InUse,
			"idle":               stats.Idle,
			"waitCount":          stats.WaitCount,
			"waitDurationMs":     stats.WaitDuration.Milliseconds(),
		},
	})
}

// Ready checks every dependency a request may need
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	checks := make(map[string]interface{})
	allHealthy := true

	record := func(name string, err error) {
		if err != nil {
			h.logger.Error("readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
			allHealthy = false
			return
		}
		checks[name] = map[string]interface{}{"status": "healthy"}
	}

	record("database", database.Ping(ctx, h.db))
	if h.sessions != nil {
		record("sessions", h.sessions.Ping(ctx))
	}

	status, code := "healthy", http.StatusOK
	if !allHealthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}
