package logger

import (
	"fmt"

	"github.com/folio-works/portfolio-api/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a new structured logger
func NewLogger(cfg *config.LoggingConfig, appCfg *config.AppConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" || appCfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	zapCfg.InitialFields = map[string]interface{}{
		"app":         appCfg.Name,
		"environment": appCfg.Environment,
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return logger, nil
}

// WithRequest adds request context to logger
func WithRequest(logger *zap.Logger, method, path, requestID string) *zap.Logger {
	return logger.With(
		zap.String("method", method),
		zap.String("path", path),
		zap.String("requestId", requestID),
	)
}

// WithAdmin adds the authenticated admin to logger
func WithAdmin(logger *zap.Logger, email, sessionID string) *zap.Logger {
	return logger.With(
		zap.String("admin", email),
		zap.String("sessionId", sessionID),
	)
}

// WithSync tags log lines belonging to one sync run
func WithSync(logger *zap.Logger, runID, trigger string) *zap.Logger {
	return logger.With(
		zap.String("syncRunId", runID),
		zap.String("trigger", trigger),
	)
}
