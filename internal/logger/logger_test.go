package logger_test

import (
	"testing"

	"github.com/folio-works/portfolio-api/internal/config"
	"github.com/folio-works/portfolio-api/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		logging config.LoggingConfig
		app     config.AppConfig
		debug   bool
	}{
		{"development console", config.LoggingConfig{Level: "debug", Format: "console"}, config.AppConfig{Name: "portfolio", Environment: "development"}, true},
		{"production json", config.LoggingConfig{Level: "info", Format: "json"}, config.AppConfig{Name: "portfolio", Environment: "production"}, false},
		{"invalid level falls back to info", config.LoggingConfig{Level: "loud"}, config.AppConfig{Environment: "development"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := logger.NewLogger(&tt.logging, &tt.app)
			require.NoError(t, err)
			require.NotNil(t, log)
			assert.Equal(t, tt.debug, log.Core().Enabled(zapcore.DebugLevel))
			assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
		})
	}
}

func TestWithHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	logger.WithSync(logger.WithAdmin(base, "admin@example.com", "sess-1"), "run-1", "manual").Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "admin@example.com", fields["admin"])
	assert.Equal(t, "sess-1", fields["sessionId"])
	assert.Equal(t, "run-1", fields["syncRunId"])
	assert.Equal(t, "manual", fields["trigger"])
}
