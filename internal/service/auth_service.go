package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/folio-works/portfolio-api/internal/auth"
	"github.com/folio-works/portfolio-api/internal/config"
	"github.com/folio-works/portfolio-api/internal/domain"
	"github.com/folio-works/portfolio-api/internal/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BackgroundSyncer starts a sync that outlives the request
type BackgroundSyncer interface {
	TriggerBackground(trigger domain.SyncTrigger) bool
}

// AuthService handles admin login and logout
type AuthService struct {
	admin        config.AdminConfig
	syncOnLogout bool
	tokens       *auth.TokenManager
	sessions     session.Store
	syncer       BackgroundSyncer
	logger       *zap.Logger
}

// NewAuthService creates a new AuthService. syncer may be nil.
func NewAuthService(cfg *config.Config, tokens *auth.TokenManager, sessions session.Store, syncer BackgroundSyncer, logger *zap.Logger) *AuthService {
	return &AuthService{
		admin:        cfg.Admin,
		syncOnLogout: cfg.Sync.SyncOnLogout,
		tokens:       tokens,
		sessions:     sessions,
		syncer:       syncer,
		logger:       logger,
	}
}

// Login checks the admin credentials and opens a session
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	if err := auth.CheckCredentials(s.admin.Email, s.admin.PasswordHash, req.Email, req.Password); err != nil {
		s.logger.Warn("failed admin login", zap.String("email", req.Email))
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	sessionID := uuid.New().String()
	token, expiresAt, err := s.tokens.Issue(s.admin.Email, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	if err := s.sessions.Save(ctx, session.Session{
		ID:        sessionID,
		Email:     s.admin.Email,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("admin logged in", zap.String("sessionId", sessionID))
	return &domain.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		Email:       s.admin.Email,
	}, nil
}

// Logout revokes the session and, when enabled, publishes pending edits in the background
func (s *AuthService) Logout(ctx context.Context, admin *auth.AdminContext) (*domain.LogoutResponse, error) {
	if admin == nil {
		return nil, ErrUnauthorized
	}
	if admin.IsSession() {
		if err := s.sessions.Delete(ctx, admin.SessionID); err != nil && !errors.Is(err, session.ErrNotFound) {
			return nil, fmt.Errorf("failed to revoke session: %w", err)
		}
	}

	started := false
	if s.syncOnLogout && s.syncer != nil {
		started = s.syncer.TriggerBackground(domain.SyncTriggerLogout)
	}

	s.logger.Info("admin logged out",
		zap.String("sessionId", admin.SessionID),
		zap.Bool("syncStarted", started),
	)
	return &domain.LogoutResponse{SyncStarted: started}, nil
}

// Me describes the authenticated admin
func (s *AuthService) Me(admin *auth.AdminContext) domain.AdminDTO {
	return domain.AdminDTO{
		Email:     admin.Email,
		SessionID: admin.SessionID,
		ExpiresAt: admin.ExpiresAt,
		Method:    string(admin.Method),
	}
}
