package service

import (
	"context"
	"testing"
	"time"

	"github.com/folio-works/portfolio-api/internal/auth"
	"github.com/folio-works/portfolio-api/internal/config"
	"github.com/folio-works/portfolio-api/internal/domain"
	"github.com/folio-works/portfolio-api/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fakeSyncer struct {
	triggers []domain.SyncTrigger
}

func (f *fakeSyncer) TriggerBackground(trigger domain.SyncTrigger) bool {
	f.triggers = append(f.triggers, trigger)
	return true
}

func newAuthService(t *testing.T, syncOnLogout bool) (*AuthService, *auth.TokenManager, session.Store, *fakeSyncer) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		Admin: config.AdminConfig{Email: "admin@example.com", PasswordHash: string(hash), JWTSecret: "test-secret"},
		Sync:  config.SyncConfig{SyncOnLogout: syncOnLogout},
	}
	tokens := auth.NewTokenManager(cfg.Admin.JWTSecret, time.Hour)
	sessions := session.NewMemoryStore()
	syncer := &fakeSyncer{}
	return NewAuthService(cfg, tokens, sessions, syncer, zap.NewNop()), tokens, sessions, syncer
}

func TestAuthService_Login(t *testing.T) {
	svc, tokens, sessions, _ := newAuthService(t, true)
	ctx := context.Background()

	resp, err := svc.Login(ctx, domain.LoginRequest{Email: "Admin@Example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "admin@example.com", resp.Email)

	claims, err := tokens.Validate(resp.AccessToken)
	require.NoError(t, err)

	stored, err := sessions.Get(ctx, claims.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", stored.Email)
}

func TestAuthService_LoginRejectsBadCredentials(t *testing.T) {
	svc, _, _, _ := newAuthService(t, true)

	_, err := svc.Login(context.Background(), domain.LoginRequest{Email: "admin@example.com", Password: "wrong"})
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Login(context.Background(), domain.LoginRequest{Email: "other@example.com", Password: "correct horse"})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthService_Logout(t *testing.T) {
	svc, tokens, sessions, syncer := newAuthService(t, true)
	ctx := context.Background()

	resp, err := svc.Login(ctx, domain.LoginRequest{Email: "admin@example.com", Password: "correct horse"})
	require.NoError(t, err)
	claims, err := tokens.Validate(resp.AccessToken)
	require.NoError(t, err)

	admin := &auth.AdminContext{Email: claims.Email, SessionID: claims.ID, Method: auth.MethodJWT}
	out, err := svc.Logout(ctx, admin)
	require.NoError(t, err)
	assert.True(t, out.SyncStarted)
	assert.Equal(t, []domain.SyncTrigger{domain.SyncTriggerLogout}, syncer.triggers)

	_, err = sessions.Get(ctx, claims.ID)
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestAuthService_LogoutWithoutSync(t *testing.T) {
	svc, _, _, syncer := newAuthService(t, false)

	out, err := svc.Logout(context.Background(), &auth.AdminContext{Email: "admin@example.com", Method: auth.MethodAPIKey})
	require.NoError(t, err)
	assert.False(t, out.SyncStarted)
	assert.Empty(t, syncer.triggers)

	_, err = svc.Logout(context.Background(), nil)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthService_Me(t *testing.T) {
	svc, _, _, _ := newAuthService(t, true)
	dto := svc.Me(&auth.AdminContext{Email: "admin@example.com", SessionID: "s1", Method: auth.MethodJWT})
	assert.Equal(t, "jwt", dto.Method)
	assert.Equal(t, "s1", dto.SessionID)
}
