// Package session stores admin login sessions so issued tokens can be revoked
// on logout.
package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found or expired")

// Session is the server-side record behind an admin token.
type Session struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Store interface {
	Save(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}

func ttlFor(s Session) time.Duration {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return ttl
}
