package auth

import (
	"context"
	"time"
)

// Method records how a request was authenticated
type Method string

const (
	MethodJWT    Method = "jwt"
	MethodAPIKey Method = "api_key"
)

// AdminContext holds the authenticated admin for the current request
type AdminContext struct {
	Email     string
	SessionID string
	ExpiresAt time.Time
	Method    Method
}

// IsSession reports whether the request carries a revocable login session
func (a *AdminContext) IsSession() bool {
	return a.Method == MethodJWT && a.SessionID != ""
}

type contextKey string

const adminContextKey contextKey = "adminContext"

// WithAdminContext adds admin context to the context
func WithAdminContext(ctx context.Context, admin *AdminContext) context.Context {
	return context.WithValue(ctx, adminContextKey, admin)
}

// FromContext extracts admin context from the context
func FromContext(ctx context.Context) (*AdminContext, bool) {
	admin, ok := ctx.Value(adminContextKey).(*AdminContext)
	return admin, ok
}

// MustFromContext extracts admin context or panics
func MustFromContext(ctx context.Context) *AdminContext {
	admin, ok := FromContext(ctx)
	if !ok {
		panic("admin context not found in context")
	}
	return admin
}
