package service

import "errors"

// Common service errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when a write lost a race with another write
	ErrConflict = errors.New("resource conflict")

	// ErrUnauthorized is returned when credentials are missing or wrong
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSyncInProgress is returned when a sync is requested while another one runs
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrTooLarge is returned when an image exceeds the configured upload limit
	ErrTooLarge = errors.New("payload too large")

	// ErrUpstream is returned when GitHub, a blob host or the deployed site fails
	ErrUpstream = errors.New("upstream service error")

	// ErrNotConfigured is returned when an optional integration has no configuration
	ErrNotConfigured = errors.New("integration not configured")
)
