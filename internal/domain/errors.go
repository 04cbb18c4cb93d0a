package domain

// APIError represents a standardized API error with HTTP status code
type APIError struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Title
}

// ValidationMessages provides human-readable validation error messages
var ValidationMessages = map[string]string{
	"required": "This field is required",
	"email":    "Must be a valid email address",
	"max":      "Exceeds maximum length",
	"min":      "Below minimum length",
	"url":      "Must be a valid URL",
	"oneof":    "Must be one of the allowed values",
	"uuid":     "Must be a valid UUID",
}

// GetValidationMessage returns a human-readable message for a validation tag
func GetValidationMessage(tag string) string {
	if msg, ok := ValidationMessages[tag]; ok {
		return msg
	}
	return "Validation failed: " + tag
}

// Common error types for RFC 7807 Problem Details
const (
	ErrorTypeValidation      = "validation_error"
	ErrorTypeNotFound        = "not_found"
	ErrorTypeBadRequest      = "bad_request"
	ErrorTypeConflict        = "conflict"
	ErrorTypeUnauthorized    = "unauthorized"
	ErrorTypeForbidden       = "forbidden"
	ErrorTypeTooLarge        = "payload_too_large"
	ErrorTypeUpstream        = "upstream_error"
	ErrorTypeUnavailable     = "service_unavailable"
	ErrorTypeInternal        = "internal_error"
	ErrorTypeTooManyRequests = "too_many_requests"
)
