package handler

import (
	"net/http"

	"github.com/folio-works/portfolio-api/internal/auth"
	"github.com/folio-works/portfolio-api/internal/domain"
	"github.com/folio-works/portfolio-api/internal/service"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *service.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Login godoc
// @Summary Log in as the admin
// @Description Checks the admin credentials and returns a bearer token bound to a new session
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body domain.LoginRequest true "Credentials"
// @Success 200 {object} domain.LoginResponse
// @Failure 400 {object} domain.APIError
// @Failure 401 {object} domain.APIError
// @Failure 429 {object} domain.APIError
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeAndValidate(w, r, maxJSONBody, &req) {
		return
	}

	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		if statusForError(err) == http.StatusUnauthorized {
			respondWithError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		handleServiceError(w, h.logger, err, "Failed to log in")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Logout godoc
// @Summary Log out
// @Description Revokes the current session and, when enabled, publishes pending edits in the background
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.LogoutResponse
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	admin, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	resp, err := h.authService.Logout(r.Context(), admin)
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to log out")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Me godoc
// @Summary Get the current admin
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.AdminDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	admin, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	respondJSON(w, http.StatusOK, h.authService.Me(admin))
}
