package handler

import (
	"net/http"

	"github.com/folio-works/portfolio-api/internal/domain"
	"github.com/folio-works/portfolio-api/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ContentHandler serves the projects, about and home documents
type ContentHandler struct {
	contentService *service.ContentService
	// maxBodyBytes allows for inline data URL images in content writes
	maxBodyBytes int64
	logger       *zap.Logger
}

func NewContentHandler(contentService *service.ContentService, maxBodyBytes int64, logger *zap.Logger) *ContentHandler {
	if maxBodyBytes < maxJSONBody {
		maxBodyBytes = maxJSONBody
	}
	return &ContentHandler{
		contentService: contentService,
		maxBodyBytes:   maxBodyBytes,
		logger:         logger,
	}
}

// Export godoc
// @Summary Export all content
// @Description Returns the site data exactly as it would be published, image references unresolved
// @Tags Content
// @Produce json
// @Success 200 {object} domain.SiteData
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /content [get]
func (h *ContentHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.contentService.Export(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to export content")
		return
	}
	respondJSON(w, http.StatusOK, data)
}

// Import godoc
// @Summary Import site data
// @Description mode=seed writes only documents that were never saved, mode=replace overwrites everything
// @Tags Content
// @Accept json
// @Produce json
// @Param request body domain.ImportRequest true "Import request"
// @Success 200 {object} domain.ImportResult
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /content/import [post]
func (h *ContentHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req domain.ImportRequest
	if !decodeAndValidate(w, r, h.maxBodyBytes, &req) {
		return
	}

	result, err := h.contentService.Import(r.Context(), req.Data, req.Mode)
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to import content")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Documents godoc
// @Summary Describe stored documents
// @Tags Content
// @Produce json
// @Success 200 {array} domain.DocumentInfo
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /content/documents [get]
func (h *ContentHandler) Documents(w http.ResponseWriter, r *http.Request) {
	docs, err := h.contentService.Documents(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to list documents")
		return
	}
	respondJSON(w, http.StatusOK, docs)
}

// ============================================================================
// Projects
// ============================================================================

// ListProjects godoc
// @Summary List projects
// @Tags Projects
// @Produce json
// @Success 200 {array} domain.Project
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects [get]
func (h *ContentHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.contentService.GetProjects(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to get projects")
		return
	}
	respondJSON(w, http.StatusOK, projects)
}

// GetProject godoc
// @Summary Get a project
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} domain.Project
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{id} [get]
func (h *ContentHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.contentService.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to get project")
		return
	}
	respondJSON(w, http.StatusOK, project)
}

// CreateProject godoc
// @Summary Create a project
// @Description Creates a project with placeholder details; the ID is derived from the title unless given
// @Tags Projects
// @Accept json
// @Produce json
// @Param request body domain.CreateProjectRequest true "Project"
// @Success 201 {object} domain.Project
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects [post]
func (h *ContentHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProjectRequest
	if !decodeAndValidate(w, r, h.maxBodyBytes, &req) {
		return
	}

	project, err := h.contentService.CreateProject(r.Context(), req)
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to create project")
		return
	}

	w.Header().Set("Location", "/api/v1/projects/"+project.ID)
	respondJSON(w, http.StatusCreated, project)
}

// UpdateProject godoc
// @Summary Update a project
// @Description Partial update; omitted fields are left untouched
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body domain.UpdateProjectRequest true "Fields to change"
// @Success 200 {object} domain.Project
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{id} [patch]
func (h *ContentHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateProjectRequest
	if !decodeAndValidate(w, r, h.maxBodyBytes, &req) {
		return
	}

	project, err := h.contentService.UpdateProject(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to update project")
		return
	}
	respondJSON(w, http.StatusOK, project)
}

// DeleteProject godoc
// @Summary Delete a project
// @Tags Projects
// @Param id path string true "Project ID"
// @Success 204
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{id} [delete]
func (h *ContentHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.contentService.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, h.logger, err, "Failed to delete project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReplaceProjects godoc
// @Summary Replace all projects
// @Description Saves the whole list, e.g. after reordering
// @Tags Projects
// @Accept json
// @Produce json
// @Param request body []domain.Project true "Projects"
// @Success 200 {array} domain.Project
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects [put]
func (h *ContentHandler) ReplaceProjects(w http.ResponseWriter, r *http.Request) {
	var projects []domain.Project
	if !decodeJSON(w, r, h.maxBodyBytes, &projects) {
		return
	}
	if projects == nil {
		respondWithError(w, http.StatusBadRequest, "Request body must be an array of projects")
		return
	}

	saved, err := h.contentService.ReplaceProjects(r.Context(), projects)
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to save projects")
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

// ResetProjects godoc
// @Summary Reset projects to the defaults
// @Tags Projects
// @Produce json
// @Success 200 {array} domain.Project
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects [delete]
func (h *ContentHandler) ResetProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.contentService.ResetProjects(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to reset projects")
		return
	}
	respondJSON(w, http.StatusOK, projects)
}

// ============================================================================
// About & home
// ============================================================================

// GetAbout godoc
// @Summary Get the about page
// @Tags About
// @Produce json
// @Success 200 {object} domain.AboutPage
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /about [get]
func (h *ContentHandler) GetAbout(w http.ResponseWriter, r *http.Request) {
	about, err := h.contentService.GetAbout(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to get about page")
		return
	}
	respondJSON(w, http.StatusOK, about)
}

// UpdateAbout godoc
// @Summary Update the about page
// @Tags About
// @Accept json
// @Produce json
// @Param request body domain.UpdateAboutRequest true "Fields to change"
// @Success 200 {object} domain.AboutPage
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /about [put]
func (h *ContentHandler) UpdateAbout(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateAboutRequest
	if !decodeAndValidate(w, r, h.maxBodyBytes, &req) {
		return
	}

	about, err := h.contentService.UpdateAbout(r.Context(), req)
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to update about page")
		return
	}
	respondJSON(w, http.StatusOK, about)
}

// ResetAbout godoc
// @Summary Reset the about page to the defaults
// @Tags About
// @Produce json
// @Success 200 {object} domain.AboutPage
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /about [delete]
func (h *ContentHandler) ResetAbout(w http.ResponseWriter, r *http.Request) {
	about, err := h.contentService.ResetAbout(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to reset about page")
		return
	}
	respondJSON(w, http.StatusOK, about)
}

// GetHome godoc
// @Summary Get the home header
// @Tags Home
// @Produce json
// @Success 200 {object} domain.HomeHeader
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /home [get]
func (h *ContentHandler) GetHome(w http.ResponseWriter, r *http.Request) {
	home, err := h.contentService.GetHome(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to get home header")
		return
	}
	respondJSON(w, http.StatusOK, home)
}

// UpdateHome godoc
// @Summary Update the home header
// @Tags Home
// @Accept json
// @Produce json
// @Param request body domain.UpdateHomeRequest true "Fields to change"
// @Success 200 {object} domain.HomeHeader
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /home [put]
func (h *ContentHandler) UpdateHome(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateHomeRequest
	if !decodeAndValidate(w, r, maxJSONBody, &req) {
		return
	}

	home, err := h.contentService.UpdateHome(r.Context(), req)
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to update home header")
		return
	}
	respondJSON(w, http.StatusOK, home)
}

// ResetHome godoc
// @Summary Reset the home header to the defaults
// @Tags Home
// @Produce json
// @Success 200 {object} domain.HomeHeader
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /home [delete]
func (h *ContentHandler) ResetHome(w http.ResponseWriter, r *http.Request) {
	home, err := h.contentService.ResetHome(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to reset home header")
		return
	}
	respondJSON(w, http.StatusOK, home)
}
