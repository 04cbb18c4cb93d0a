package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/folio-works/portfolio-api/internal/domain"
	"github.com/folio-works/portfolio-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SyncHandler publishes content and exposes the deployed site and publish history
type SyncHandler struct {
	syncService *service.SyncService
	logger      *zap.Logger
}

func NewSyncHandler(syncService *service.SyncService, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		logger:      logger,
	}
}

// Sync godoc
// @Summary Publish content
// @Description Uploads pending images, then commits data.json to the site repository unless nothing changed. The body is optional.
// @Tags Sync
// @Accept json
// @Produce json
// @Param request body domain.SyncRequest false "Sync options"
// @Success 200 {object} domain.SyncRunDTO
// @Failure 409 {object} domain.APIError "A sync is already running"
// @Failure 502 {object} domain.APIError
// @Failure 503 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /sync [post]
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req domain.SyncRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if r.URL.Query().Get("force") == "true" {
		req.Force = true
	}

	run, err := h.syncService.Sync(r.Context(), domain.SyncTriggerManual, req.Force)
	if err != nil {
		handleServiceError(w, h.logger, err, "Sync failed")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// Status godoc
// @Summary Sync status
// @Description Reports whether content changed since the last publish and the most recent runs
// @Tags Sync
// @Produce json
// @Success 200 {object} domain.SyncStatusDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /sync/status [get]
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.syncService.Status(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to get sync status")
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// ListRuns godoc
// @Summary List sync runs
// @Tags Sync
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param status query string false "Filter by status" Enums(running, published, skipped, failed)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.SyncRunDTO}
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /sync/runs [get]
func (h *SyncHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch domain.SyncStatus(status) {
	case "", domain.SyncStatusRunning, domain.SyncStatusPublished, domain.SyncStatusSkipped, domain.SyncStatusFailed:
	default:
		respondWithError(w, http.StatusBadRequest, "Invalid status: must be one of running, published, skipped, failed")
		return
	}

	page, err := h.syncService.Runs(r.Context(), queryInt(r, "page", 1), queryInt(r, "pageSize", 20), status)
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to list sync runs")
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// GetRun godoc
// @Summary Get a sync run
// @Tags Sync
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} domain.SyncRunDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /sync/runs/{id} [get]
func (h *SyncHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid run ID: must be a valid UUID")
		return
	}

	run, err := h.syncService.GetRun(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to get sync run")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// Pull godoc
// @Summary Import the deployed content
// @Description Reads the live data.json and imports it; seed fills only unsaved documents, replace overwrites everything
// @Tags Sync
// @Accept json
// @Produce json
// @Param request body domain.PullRequest true "Import mode"
// @Success 200 {object} domain.ImportResult
// @Failure 502 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /sync/pull [post]
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	var req domain.PullRequest
	if !decodeAndValidate(w, r, maxJSONBody, &req) {
		return
	}

	result, err := h.syncService.Pull(r.Context(), req.Mode)
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to pull deployed content")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// MigrateImages godoc
// @Summary Upload pending and inline images without publishing
// @Tags Sync
// @Produce json
// @Success 200 {object} domain.MaintenanceResult
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /sync/migrate-images [post]
func (h *SyncHandler) MigrateImages(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncService.MigrateImages(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to migrate images")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ScrapeImages godoc
// @Summary Copy the images shown on deployed project pages into the image store
// @Tags Sync
// @Produce json
// @Success 200 {object} domain.ScrapeResult
// @Failure 502 {object} domain.APIError
// @Failure 503 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /sync/scrape-images [post]
func (h *SyncHandler) ScrapeImages(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncService.ScrapeImages(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to scrape deployed images")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// RepairReferences godoc
// @Summary Clear references to missing local images
// @Tags Sync
// @Produce json
// @Success 200 {object} domain.MaintenanceResult
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /sync/repair-refs [post]
func (h *SyncHandler) RepairReferences(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncService.RepairReferences(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to repair references")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Deployed godoc
// @Summary Fetch a file from the deployed site
// @Description JSON is returned as is, images as {contentType, data} with a data URL, anything else as text. Only paths on the configured site are reachable.
// @Tags Deployed
// @Produce json
// @Produce plain
// @Param path query string false "Path on the deployed site" default(/data.json)
// @Success 200 {object} domain.DeployedAsset
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 502 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deployed [get]
func (h *SyncHandler) Deployed(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if p == "" {
		p = "/data.json"
	}

	content, err := h.syncService.ProxyDeployed(r.Context(), p)
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to fetch deployed content")
		return
	}

	w.Header().Set("Content-Type", content.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content.Body)
}

// ============================================================================
// History
// ============================================================================

// ListVersions godoc
// @Summary List published versions
// @Tags History
// @Produce json
// @Param limit query int false "Maximum number of versions" default(50)
// @Success 200 {array} domain.VersionDTO
// @Failure 503 {object} domain.APIError "History is disabled"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /history [get]
func (h *SyncHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.syncService.Versions(queryInt(r, "limit", 50))
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to list versions")
		return
	}
	respondJSON(w, http.StatusOK, versions)
}

// GetVersion godoc
// @Summary Get the site data of a published version
// @Tags History
// @Produce json
// @Param hash path string true "Commit hash (abbreviations accepted)"
// @Success 200 {object} domain.SiteData
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /history/{hash} [get]
func (h *SyncHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	data, version, err := h.syncService.Version(chi.URLParam(r, "hash"))
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to read version")
		return
	}
	w.Header().Set("X-Version-Hash", version.Hash)
	w.Header().Set("X-Version-Timestamp", strconv.FormatInt(version.Timestamp.Unix(), 10))
	respondJSON(w, http.StatusOK, data)
}

// RestoreVersion godoc
// @Summary Restore a published version
// @Description Replaces every content document with the snapshot; publish again to make it live
// @Tags History
// @Produce json
// @Param hash path string true "Commit hash (abbreviations accepted)"
// @Success 200 {object} domain.ImportResult
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /history/{hash}/restore [post]
func (h *SyncHandler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncService.Restore(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to restore version")
		return
	}
	respondJSON(w, http.StatusOK, result)
}
