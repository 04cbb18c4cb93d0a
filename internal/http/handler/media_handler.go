package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/folio-works/portfolio-api/internal/storage"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MediaHandler serves images published by the local blob host
type MediaHandler struct {
	downloader storage.Downloader
	logger     *zap.Logger
}

func NewMediaHandler(downloader storage.Downloader, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{downloader: downloader, logger: logger}
}

// Serve godoc
// @Summary Serve a published image (local storage mode)
// @Tags Images
// @Param path path string true "Storage path"
// @Success 200 {file} binary
// @Failure 404 {object} domain.APIError
// @Router /media/{path} [get]
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	storagePath := chi.URLParam(r, "*")
	reader, err := h.downloader.Download(r.Context(), storagePath)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidKey):
			respondWithError(w, http.StatusNotFound, "Image not found")
		default:
			h.logger.Error("failed to open media", zap.Error(err), zap.String("path", storagePath))
			respondWithError(w, http.StatusInternalServerError, "Failed to read image")
		}
		return
	}
	defer reader.Close()

	contentType := mime.TypeByExtension(strings.ToLower(path.Ext(storagePath)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("failed to stream media", zap.Error(err), zap.String("path", storagePath))
	}
}
