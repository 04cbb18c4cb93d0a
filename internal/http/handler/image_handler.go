package handler

import (
	"net/http"
	"strconv"

	"github.com/folio-works/portfolio-api/internal/domain"
	"github.com/folio-works/portfolio-api/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ImageHandler manages pending images, the bytes behind local: references
type ImageHandler struct {
	imageService *service.ImageService
	maxBytes     int64
	logger       *zap.Logger
}

func NewImageHandler(imageService *service.ImageService, maxBytes int64, logger *zap.Logger) *ImageHandler {
	return &ImageHandler{
		imageService: imageService,
		maxBytes:     maxBytes,
		logger:       logger,
	}
}

// List godoc
// @Summary List pending images
// @Tags Images
// @Produce json
// @Success 200 {array} domain.PendingImageDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /images [get]
func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	images, err := h.imageService.List(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to list images")
		return
	}
	respondJSON(w, http.StatusOK, images)
}

// Save godoc
// @Summary Store an image locally
// @Description Accepts multipart "file" (plus optional "id") or JSON {imageData, id}. The response ref can be used in content until the next sync uploads it.
// @Tags Images
// @Accept json
// @Accept multipart/form-data
// @Produce json
// @Param request body domain.SaveImageRequest false "Image as a data URL"
// @Param file formData file false "Image file"
// @Success 201 {object} domain.PendingImageDTO
// @Failure 400 {object} domain.APIError
// @Failure 413 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /images [post]
func (h *ImageHandler) Save(w http.ResponseWriter, r *http.Request) {
	var (
		img *domain.PendingImageDTO
		err error
	)

	if isMultipart(r) {
		data, contentType, id, ok := readMultipartFile(w, r, h.maxBytes, "id")
		if !ok {
			return
		}
		img, err = h.imageService.Save(r.Context(), id, contentType, data)
	} else {
		var req domain.SaveImageRequest
		if !decodeAndValidate(w, r, dataURLBodyLimit(h.maxBytes), &req) {
			return
		}
		img, err = h.imageService.SaveDataURL(r.Context(), req.ID, req.ImageData)
	}
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to save image")
		return
	}

	w.Header().Set("Location", "/api/v1/images/"+img.ID)
	respondJSON(w, http.StatusCreated, img)
}

// Get godoc
// @Summary Get image bytes
// @Description Serves a locally stored image so the admin panel can preview unpublished content
// @Tags Images
// @Produce image/png
// @Produce image/jpeg
// @Param id path string true "Image ID"
// @Success 200 {file} binary
// @Failure 404 {object} domain.APIError
// @Router /images/{id} [get]
func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	img, err := h.imageService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to get image")
		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

// Delete godoc
// @Summary Delete a pending image
// @Tags Images
// @Param id path string true "Image ID"
// @Success 204
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /images/{id} [delete]
func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.imageService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, h.logger, err, "Failed to delete image")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
