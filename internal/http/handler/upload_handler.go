package handler

import (
	"net/http"

	"github.com/folio-works/portfolio-api/internal/domain"
	"github.com/folio-works/portfolio-api/internal/service"
	"go.uber.org/zap"
)

// UploadHandler sends images straight to the configured blob host
type UploadHandler struct {
	uploadService *service.UploadService
	maxBytes      int64
	logger        *zap.Logger
}

func NewUploadHandler(uploadService *service.UploadService, maxBytes int64, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		maxBytes:      maxBytes,
		logger:        logger,
	}
}

// Upload godoc
// @Summary Upload an image to the blob host
// @Description Accepts multipart "file" (plus optional "imageId") or JSON {imageData, imageId}. Local references are rejected.
// @Tags Uploads
// @Accept json
// @Accept multipart/form-data
// @Produce json
// @Param request body domain.UploadImageRequest false "Image as a data URL"
// @Param file formData file false "Image file"
// @Success 200 {object} domain.UploadResponse
// @Failure 400 {object} domain.APIError
// @Failure 413 {object} domain.APIError
// @Failure 502 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /uploads [post]
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var (
		resp *domain.UploadResponse
		err  error
	)

	if isMultipart(r) {
		data, contentType, id, ok := readMultipartFile(w, r, h.maxBytes, "imageId")
		if !ok {
			return
		}
		resp, err = h.uploadService.Upload(r.Context(), id, contentType, data)
	} else {
		var req domain.UploadImageRequest
		if !decodeAndValidate(w, r, dataURLBodyLimit(h.maxBytes), &req) {
			return
		}
		resp, err = h.uploadService.UploadDataURL(r.Context(), req.ImageID, req.ImageData)
	}
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to upload image")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// ImageKitAuth godoc
// @Summary ImageKit client upload parameters
// @Description Returns a token, expiry and signature a browser can use to upload to ImageKit directly
// @Tags Uploads
// @Produce json
// @Success 200 {object} domain.ImageKitAuthResponse
// @Failure 503 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /uploads/imagekit/auth [get]
func (h *UploadHandler) ImageKitAuth(w http.ResponseWriter, r *http.Request) {
	resp, err := h.uploadService.ImageKitAuth()
	if err != nil {
		handleServiceError(w, h.logger, err, "Failed to sign ImageKit upload")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, resp)
}
