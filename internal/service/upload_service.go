package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/folio-works/portfolio-api/internal/domain"
	"github.com/folio-works/portfolio-api/internal/storage"
	"go.uber.org/zap"
)

// UploadService publishes images straight to the configured blob host
type UploadService struct {
	host     storage.Host
	signer   *storage.ImageKitSigner
	maxBytes int64
	logger   *zap.Logger
	now      func() time.Time
}

// NewUploadService creates a new UploadService. signer may be nil when ImageKit is not configured.
func NewUploadService(host storage.Host, signer *storage.ImageKitSigner, maxBytes int64, logger *zap.Logger) *UploadService {
	return &UploadService{
		host:     host,
		signer:   signer,
		maxBytes: maxBytes,
		logger:   logger,
		now:      time.Now,
	}
}

// HostName returns the name of the active blob host
func (s *UploadService) HostName() string {
	return s.host.Name()
}

// UploadDataURL uploads a base64 data URL. Local image references are
// rejected: those bytes only exist in this service and are published by a sync.
func (s *UploadService) UploadDataURL(ctx context.Context, imageID, imageData string) (*domain.UploadResponse, error) {
	if domain.IsLocalRef(imageData) {
		return nil, fmt.Errorf("%w: local image references cannot be uploaded directly, run a sync instead", ErrInvalidInput)
	}
	contentType, data, err := domain.ParseDataURL(imageData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.Upload(ctx, imageID, contentType, data)
}

// Upload sends raw image bytes to the blob host
func (s *UploadService) Upload(ctx context.Context, imageID, contentType string, data []byte) (*domain.UploadResponse, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: file is %d bytes, limit is %d", ErrTooLarge, len(data), s.maxBytes)
	}

	contentType = storage.DetectContentType(data, contentType)
	if !storage.IsMedia(contentType) {
		return nil, fmt.Errorf("%w: unsupported content type %s", ErrInvalidInput, contentType)
	}

	imageID = strings.TrimSpace(imageID)
	if imageID == "" {
		imageID = domain.GeneratedID("upload", s.now())
	}
	if !storage.ValidKey(imageID) {
		return nil, fmt.Errorf("%w: invalid image id %q", ErrInvalidInput, imageID)
	}

	uploaded, err := s.host.Upload(ctx, storage.Object{
		Key:         imageID,
		ContentType: contentType,
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	})
	if err != nil {
		s.logger.Error("blob upload failed",
			zap.String("host", s.host.Name()),
			zap.String("imageId", imageID),
			zap.Error(err),
		)
		return nil, hostError(err)
	}

	s.logger.Info("image uploaded",
		zap.String("host", s.host.Name()),
		zap.String("imageId", imageID),
		zap.String("url", uploaded.URL()),
	)

	return &domain.UploadResponse{
		Success:     true,
		ImageID:     imageID,
		OriginalURL: uploaded.OriginalURL,
		ResizedURL:  uploaded.ResizedURL,
		URL:         uploaded.URL(),
		Host:        s.host.Name(),
	}, nil
}

// ImageKitAuth returns client-side upload credentials
func (s *UploadService) ImageKitAuth() (*domain.ImageKitAuthResponse, error) {
	if s.signer == nil {
		return nil, fmt.Errorf("%w: imagekit keys are not set", ErrNotConfigured)
	}
	auth := s.signer.Sign()
	return &auth, nil
}

// hostError maps blob host failures onto service errors
func hostError(err error) error {
	switch {
	case errors.Is(err, storage.ErrInvalidKey):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
}
