package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/folio-works/portfolio-api/internal/domain"
	"github.com/folio-works/portfolio-api/internal/mapper"
	"github.com/folio-works/portfolio-api/internal/repository"
	"github.com/folio-works/portfolio-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ImageService is the local store for images that have not been published to a blob host yet
type ImageService struct {
	imageRepo *repository.PendingImageRepository
	maxBytes  int64
	logger    *zap.Logger
	now       func() time.Time
}

// NewImageService creates a new ImageService instance
func NewImageService(imageRepo *repository.PendingImageRepository, maxBytes int64, logger *zap.Logger) *ImageService {
	return &ImageService{
		imageRepo: imageRepo,
		maxBytes:  maxBytes,
		logger:    logger,
		now:       time.Now,
	}
}

// Save stores image bytes under id, generating an ID when id is empty.
// The content type is sniffed and must be an image or video.
func (s *ImageService) Save(ctx context.Context, id, contentType string, data []byte) (*domain.PendingImageDTO, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: image is empty", ErrInvalidInput)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: image is %d bytes, limit is %d", ErrTooLarge, len(data), s.maxBytes)
	}

	contentType = storage.DetectContentType(data, contentType)
	if !storage.IsMedia(contentType) {
		return nil, fmt.Errorf("%w: unsupported content type %s", ErrInvalidInput, contentType)
	}

	if id == "" {
		id = domain.GeneratedID("image", s.now())
	}
	if !storage.ValidKey(id) {
		return nil, fmt.Errorf("%w: invalid image id %q", ErrInvalidInput, id)
	}

	img := &domain.PendingImage{
		ID:          id,
		ContentType: contentType,
		Size:        int64(len(data)),
		Data:        data,
	}
	if err := s.imageRepo.Save(ctx, img); err != nil {
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	s.logger.Debug("image stored",
		zap.String("imageId", id),
		zap.String("contentType", contentType),
		zap.Int64("size", img.Size),
	)

	dto := mapper.ToPendingImageDTO(img)
	return &dto, nil
}

// SaveDataURL decodes a base64 data URL and stores it
func (s *ImageService) SaveDataURL(ctx context.Context, id, dataURL string) (*domain.PendingImageDTO, error) {
	contentType, data, err := domain.ParseDataURL(dataURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.Save(ctx, id, contentType, data)
}

// Get returns the stored image including its bytes
func (s *ImageService) Get(ctx context.Context, id string) (*domain.PendingImage, error) {
	img, err := s.imageRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return img, nil
}

// List returns metadata of every stored image
func (s *ImageService) List(ctx context.Context) ([]domain.PendingImageDTO, error) {
	images, err := s.imageRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	dtos := make([]domain.PendingImageDTO, len(images))
	for i := range images {
		dtos[i] = mapper.ToPendingImageDTO(&images[i])
	}
	return dtos, nil
}

func (s *ImageService) Delete(ctx context.Context, id string) error {
	if err := s.imageRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete image: %w", err)
	}
	s.logger.Info("image deleted", zap.String("imageId", id))
	return nil
}

// MarkUploaded remembers the hosted URL so later syncs reuse it
func (s *ImageService) MarkUploaded(ctx context.Context, id, hostedURL string) error {
	if err := s.imageRepo.MarkUploaded(ctx, id, hostedURL, s.now().UTC()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to mark image uploaded: %w", err)
	}
	return nil
}

// ExistingIDs returns which of ids are held in the store
func (s *ImageService) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found, err := s.imageRepo.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to look up images: %w", err)
	}
	return found, nil
}

// CountPending returns the number of images that still need uploading
func (s *ImageService) CountPending(ctx context.Context) (int64, error) {
	return s.imageRepo.CountNotUploaded(ctx)
}

// Prune deletes images that were published longer than olderThan ago
func (s *ImageService) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	removed, err := s.imageRepo.PruneUploaded(ctx, s.now().UTC().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to prune images: %w", err)
	}
	if removed > 0 {
		s.logger.Info("pruned uploaded images", zap.Int64("count", removed))
	}
	return removed, nil
}
