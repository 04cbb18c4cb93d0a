package repository

import (
	"context"
	"time"

	"github.com/folio-works/portfolio-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// metadataColumns excludes the image bytes from list queries
var metadataColumns = []string{"id", "content_type", "size", "hosted_url", "uploaded_at", "created_at", "updated_at"}

type PendingImageRepository struct {
	db *gorm.DB
}

func NewPendingImageRepository(db *gorm.DB) *PendingImageRepository {
	return &PendingImageRepository{db: db}
}

// Save inserts the image or replaces an existing image with the same ID.
// Replacing clears any previous upload so the new bytes are published.
func (r *PendingImageRepository) Save(ctx context.Context, img *domain.PendingImage) error {
	img.HostedURL = ""
	img.UploadedAt = nil
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"content_type", "size", "data", "hosted_url", "uploaded_at", "updated_at"}),
		}).
		Create(img).Error
}

func (r *PendingImageRepository) GetByID(ctx context.Context, id string) (*domain.PendingImage, error) {
	var img domain.PendingImage
	err := r.db.WithContext(ctx).First(&img, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// List returns image metadata, newest first
func (r *PendingImageRepository) List(ctx context.Context) ([]domain.PendingImage, error) {
	var images []domain.PendingImage
	err := r.db.WithContext(ctx).
		Select(metadataColumns).
		Order("created_at DESC").
		Find(&images).Error
	return images, err
}

// ExistingIDs returns the subset of ids present in the store
func (r *PendingImageRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var existing []string
	err := r.db.WithContext(ctx).
		Model(&domain.PendingImage{}).
		Where("id IN ?", ids).
		Pluck("id", &existing).Error
	if err != nil {
		return nil, err
	}
	for _, id := range existing {
		found[id] = true
	}
	return found, nil
}

func (r *PendingImageRepository) MarkUploaded(ctx context.Context, id, hostedURL string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.PendingImage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"hosted_url":  hostedURL,
			"uploaded_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountNotUploaded returns how many images still wait for a blob host
func (r *PendingImageRepository) CountNotUploaded(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.PendingImage{}).
		Where("hosted_url IS NULL OR hosted_url = ''").
		Count(&count).Error
	return count, err
}

func (r *PendingImageRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&domain.PendingImage{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// PruneUploaded deletes images that were uploaded before the cutoff
func (r *PendingImageRepository) PruneUploaded(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("uploaded_at IS NOT NULL AND uploaded_at < ?", before).
		Delete(&domain.PendingImage{})
	return result.RowsAffected, result.Error
}
