package repository

import (
	"context"
	"errors"

	"github.com/folio-works/portfolio-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStaleRevision is returned when a document changed between read and write
var ErrStaleRevision = errors.New("document revision changed")

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Get(ctx context.Context, key string) (*domain.ContentDocument, error) {
	var doc domain.ContentDocument
	err := r.db.WithContext(ctx).First(&doc, "key = ?", key).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepository) List(ctx context.Context) ([]domain.ContentDocument, error) {
	var docs []domain.ContentDocument
	err := r.db.WithContext(ctx).Order("key ASC").Find(&docs).Error
	return docs, err
}

// Put writes body if the stored revision still equals expectedRevision.
// An expectedRevision of 0 means the document must not exist yet.
// It returns the new revision.
func (r *DocumentRepository) Put(ctx context.Context, key, body string, expectedRevision int64) (int64, error) {
	if expectedRevision == 0 {
		created, err := r.CreateIfAbsent(ctx, key, body)
		if err != nil {
			return 0, err
		}
		if !created {
			return 0, ErrStaleRevision
		}
		return 1, nil
	}

	result := r.db.WithContext(ctx).
		Model(&domain.ContentDocument{}).
		Where("key = ? AND revision = ?", key, expectedRevision).
		Updates(map[string]interface{}{
			"body":       body,
			"revision":   expectedRevision + 1,
			"updated_at": r.db.NowFunc(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrStaleRevision
	}
	return expectedRevision + 1, nil
}

// CreateIfAbsent inserts the document only when no document with the key exists
func (r *DocumentRepository) CreateIfAbsent(ctx context.Context, key, body string) (bool, error) {
	doc := domain.ContentDocument{Key: key, Body: body, Revision: 1}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "key"}}, DoNothing: true}).
		Create(&doc)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
