package repository

import (
	"context"

	"github.com/folio-works/portfolio-api/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SyncRunRepository struct {
	db *gorm.DB
}

func NewSyncRunRepository(db *gorm.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

func (r *SyncRunRepository) Create(ctx context.Context, run *domain.SyncRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *SyncRunRepository) Update(ctx context.Context, run *domain.SyncRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *SyncRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SyncRun, error) {
	var run domain.SyncRun
	err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns runs newest first
func (r *SyncRunRepository) List(ctx context.Context, page, pageSize int, status string) ([]domain.SyncRun, int64, error) {
	var runs []domain.SyncRun
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.SyncRun{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order("started_at DESC").Find(&runs).Error

	return runs, total, err
}

// Latest returns the most recent run, optionally restricted to a status
func (r *SyncRunRepository) Latest(ctx context.Context, status domain.SyncStatus) (*domain.SyncRun, error) {
	var run domain.SyncRun
	query := r.db.WithContext(ctx).Order("started_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// MarkAbandoned fails runs left in the running state, e.g. after a crash
func (r *SyncRunRepository) MarkAbandoned(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.SyncRun{}).
		Where("status = ?", domain.SyncStatusRunning).
		Updates(map[string]interface{}{
			"status":      domain.SyncStatusFailed,
			"error":       "abandoned: process stopped before the run finished",
			"finished_at": r.db.NowFunc(),
		})
	return result.RowsAffected, result.Error
}
