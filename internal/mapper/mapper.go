package mapper

import (
	"github.com/folio-works/portfolio-api/internal/domain"
)

// ToSyncRunDTO converts SyncRun to SyncRunDTO
func ToSyncRunDTO(run *domain.SyncRun) domain.SyncRunDTO {
	return domain.SyncRunDTO{
		ID:             run.ID.String(),
		Trigger:        string(run.Trigger),
		Status:         string(run.Status),
		ContentHash:    run.ContentHash,
		CommitSHA:      run.CommitSHA,
		ImagesUploaded: run.ImagesUploaded,
		RefsCleared:    run.RefsCleared,
		Attempts:       run.Attempts,
		Error:          run.Error,
		StartedAt:      run.StartedAt,
		FinishedAt:     run.FinishedAt,
	}
}

// ToSyncRunDTOs converts a page of runs
func ToSyncRunDTOs(runs []domain.SyncRun) []domain.SyncRunDTO {
	dtos := make([]domain.SyncRunDTO, len(runs))
	for i := range runs {
		dtos[i] = ToSyncRunDTO(&runs[i])
	}
	return dtos
}

// ToPendingImageDTO converts PendingImage to PendingImageDTO; the image bytes are never included
func ToPendingImageDTO(img *domain.PendingImage) domain.PendingImageDTO {
	return domain.PendingImageDTO{
		ID:          img.ID,
		ContentType: img.ContentType,
		Size:        img.Size,
		Ref:         domain.LocalRef(img.ID),
		HostedURL:   img.HostedURL,
		UploadedAt:  img.UploadedAt,
		CreatedAt:   img.CreatedAt,
	}
}

// ToDocumentInfo converts a stored document to its summary; doc is nil for a document never written
func ToDocumentInfo(key string, doc *domain.ContentDocument) domain.DocumentInfo {
	if doc == nil {
		return domain.DocumentInfo{Key: key, IsDefault: true}
	}
	return domain.DocumentInfo{
		Key:       doc.Key,
		Revision:  doc.Revision,
		UpdatedAt: doc.UpdatedAt,
	}
}
