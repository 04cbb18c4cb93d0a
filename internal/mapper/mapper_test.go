package mapper

import (
	"testing"
	"time"

	"github.com/folio-works/portfolio-api/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestToSyncRunDTO(t *testing.T) {
	finished := time.Date(2024, 5, 1, 10, 0, 5, 0, time.UTC)
	run := &domain.SyncRun{
		BaseModel:      domain.BaseModel{ID: uuid.MustParse("7b7e2f0a-5c1d-4f3e-9a55-0f5b9a7c1d11")},
		Trigger:        domain.SyncTriggerLogout,
		Status:         domain.SyncStatusPublished,
		ContentHash:    "abc",
		CommitSHA:      "def",
		ImagesUploaded: 3,
		Attempts:       2,
		StartedAt:      finished.Add(-5 * time.Second),
		FinishedAt:     &finished,
	}

	dto := ToSyncRunDTO(run)
	assert.Equal(t, "7b7e2f0a-5c1d-4f3e-9a55-0f5b9a7c1d11", dto.ID)
	assert.Equal(t, "logout", dto.Trigger)
	assert.Equal(t, "published", dto.Status)
	assert.Equal(t, 3, dto.ImagesUploaded)
	assert.Equal(t, &finished, dto.FinishedAt)

	assert.Len(t, ToSyncRunDTOs([]domain.SyncRun{*run, *run}), 2)
}

func TestToPendingImageDTO(t *testing.T) {
	img := &domain.PendingImage{ID: "p1-thumbnail-1", ContentType: "image/png", Size: 10, Data: []byte("secret")}
	dto := ToPendingImageDTO(img)
	assert.Equal(t, "local:p1-thumbnail-1", dto.Ref)
	assert.Equal(t, int64(10), dto.Size)
}

func TestToDocumentInfo(t *testing.T) {
	assert.True(t, ToDocumentInfo("home", nil).IsDefault)

	info := ToDocumentInfo("home", &domain.ContentDocument{Key: "home", Revision: 4})
	assert.False(t, info.IsDefault)
	assert.Equal(t, int64(4), info.Revision)
}
