package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/folio-works/portfolio-api/internal/domain"
	"github.com/folio-works/portfolio-api/internal/repository"
	"github.com/folio-works/portfolio-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncRunRepository_ListAndLatest(t *testing.T) {
	repo := repository.NewSyncRunRepository(testutil.NewTestDB(t))
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	statuses := []domain.SyncStatus{domain.SyncStatusPublished, domain.SyncStatusFailed, domain.SyncStatusSkipped}
	for i, status := range statuses {
		run := &domain.SyncRun{
			Trigger:   domain.SyncTriggerManual,
			Status:    status,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(ctx, run))
	}

	runs, total, err := repo.List(ctx, 1, 2, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, runs, 2)
	assert.Equal(t, domain.SyncStatusSkipped, runs[0].Status)

	latest, err := repo.Latest(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusSkipped, latest.Status)

	published, err := repo.Latest(ctx, domain.SyncStatusPublished)
	require.NoError(t, err)
	assert.Equal(t, base.Unix(), published.StartedAt.Unix())

	failed, total, err := repo.List(ctx, 1, 10, string(domain.SyncStatusFailed))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, failed, 1)
}

func TestSyncRunRepository_MarkAbandoned(t *testing.T) {
	repo := repository.NewSyncRunRepository(testutil.NewTestDB(t))
	ctx := context.Background()

	run := &domain.SyncRun{Trigger: domain.SyncTriggerSchedule, Status: domain.SyncStatusRunning, StartedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, run))

	n, err := repo.MarkAbandoned(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusFailed, got.Status)
	assert.NotNil(t, got.FinishedAt)
}
