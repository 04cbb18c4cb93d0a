package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/folio-works/portfolio-api/internal/config"
	"github.com/folio-works/portfolio-api/internal/domain"
	"github.com/folio-works/portfolio-api/internal/ghcontent"
	"github.com/folio-works/portfolio-api/internal/history"
	"github.com/folio-works/portfolio-api/internal/repository"
	"github.com/folio-works/portfolio-api/internal/storage"
	"github.com/folio-works/portfolio-api/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 48)...)

func pngDataURL() string {
	return domain.EncodeDataURL("image/png", pngBytes)
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeHost records uploads and serves them from cdn.test
type fakeHost struct {
	mu      sync.Mutex
	uploads map[string][]byte
	fail    error
}

func newFakeHost() *fakeHost {
	return &fakeHost{uploads: make(map[string][]byte)}
}

func (h *fakeHost) Name() string { return "fake" }

func (h *fakeHost) Upload(_ context.Context, obj storage.Object) (*storage.Uploaded, error) {
	if h.fail != nil {
		return nil, h.fail
	}
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.uploads[obj.Key] = data
	return &storage.Uploaded{
		Key:         obj.Key,
		OriginalURL: "https://cdn.test/" + obj.Key,
		Size:        int64(len(data)),
	}, nil
}

func (h *fakeHost) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.uploads)
}

// fakePublisher stands in for the GitHub contents client
type fakePublisher struct {
	mu        sync.Mutex
	files     map[string][]byte
	published int
	fail      error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{files: make(map[string][]byte)}
}

func (p *fakePublisher) GetFile(_ context.Context, path string) (*ghcontent.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	content, ok := p.files[path]
	if !ok {
		return nil, ghcontent.ErrNotFound
	}
	return &ghcontent.File{Path: path, SHA: "file-sha", Content: content}, nil
}

func (p *fakePublisher) Publish(_ context.Context, path string, content []byte, _ string, _ int) (*ghcontent.Commit, error) {
	if p.fail != nil {
		return nil, p.fail
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if bytes.Equal(p.files[path], content) {
		return &ghcontent.Commit{FileSHA: "file-sha", Unchanged: true, Attempts: 1}, nil
	}
	p.files[path] = content
	p.published++
	return &ghcontent.Commit{
		SHA:      fmt.Sprintf("%040d", p.published),
		FileSHA:  "file-sha",
		Attempts: 1,
	}, nil
}

func (p *fakePublisher) content(path string) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.files[path]
}

type testEnv struct {
	cfg       *config.Config
	images    *ImageService
	content   *ContentService
	sync      *SyncService
	runs      *repository.SyncRunRepository
	host      *fakeHost
	publisher *fakePublisher
	snapshots *history.Store
}

func testConfig() *config.Config {
	return &config.Config{
		GitHub: config.GitHubConfig{Path: "public/data.json", MaxAttempts: 3, CommitMessage: "Update content"},
		Sync:   config.SyncConfig{UploadConcurrency: 2, Timeout: 30, SyncOnLogout: true},
		Deploy: config.DeployConfig{DataPath: "/data.json", Timeout: 5},
	}
}

func newTestEnv(t *testing.T, configure ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	for _, fn := range configure {
		fn(cfg)
	}

	db := testutil.NewTestDB(t)
	logger := zap.NewNop()

	snapshots, err := history.Open(&config.HistoryConfig{Path: t.TempDir()})
	require.NoError(t, err)

	env := &testEnv{
		cfg:       cfg,
		runs:      repository.NewSyncRunRepository(db),
		host:      newFakeHost(),
		publisher: newFakePublisher(),
		snapshots: snapshots,
	}
	env.images = NewImageService(repository.NewPendingImageRepository(db), 1<<20, logger)
	env.images.now = func() time.Time { return fixedNow }
	env.content = NewContentService(repository.NewDocumentRepository(db), env.images, logger)
	env.content.now = func() time.Time { return fixedNow }
	env.sync = NewSyncService(env.content, env.images, env.runs, env.host, env.publisher, env.snapshots, cfg, logger)
	return env
}
