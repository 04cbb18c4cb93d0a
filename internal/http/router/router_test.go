package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/folio-works/portfolio-api/internal/auth"
	"github.com/folio-works/portfolio-api/internal/config"
	"github.com/folio-works/portfolio-api/internal/domain"
	"github.com/folio-works/portfolio-api/internal/ghcontent"
	"github.com/folio-works/portfolio-api/internal/http/handler"
	"github.com/folio-works/portfolio-api/internal/http/middleware"
	"github.com/folio-works/portfolio-api/internal/http/router"
	"github.com/folio-works/portfolio-api/internal/repository"
	"github.com/folio-works/portfolio-api/internal/service"
	"github.com/folio-works/portfolio-api/internal/session"
	"github.com/folio-works/portfolio-api/internal/storage"
	"github.com/folio-works/portfolio-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "correct horse battery"
	apiKey        = "test-api-key"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 48)...)

type fakeHost struct {
	mu      sync.Mutex
	uploads map[string][]byte
}

func (h *fakeHost) Name() string { return "fake" }

func (h *fakeHost) Upload(_ context.Context, obj storage.Object) (*storage.Uploaded, error) {
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.uploads[obj.Key] = data
	return &storage.Uploaded{Key: obj.Key, OriginalURL: "https://cdn.test/" + obj.Key, Size: int64(len(data))}, nil
}

type fakePublisher struct {
	mu    sync.Mutex
	files map[string][]byte
	n     int
}

func (p *fakePublisher) GetFile(_ context.Context, path string) (*ghcontent.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	content, ok := p.files[path]
	if !ok {
		return nil, ghcontent.ErrNotFound
	}
	return &ghcontent.File{Path: path, Content: content}, nil
}

func (p *fakePublisher) Publish(_ context.Context, path string, content []byte, _ string, _ int) (*ghcontent.Commit, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if bytes.Equal(p.files[path], content) {
		return &ghcontent.Commit{Unchanged: true, Attempts: 1}, nil
	}
	p.files[path] = content
	p.n++
	return &ghcontent.Commit{SHA: strings.Repeat("a", 39) + string(rune('0'+p.n)), Attempts: 1}, nil
}

type testServer struct {
	handler   http.Handler
	host      *fakeHost
	publisher *fakePublisher
	sync      *service.SyncService
}

// newTestServer wires the real services on sqlite; media is mounted when given
func newTestServer(t *testing.T, media ...*handler.MediaHandler) *testServer {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		App:       config.AppConfig{Environment: "development"},
		Admin:     config.AdminConfig{Email: adminEmail, PasswordHash: string(hash), JWTSecret: "secret", APIKey: apiKey},
		GitHub:    config.GitHubConfig{Path: "public/data.json", MaxAttempts: 3},
		Sync:      config.SyncConfig{UploadConcurrency: 2, Timeout: 30},
		Deploy:    config.DeployConfig{DataPath: "/data.json", Timeout: 5},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Security:  config.SecurityConfig{ContentTypeNosniff: true},
	}
	logger := zap.NewNop()
	db := testutil.NewTestDB(t)
	maxBytes := int64(1 << 20)

	images := service.NewImageService(repository.NewPendingImageRepository(db), maxBytes, logger)
	content := service.NewContentService(repository.NewDocumentRepository(db), images, logger)
	host := &fakeHost{uploads: make(map[string][]byte)}
	publisher := &fakePublisher{files: make(map[string][]byte)}
	syncService := service.NewSyncService(content, images, repository.NewSyncRunRepository(db), host, publisher, nil, cfg, logger)
	uploads := service.NewUploadService(host, nil, maxBytes, logger)

	sessions := session.NewMemoryStore()
	tokens := auth.NewTokenManager(cfg.Admin.JWTSecret, time.Hour)
	authService := service.NewAuthService(cfg, tokens, sessions, syncService, logger)

	handlers := router.Handlers{
		Health:  handler.NewHealthHandler(db, sessions, logger),
		Auth:    handler.NewAuthHandler(authService, logger),
		Content: handler.NewContentHandler(content, 4*maxBytes, logger),
		Images:  handler.NewImageHandler(images, maxBytes, logger),
		Uploads: handler.NewUploadHandler(uploads, maxBytes, logger),
		Sync:    handler.NewSyncHandler(syncService, logger),
	}
	if len(media) > 0 {
		handlers.Media = media[0]
	}

	rt := router.NewRouter(cfg, logger,
		auth.NewMiddleware(&cfg.Admin, tokens, sessions, logger),
		middleware.NewRateLimiter(&cfg.RateLimit, logger),
		handlers,
	)
	return &testServer{handler: rt.Setup(), host: host, publisher: publisher, sync: syncService}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

// admin issues requests authenticated with the API key
func (s *testServer) admin(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, method, path, body, map[string]string{"X-API-Key": apiKey})
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = s.do(t, http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode[map[string]interface{}](t, w)["status"])

	w = s.do(t, http.MethodGet, "/health/db", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/v1/content", "/api/v1/projects", "/api/v1/sync/status", "/api/v1/history"} {
		w := s.do(t, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	w := s.do(t, http.MethodGet, "/api/v1/projects", nil, map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginLogoutFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/auth/login", domain.LoginRequest{Email: adminEmail, Password: "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "not-an-email"}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	apiErr := decode[domain.APIError](t, w)
	assert.Equal(t, domain.ErrorTypeValidation, apiErr.Type)
	assert.Contains(t, apiErr.Errors, "email")
	assert.Contains(t, apiErr.Errors, "password")

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", domain.LoginRequest{Email: adminEmail, Password: adminPassword}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[domain.LoginResponse](t, w)
	bearer := map[string]string{"Authorization": "Bearer " + login.AccessToken}

	w = s.do(t, http.MethodGet, "/api/v1/auth/me", nil, bearer)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[domain.AdminDTO](t, w)
	assert.Equal(t, adminEmail, me.Email)
	assert.Equal(t, "jwt", me.Method)

	w = s.do(t, http.MethodPost, "/api/v1/auth/logout", nil, bearer)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[domain.LogoutResponse](t, w).SyncStarted)

	// the token is useless once its session is gone
	w = s.do(t, http.MethodGet, "/api/v1/auth/me", nil, bearer)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProjectCRUD(t *testing.T) {
	s := newTestServer(t)

	w := s.admin(t, http.MethodGet, "/api/v1/projects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]domain.Project](t, w))

	w = s.admin(t, http.MethodPost, "/api/v1/projects", domain.CreateProjectRequest{Title: "Brand Refresh"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[domain.Project](t, w)
	assert.Equal(t, "brand-refresh", created.ID)
	assert.Equal(t, "/api/v1/projects/brand-refresh", w.Header().Get("Location"))

	w = s.admin(t, http.MethodPost, "/api/v1/projects", domain.CreateProjectRequest{ID: "brand-refresh", Title: "Again"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.admin(t, http.MethodPost, "/api/v1/projects", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.admin(t, http.MethodPatch, "/api/v1/projects/brand-refresh", map[string]string{"client": "Acme"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Acme", decode[domain.Project](t, w).Client)

	w = s.admin(t, http.MethodGet, "/api/v1/projects/brand-refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Acme", decode[domain.Project](t, w).Client)

	w = s.admin(t, http.MethodPatch, "/api/v1/projects/missing", map[string]string{"client": "Acme"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domain.ErrorTypeNotFound, decode[domain.APIError](t, w).Type)

	w = s.admin(t, http.MethodDelete, "/api/v1/projects/brand-refresh", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.admin(t, http.MethodGet, "/api/v1/projects/brand-refresh", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReplaceProjectsRejectsDuplicates(t *testing.T) {
	s := newTestServer(t)

	w := s.admin(t, http.MethodPut, "/api/v1/projects", []domain.Project{{ID: "a", Title: "A"}, {ID: "a", Title: "B"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.admin(t, http.MethodPut, "/api/v1/projects", []domain.Project{{ID: "b", Title: "B"}, {ID: "a", Title: "A"}})
	require.Equal(t, http.StatusOK, w.Code)
	projects := decode[[]domain.Project](t, w)
	require.Len(t, projects, 2)
	assert.Equal(t, "b", projects[0].ID)
}

func TestAboutAndHome(t *testing.T) {
	s := newTestServer(t)

	w := s.admin(t, http.MethodGet, "/api/v1/home", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Product Designer", decode[domain.HomeHeader](t, w).Title)

	w = s.admin(t, http.MethodPut, "/api/v1/home", map[string]string{"title": "Designer & Maker"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Designer & Maker", decode[domain.HomeHeader](t, w).Title)

	w = s.admin(t, http.MethodPut, "/api/v1/home", map[string]string{"title": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.admin(t, http.MethodDelete, "/api/v1/home", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Product Designer", decode[domain.HomeHeader](t, w).Title)

	profile := domain.EncodeDataURL("image/png", pngBytes)
	w = s.admin(t, http.MethodPut, "/api/v1/about", map[string]string{"profileImage": profile})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "local:about-profile-image", decode[domain.AboutPage](t, w).ProfileImage)

	// the offloaded bytes are reachable without credentials
	w = s.do(t, http.MethodGet, "/api/v1/images/about-profile-image", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=31536000", w.Header().Get("Cache-Control"))
	assert.Equal(t, pngBytes, w.Body.Bytes())
}

func multipartBody(t *testing.T, field, filename string, data []byte, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestImages(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartBody(t, "file", "logo.png", pngBytes, map[string]string{"id": "logo"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/images", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-API-Key", apiKey)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	img := decode[domain.PendingImageDTO](t, w)
	assert.Equal(t, "logo", img.ID)
	assert.Equal(t, "local:logo", img.Ref)

	w = s.admin(t, http.MethodPost, "/api/v1/images", domain.SaveImageRequest{ID: "text", ImageData: "data:text/plain;base64,aGVsbG8="})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.admin(t, http.MethodGet, "/api/v1/images", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.PendingImageDTO](t, w), 1)

	w = s.admin(t, http.MethodDelete, "/api/v1/images/logo", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/images/logo", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploads(t *testing.T) {
	s := newTestServer(t)

	w := s.admin(t, http.MethodPost, "/api/v1/uploads", domain.UploadImageRequest{
		ImageID:   "hero",
		ImageData: domain.EncodeDataURL("image/png", pngBytes),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[domain.UploadResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "https://cdn.test/hero", resp.URL)

	w = s.admin(t, http.MethodPost, "/api/v1/uploads", domain.UploadImageRequest{ImageData: "local:hero"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.admin(t, http.MethodGet, "/api/v1/uploads/imagekit/auth", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSyncEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.admin(t, http.MethodPost, "/api/v1/projects", domain.CreateProjectRequest{
		Title:     "Alpha",
		Thumbnail: domain.EncodeDataURL("image/png", pngBytes),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.admin(t, http.MethodGet, "/api/v1/sync/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[domain.SyncStatusDTO](t, w)
	assert.True(t, status.PendingChanges)
	assert.Equal(t, int64(1), status.PendingImages)

	w = s.admin(t, http.MethodPost, "/api/v1/sync", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	run := decode[domain.SyncRunDTO](t, w)
	assert.Equal(t, "published", run.Status)
	assert.Equal(t, 1, run.ImagesUploaded)

	w = s.admin(t, http.MethodPost, "/api/v1/sync", domain.SyncRequest{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "skipped", decode[domain.SyncRunDTO](t, w).Status)

	w = s.admin(t, http.MethodGet, "/api/v1/sync/runs?pageSize=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[map[string]interface{}](t, w)
	assert.EqualValues(t, 2, page["total"])

	w = s.admin(t, http.MethodGet, "/api/v1/sync/runs/"+run.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.admin(t, http.MethodGet, "/api/v1/sync/runs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.admin(t, http.MethodGet, "/api/v1/sync/runs?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.admin(t, http.MethodPost, "/api/v1/sync/repair-refs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.admin(t, http.MethodPost, "/api/v1/sync/migrate-images", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[domain.MaintenanceResult](t, w).ImagesUploaded)

	// no deploy.siteURL, so pull falls back to the repository copy
	w = s.admin(t, http.MethodPost, "/api/v1/sync/pull", domain.PullRequest{Mode: domain.ImportReplace})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.admin(t, http.MethodPost, "/api/v1/sync/pull", map[string]string{"mode": "merge"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// proxying needs a site URL
	w = s.admin(t, http.MethodGet, "/api/v1/deployed?path=/data.json", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = s.admin(t, http.MethodPost, "/api/v1/sync/scrape-images", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// history is not configured in this server
	w = s.admin(t, http.MethodGet, "/api/v1/history", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestContentExportImport(t *testing.T) {
	s := newTestServer(t)

	w := s.admin(t, http.MethodPost, "/api/v1/content/import", domain.ImportRequest{
		Mode: domain.ImportSeed,
		Data: domain.SiteData{
			Projects: []domain.Project{{ID: "seeded", Title: "Seeded"}},
			Home:     domain.HomeHeader{Title: "Seeded home"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[domain.ImportResult](t, w).Written, 3)

	w = s.admin(t, http.MethodGet, "/api/v1/content", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode[domain.SiteData](t, w)
	assert.Equal(t, "Seeded home", data.Home.Title)
	assert.NotEmpty(t, data.Timestamp)

	w = s.admin(t, http.MethodGet, "/api/v1/content/documents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	docs := decode[[]domain.DocumentInfo](t, w)
	require.Len(t, docs, 3)
	for _, d := range docs {
		assert.False(t, d.IsDefault, d.Key)
	}

	w = s.admin(t, http.MethodPost, "/api/v1/content/import", map[string]string{"mode": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSwaggerDisabledByDefault(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/swagger/index.html", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMediaServesLocalUploads(t *testing.T) {
	local, err := storage.NewLocalStorage(t.TempDir(), "http://api.test")
	require.NoError(t, err)
	uploaded, err := local.Upload(context.Background(), storage.Object{
		Key:         "alpha-thumbnail-1",
		ContentType: "image/png",
		Size:        int64(len(pngBytes)),
		Body:        bytes.NewReader(pngBytes),
	})
	require.NoError(t, err)
	require.Equal(t, "http://api.test/media/"+uploaded.Key, uploaded.OriginalURL)

	s := newTestServer(t, handler.NewMediaHandler(local, zap.NewNop()))

	w := s.do(t, http.MethodGet, "/media/"+uploaded.Key, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Cache-Control"), "immutable")
	assert.Equal(t, pngBytes, w.Body.Bytes())

	w = s.do(t, http.MethodGet, "/media/al/ph/missing.png", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
