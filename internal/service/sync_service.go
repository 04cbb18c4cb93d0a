package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/folio-works/portfolio-api/internal/config"
	"github.com/folio-works/portfolio-api/internal/domain"
	"github.com/folio-works/portfolio-api/internal/ghcontent"
	"github.com/folio-works/portfolio-api/internal/history"
	"github.com/folio-works/portfolio-api/internal/logger"
	"github.com/folio-works/portfolio-api/internal/mapper"
	"github.com/folio-works/portfolio-api/internal/repository"
	"github.com/folio-works/portfolio-api/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// maxDeployedBytes caps what is read from the deployed site
const maxDeployedBytes = 25 << 20

// Publisher writes data.json to the site repository
type Publisher interface {
	GetFile(ctx context.Context, path string) (*ghcontent.File, error)
	Publish(ctx context.Context, path string, content []byte, message string, maxAttempts int) (*ghcontent.Commit, error)
}

// SnapshotStore keeps every published data.json
type SnapshotStore interface {
	Record(content []byte, message string) (string, bool, error)
	Log(limit int) ([]domain.VersionDTO, error)
	Read(hash string) ([]byte, domain.VersionDTO, error)
}

// DeployedContent is a file fetched from the deployed site, ready to return to the client
type DeployedContent struct {
	ContentType string
	Body        []byte
}

type resolveStats struct {
	uploaded int
	cleared  int
	updated  []string
}

// SyncService publishes the content store to the site repository
type SyncService struct {
	content    *ContentService
	images     *ImageService
	runRepo    *repository.SyncRunRepository
	host       storage.Host
	publisher  Publisher
	snapshots  SnapshotStore
	github     config.GitHubConfig
	syncCfg    config.SyncConfig
	deploy     config.DeployConfig
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewSyncService creates a new SyncService. publisher and snapshots may be nil
// when GitHub or the history repository are not configured.
func NewSyncService(
	content *ContentService,
	images *ImageService,
	runRepo *repository.SyncRunRepository,
	host storage.Host,
	publisher Publisher,
	snapshots SnapshotStore,
	cfg *config.Config,
	logger *zap.Logger,
) *SyncService {
	timeout := cfg.Deploy.TimeoutDuration()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SyncService{
		content:    content,
		images:     images,
		runRepo:    runRepo,
		host:       host,
		publisher:  publisher,
		snapshots:  snapshots,
		github:     cfg.GitHub,
		syncCfg:    cfg.Sync,
		deploy:     cfg.Deploy,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}
}

// ============================================================================
// Sync
// ============================================================================

// Sync resolves pending images, then publishes the exported content unless it
// matches the last published run. Only one sync runs at a time.
func (s *SyncService) Sync(ctx context.Context, trigger domain.SyncTrigger, force bool) (*domain.SyncRunDTO, error) {
	if s.publisher == nil {
		return nil, fmt.Errorf("%w: github repository is not set", ErrNotConfigured)
	}
	if !s.mu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.mu.Unlock()
	s.running.Store(true)
	defer s.running.Store(false)

	run := &domain.SyncRun{
		Trigger:   trigger,
		Status:    domain.SyncStatusRunning,
		StartedAt: s.now().UTC(),
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record sync run: %w", err)
	}

	log := logger.WithSync(s.logger, run.ID.String(), string(trigger))
	log.Info("sync started", zap.Bool("force", force))

	err := s.execute(ctx, run, force, log)

	finished := s.now().UTC()
	run.FinishedAt = &finished
	if err != nil {
		run.Status = domain.SyncStatusFailed
		run.Error = err.Error()
	}
	if uerr := s.runRepo.Update(context.WithoutCancel(ctx), run); uerr != nil {
		log.Error("failed to save sync run", zap.Error(uerr))
	}

	if err != nil {
		log.Error("sync failed", zap.Error(err), zap.Duration("duration", finished.Sub(run.StartedAt)))
		return nil, err
	}

	log.Info("sync finished",
		zap.String("status", string(run.Status)),
		zap.String("commit", run.CommitSHA),
		zap.Int("imagesUploaded", run.ImagesUploaded),
		zap.Int("refsCleared", run.RefsCleared),
		zap.Duration("duration", finished.Sub(run.StartedAt)),
	)
	dto := mapper.ToSyncRunDTO(run)
	return &dto, nil
}

func (s *SyncService) execute(ctx context.Context, run *domain.SyncRun, force bool, log *zap.Logger) error {
	stats, err := s.resolveImages(ctx, log)
	run.ImagesUploaded = stats.uploaded
	run.RefsCleared = stats.cleared
	if err != nil {
		return err
	}

	data, err := s.content.Export(ctx)
	if err != nil {
		return err
	}
	if remaining := countUnresolved(data); remaining > 0 {
		return fmt.Errorf("%w: %d image references were added during the sync", ErrConflict, remaining)
	}

	hash, err := ContentHash(data)
	if err != nil {
		return err
	}
	run.ContentHash = hash

	if !force {
		last, err := s.lastPublished(ctx)
		if err != nil {
			return err
		}
		if last != nil && last.ContentHash == hash {
			run.Status = domain.SyncStatusSkipped
			log.Info("content unchanged since last publish, skipping", zap.String("contentHash", hash))
			return nil
		}
	}

	payload, err := MarshalSiteData(data)
	if err != nil {
		return err
	}

	message := s.github.CommitMessage
	if message == "" {
		message = "Update content from admin panel"
	}
	commit, err := s.publisher.Publish(ctx, s.github.Path, payload, message, s.github.MaxAttempts)
	if err != nil {
		return githubError(err)
	}
	run.Attempts = commit.Attempts
	run.FileSHA = commit.FileSHA
	if commit.Unchanged {
		run.Status = domain.SyncStatusSkipped
		return nil
	}
	run.CommitSHA = commit.SHA
	run.Status = domain.SyncStatusPublished

	s.recordSnapshot(payload, fmt.Sprintf("%s (%s)", message, shortSHA(commit.SHA)), log)
	s.notifyDeploy(ctx, log)
	return nil
}

// TriggerBackground starts a sync detached from the caller's request. It
// returns false when no publisher is configured.
func (s *SyncService) TriggerBackground(trigger domain.SyncTrigger) bool {
	if s.publisher == nil {
		return false
	}
	timeout := s.syncCfg.TimeoutDuration()
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := s.Sync(ctx, trigger, false); err != nil && !errors.Is(err, ErrSyncInProgress) {
			s.logger.Error("background sync failed", zap.String("trigger", string(trigger)), zap.Error(err))
		}
	}()
	return true
}

// Wait blocks until background syncs have finished
func (s *SyncService) Wait() {
	s.wg.Wait()
}

// RecoverAbandoned fails runs a previous process left in the running state
func (s *SyncService) RecoverAbandoned(ctx context.Context) error {
	n, err := s.runRepo.MarkAbandoned(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover abandoned sync runs: %w", err)
	}
	if n > 0 {
		s.logger.Warn("marked abandoned sync runs as failed", zap.Int64("count", n))
	}
	return nil
}

// ============================================================================
// Status
// ============================================================================

// Status reports the last runs and whether the content changed since the last publish
func (s *SyncService) Status(ctx context.Context) (*domain.SyncStatusDTO, error) {
	data, err := s.content.Export(ctx)
	if err != nil {
		return nil, err
	}
	hash, err := ContentHash(data)
	if err != nil {
		return nil, err
	}
	pending, err := s.images.CountPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending images: %w", err)
	}

	status := &domain.SyncStatusDTO{
		InProgress:    s.running.Load(),
		ContentHash:   hash,
		PendingImages: pending,
	}

	last, err := s.runRepo.Latest(ctx, "")
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load last sync run: %w", err)
	}
	if last != nil {
		dto := mapper.ToSyncRunDTO(last)
		status.LastRun = &dto
	}

	published, err := s.lastPublished(ctx)
	if err != nil {
		return nil, err
	}
	if published != nil {
		dto := mapper.ToSyncRunDTO(published)
		status.LastPublished = &dto
	}

	status.PendingChanges = published == nil || published.ContentHash != hash || countUnresolved(data) > 0
	return status, nil
}

// Runs returns a page of sync runs, newest first
func (s *SyncService) Runs(ctx context.Context, page, pageSize int, status string) (*domain.PaginatedResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 200 {
		pageSize = 200
	}

	runs, total, err := s.runRepo.List(ctx, page, pageSize, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return &domain.PaginatedResponse{
		Data:       mapper.ToSyncRunDTOs(runs),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func (s *SyncService) GetRun(ctx context.Context, id uuid.UUID) (*domain.SyncRunDTO, error) {
	run, err := s.runRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}
	dto := mapper.ToSyncRunDTO(run)
	return &dto, nil
}

func (s *SyncService) lastPublished(ctx context.Context) (*domain.SyncRun, error) {
	run, err := s.runRepo.Latest(ctx, domain.SyncStatusPublished)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last published run: %w", err)
	}
	return run, nil
}

// ============================================================================
// Image resolution & maintenance
// ============================================================================

// MigrateImages uploads every pending and inline image and writes the hosted
// URLs back without publishing
func (s *SyncService) MigrateImages(ctx context.Context) (*domain.MaintenanceResult, error) {
	if !s.mu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.mu.Unlock()

	stats, err := s.resolveImages(ctx, s.logger)
	if err != nil {
		return nil, err
	}
	return &domain.MaintenanceResult{
		ImagesUploaded:   stats.uploaded,
		RefsCleared:      stats.cleared,
		DocumentsUpdated: stats.updated,
	}, nil
}

// RepairReferences removes local references whose image no longer exists
func (s *SyncService) RepairReferences(ctx context.Context) (*domain.MaintenanceResult, error) {
	if !s.mu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.mu.Unlock()

	data, err := s.content.Export(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	data.VisitImages(func(_, _ string, ref *string) {
		if id, ok := domain.LocalRefID(*ref); ok {
			ids = append(ids, id)
		}
	})
	existing, err := s.images.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	cleared := 0
	updated, err := s.content.RewriteImages(ctx, func(owner, slot string, ref *string) {
		if id, ok := domain.LocalRefID(*ref); ok && !existing[id] {
			s.logger.Warn("clearing dangling image reference",
				zap.String("owner", owner),
				zap.String("slot", slot),
				zap.String("imageId", id),
			)
			*ref = ""
			cleared++
		}
	})
	if err != nil {
		return nil, err
	}
	return &domain.MaintenanceResult{RefsCleared: cleared, DocumentsUpdated: updated}, nil
}

// resolveImages uploads every local and inline image reference in parallel and
// writes the hosted URLs back into the stored documents. References to images
// that no longer exist are cleared.
func (s *SyncService) resolveImages(ctx context.Context, log *zap.Logger) (resolveStats, error) {
	stats := resolveStats{updated: []string{}}

	data, err := s.content.Export(ctx)
	if err != nil {
		return stats, err
	}
	refs := make(map[string]struct{})
	data.VisitImages(func(_, _ string, ref *string) {
		if domain.NeedsUpload(*ref) {
			refs[*ref] = struct{}{}
		}
	})
	if len(refs) == 0 {
		return stats, nil
	}

	var mu sync.Mutex
	resolved := make(map[string]string, len(refs))

	limit := s.syncCfg.UploadConcurrency
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for ref := range refs {
		g.Go(func() error {
			hosted, uploaded, err := s.resolveRef(gctx, ref, log)
			if err != nil {
				return fmt.Errorf("image %s: %w", refLabel(ref), err)
			}
			mu.Lock()
			defer mu.Unlock()
			resolved[ref] = hosted
			if uploaded {
				stats.uploaded++
			}
			if hosted == "" {
				stats.cleared++
			}
			return nil
		})
	}
	uploadErr := g.Wait()

	// keep whatever was resolved so a retry does not start over
	if len(resolved) > 0 {
		updated, err := s.content.RewriteImages(ctx, func(_, _ string, ref *string) {
			if hosted, ok := resolved[*ref]; ok {
				*ref = hosted
			}
		})
		if err != nil {
			return stats, err
		}
		stats.updated = updated
	}
	return stats, uploadErr
}

// resolveRef returns the hosted URL for ref, uploading when needed. An empty
// URL means the reference is dangling and should be cleared.
func (s *SyncService) resolveRef(ctx context.Context, ref string, log *zap.Logger) (string, bool, error) {
	if id, ok := domain.LocalRefID(ref); ok {
		img, err := s.images.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			log.Warn("image reference points at a missing image", zap.String("imageId", id))
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		if img.IsUploaded() {
			return img.HostedURL, false, nil
		}

		hosted, err := s.upload(ctx, hostedKey(id, img.Data), img.ContentType, img.Data)
		if err != nil {
			return "", false, err
		}
		if err := s.images.MarkUploaded(ctx, id, hosted); err != nil {
			return "", false, err
		}
		return hosted, true, nil
	}

	contentType, data, err := domain.ParseDataURL(ref)
	if err != nil || !storage.IsMedia(storage.DetectContentType(data, contentType)) {
		log.Warn("clearing unreadable inline image", zap.String("ref", refLabel(ref)))
		return "", false, nil
	}
	sum := sha256.Sum256(data)
	hosted, err := s.upload(ctx, "inline-"+hex.EncodeToString(sum[:8]), contentType, data)
	if err != nil {
		return "", false, err
	}
	return hosted, true, nil
}

// hostedKey suffixes the image ID with a digest of its bytes. Image IDs such
// as the profile picture are reused when the image is replaced, and hosts
// serve each key as immutable.
func hostedKey(id string, data []byte) string {
	sum := sha256.Sum256(data)
	if len(id) > 190 {
		id = id[:190]
	}
	return id + "-" + hex.EncodeToString(sum[:4])
}

func (s *SyncService) upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	uploaded, err := s.host.Upload(ctx, storage.Object{
		Key:         key,
		ContentType: storage.DetectContentType(data, contentType),
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	})
	if err != nil {
		return "", hostError(err)
	}
	return uploaded.URL(), nil
}

// ============================================================================
// Deployed site
// ============================================================================

// FetchDeployed reads the live data.json from the deployed site, or from the
// repository when no site URL is configured
func (s *SyncService) FetchDeployed(ctx context.Context) (*domain.SiteData, error) {
	var raw []byte
	switch {
	case s.deploy.SiteURL != "":
		dataPath := s.deploy.DataPath
		if dataPath == "" {
			dataPath = "/data.json"
		}
		content, err := s.fetchFromSite(ctx, dataPath)
		if err != nil {
			return nil, err
		}
		raw = content.Body
	case s.publisher != nil:
		file, err := s.publisher.GetFile(ctx, s.github.Path)
		if err != nil {
			return nil, githubError(err)
		}
		raw = file.Content
	default:
		return nil, fmt.Errorf("%w: neither deploy.siteURL nor github.repository is set", ErrNotConfigured)
	}

	var data domain.SiteData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: deployed data is not valid JSON: %v", ErrUpstream, err)
	}
	return &data, nil
}

// Pull imports the deployed content into the store
func (s *SyncService) Pull(ctx context.Context, mode domain.ImportMode) (*domain.ImportResult, error) {
	data, err := s.FetchDeployed(ctx)
	if err != nil {
		return nil, err
	}
	return s.content.Import(ctx, *data, mode)
}

// ProxyDeployed fetches a file from the deployed site. JSON is returned as is,
// images are wrapped in a DeployedAsset holding a data URL and anything else
// is returned as text. Only paths on the configured site are reachable.
func (s *SyncService) ProxyDeployed(ctx context.Context, p string) (*DeployedContent, error) {
	content, err := s.fetchFromSite(ctx, p)
	if err != nil {
		return nil, err
	}

	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(content.ContentType, ";")[0]))
	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") ||
		(strings.HasSuffix(strings.ToLower(p), ".json") && json.Valid(content.Body)):
		return &DeployedContent{ContentType: "application/json", Body: content.Body}, nil
	case strings.HasPrefix(storage.DetectContentType(content.Body, mediaType), "image/"):
		imageType := storage.DetectContentType(content.Body, mediaType)
		body, err := json.Marshal(domain.DeployedAsset{
			ContentType: imageType,
			Data:        domain.EncodeDataURL(imageType, content.Body),
		})
		if err != nil {
			return nil, err
		}
		return &DeployedContent{ContentType: "application/json", Body: body}, nil
	default:
		return &DeployedContent{ContentType: "text/plain; charset=utf-8", Body: content.Body}, nil
	}
}

func (s *SyncService) fetchFromSite(ctx context.Context, p string) (*DeployedContent, error) {
	target, err := s.siteURL(p)
	if err != nil {
		return nil, err
	}
	return s.fetch(ctx, target)
}

func (s *SyncService) fetch(ctx context.Context, target *url.URL) (*DeployedContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrUpstream, target.Path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s not found on the deployed site", ErrNotFound, target.Path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: deployed site returned %d for %s", ErrUpstream, resp.StatusCode, target.Path)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDeployedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUpstream, target.Path, err)
	}
	if len(body) > maxDeployedBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, target.Path, maxDeployedBytes)
	}
	return &DeployedContent{ContentType: resp.Header.Get("Content-Type"), Body: body}, nil
}

// siteURL resolves p against the configured site, refusing anything that
// would leave the site host
func (s *SyncService) siteURL(p string) (*url.URL, error) {
	if s.deploy.SiteURL == "" {
		return nil, fmt.Errorf("%w: deploy.siteURL is not set", ErrNotConfigured)
	}
	base, err := url.Parse(s.deploy.SiteURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("%w: deploy.siteURL %q is not an http(s) URL", ErrNotConfigured, s.deploy.SiteURL)
	}

	p = strings.TrimSpace(p)
	if p == "" {
		return nil, fmt.Errorf("%w: path is required", ErrInvalidInput)
	}
	ref, err := url.Parse(p)
	if err != nil || ref.IsAbs() || ref.Host != "" || strings.HasPrefix(p, "//") || strings.Contains(p, `\`) {
		return nil, fmt.Errorf("%w: path must be relative to the deployed site", ErrInvalidInput)
	}

	target := *base
	target.Path = strings.TrimRight(base.Path, "/") + path.Clean("/"+ref.Path)
	target.RawPath = ""
	target.RawQuery = ref.RawQuery
	target.Fragment = ""
	return &target, nil
}

// notifyDeploy calls the optional build hook; failures are logged only
func (s *SyncService) notifyDeploy(ctx context.Context, log *zap.Logger) {
	if s.deploy.HookURL == "" {
		return
	}
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, s.deploy.HookURL, http.NoBody)
	if err != nil {
		log.Warn("invalid deploy hook url", zap.Error(err))
		return
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Warn("deploy hook failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("deploy hook returned an error", zap.Int("status", resp.StatusCode))
		return
	}
	log.Info("deploy hook notified", zap.Int("status", resp.StatusCode))
}

// ============================================================================
// History
// ============================================================================

func (s *SyncService) recordSnapshot(payload []byte, message string, log *zap.Logger) {
	if s.snapshots == nil {
		return
	}
	hash, changed, err := s.snapshots.Record(payload, message)
	if err != nil {
		log.Error("failed to record published snapshot", zap.Error(err))
		return
	}
	if changed {
		log.Debug("published snapshot recorded", zap.String("version", hash))
	}
}

// Versions lists published snapshots, newest first
func (s *SyncService) Versions(limit int) ([]domain.VersionDTO, error) {
	if s.snapshots == nil {
		return nil, fmt.Errorf("%w: history is disabled", ErrNotConfigured)
	}
	return s.snapshots.Log(limit)
}

// Version returns the site data published at hash
func (s *SyncService) Version(hash string) (*domain.SiteData, *domain.VersionDTO, error) {
	if s.snapshots == nil {
		return nil, nil, fmt.Errorf("%w: history is disabled", ErrNotConfigured)
	}
	raw, version, err := s.snapshots.Read(hash)
	if err != nil {
		if errors.Is(err, history.ErrVersionNotFound) {
			return nil, nil, fmt.Errorf("%w: version %s", ErrNotFound, hash)
		}
		return nil, nil, err
	}
	var data domain.SiteData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, nil, fmt.Errorf("failed to decode version %s: %w", hash, err)
	}
	return &data, &version, nil
}

// Restore replaces the content store with a published snapshot
func (s *SyncService) Restore(ctx context.Context, hash string) (*domain.ImportResult, error) {
	data, version, err := s.Version(hash)
	if err != nil {
		return nil, err
	}
	result, err := s.content.Import(ctx, *data, domain.ImportReplace)
	if err != nil {
		return nil, err
	}
	s.logger.Info("content restored from history", zap.String("version", version.Hash))
	return result, nil
}

// ============================================================================
// Helpers
// ============================================================================

// ContentHash fingerprints site data, ignoring the export timestamp
func ContentHash(data *domain.SiteData) (string, error) {
	c := *data
	c.Timestamp = ""
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// MarshalSiteData renders data.json with two-space indentation
func MarshalSiteData(data *domain.SiteData) ([]byte, error) {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode site data: %w", err)
	}
	return append(raw, '\n'), nil
}

func countUnresolved(data *domain.SiteData) int {
	n := 0
	data.VisitImages(func(_, _ string, ref *string) {
		if domain.NeedsUpload(*ref) {
			n++
		}
	})
	return n
}

// refLabel shortens data URLs for logs and errors
func refLabel(ref string) string {
	if domain.IsDataURL(ref) {
		if i := strings.Index(ref, ","); i > 0 {
			return ref[:i] + ",..."
		}
	}
	return ref
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func githubError(err error) error {
	switch {
	case errors.Is(err, ghcontent.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, ghcontent.ErrConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
}
