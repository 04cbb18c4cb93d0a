package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/folio-works/portfolio-api/internal/domain"
	"github.com/folio-works/portfolio-api/internal/mapper"
	"github.com/folio-works/portfolio-api/internal/repository"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxWriteAttempts bounds the read-modify-write retries on a stale revision
const maxWriteAttempts = 3

var validate = validator.New()

// errNoChange lets a mutation skip the write when it found nothing to change
var errNoChange = errors.New("no change")

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// ContentService manages the projects, about and home documents
type ContentService struct {
	docRepo *repository.DocumentRepository
	images  *ImageService
	logger  *zap.Logger
	now     func() time.Time
}

// NewContentService creates a new ContentService instance
func NewContentService(docRepo *repository.DocumentRepository, images *ImageService, logger *zap.Logger) *ContentService {
	return &ContentService{
		docRepo: docRepo,
		images:  images,
		logger:  logger,
		now:     time.Now,
	}
}

// ============================================================================
// Projects
// ============================================================================

func (s *ContentService) GetProjects(ctx context.Context) ([]domain.Project, error) {
	projects := domain.DefaultProjects()
	if _, err := s.loadDocument(ctx, domain.DocumentProjects, &projects); err != nil {
		return nil, err
	}
	if projects == nil {
		projects = domain.DefaultProjects()
	}
	return projects, nil
}

func (s *ContentService) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	projects, err := s.GetProjects(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOfProject(projects, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	return &projects[i], nil
}

// CreateProject appends a project with placeholder details. Without an
// explicit ID the ID is derived from the title and made unique.
func (s *ContentService) CreateProject(ctx context.Context, req domain.CreateProjectRequest) (*domain.Project, error) {
	var created domain.Project
	_, err := s.updateProjects(ctx, func(projects *[]domain.Project) error {
		id := slugify(req.ID)
		if req.ID != "" {
			if indexOfProject(*projects, id) >= 0 {
				return fmt.Errorf("%w: project %s already exists", ErrConflict, id)
			}
		} else {
			id = uniqueProjectID(*projects, slugify(req.Title))
		}

		created = domain.Project{
			ID:          id,
			Title:       strings.TrimSpace(req.Title),
			Category:    req.Category,
			Thumbnail:   req.Thumbnail,
			Images:      []string{},
			Description: "New project - add description",
			Year:        strconv.Itoa(s.now().Year()),
			Client:      "TBD",
			Role:        "Product Designer",
			History: []domain.HistoryPhase{
				{Phase: "Project Overview", Content: "Add project details here"},
			},
		}
		if err := validate.Struct(created); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		*projects = append(*projects, created)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// thumbnail may have been offloaded during the write
	project, err := s.GetProject(ctx, created.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("project created", zap.String("projectId", project.ID))
	return project, nil
}

// UpdateProject applies the non-nil fields of req to the project
func (s *ContentService) UpdateProject(ctx context.Context, id string, req domain.UpdateProjectRequest) (*domain.Project, error) {
	projects, err := s.updateProjects(ctx, func(projects *[]domain.Project) error {
		i := indexOfProject(*projects, id)
		if i < 0 {
			return fmt.Errorf("%w: project %s", ErrNotFound, id)
		}
		p := &(*projects)[i]
		if req.Title != nil {
			p.Title = *req.Title
		}
		if req.Category != nil {
			p.Category = *req.Category
		}
		if req.Thumbnail != nil {
			p.Thumbnail = *req.Thumbnail
		}
		if req.Images != nil {
			p.Images = *req.Images
		}
		if req.Description != nil {
			p.Description = *req.Description
		}
		if req.Year != nil {
			p.Year = *req.Year
		}
		if req.Client != nil {
			p.Client = *req.Client
		}
		if req.Role != nil {
			p.Role = *req.Role
		}
		if req.History != nil {
			p.History = *req.History
		}
		if err := validate.Struct(p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &projects[indexOfProject(projects, id)], nil
}

func (s *ContentService) DeleteProject(ctx context.Context, id string) error {
	_, err := s.updateProjects(ctx, func(projects *[]domain.Project) error {
		i := indexOfProject(*projects, id)
		if i < 0 {
			return fmt.Errorf("%w: project %s", ErrNotFound, id)
		}
		*projects = append((*projects)[:i], (*projects)[i+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("project deleted", zap.String("projectId", id))
	return nil
}

// ReplaceProjects overwrites the whole projects document, e.g. after a reorder
func (s *ContentService) ReplaceProjects(ctx context.Context, projects []domain.Project) ([]domain.Project, error) {
	if err := validateProjects(projects); err != nil {
		return nil, err
	}
	return s.updateProjects(ctx, func(current *[]domain.Project) error {
		*current = append([]domain.Project{}, projects...)
		return nil
	})
}

func (s *ContentService) ResetProjects(ctx context.Context) ([]domain.Project, error) {
	return s.updateProjects(ctx, func(current *[]domain.Project) error {
		*current = domain.DefaultProjects()
		return nil
	})
}

// ============================================================================
// About & Home
// ============================================================================

func (s *ContentService) GetAbout(ctx context.Context) (*domain.AboutPage, error) {
	about := domain.DefaultAbout()
	if _, err := s.loadDocument(ctx, domain.DocumentAbout, &about); err != nil {
		return nil, err
	}
	normalizeAbout(&about)
	return &about, nil
}

func (s *ContentService) UpdateAbout(ctx context.Context, req domain.UpdateAboutRequest) (*domain.AboutPage, error) {
	about, err := s.updateAbout(ctx, func(about *domain.AboutPage) error {
		if req.Content != nil {
			about.Content = *req.Content
		}
		if req.ProfileImage != nil {
			about.ProfileImage = *req.ProfileImage
		}
		if req.Skills != nil {
			about.Skills = req.Skills
		}
		normalizeAbout(about)
		if err := validate.Struct(about); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &about, nil
}

func (s *ContentService) ResetAbout(ctx context.Context) (*domain.AboutPage, error) {
	about, err := s.updateAbout(ctx, func(about *domain.AboutPage) error {
		*about = domain.DefaultAbout()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &about, nil
}

func (s *ContentService) GetHome(ctx context.Context) (*domain.HomeHeader, error) {
	home := domain.DefaultHome()
	if _, err := s.loadDocument(ctx, domain.DocumentHome, &home); err != nil {
		return nil, err
	}
	return &home, nil
}

func (s *ContentService) UpdateHome(ctx context.Context, req domain.UpdateHomeRequest) (*domain.HomeHeader, error) {
	home, err := mutateDocument(ctx, s, domain.DocumentHome, domain.DefaultHome, func(home *domain.HomeHeader) error {
		if req.Title != nil {
			home.Title = *req.Title
		}
		if req.Subtitle != nil {
			home.Subtitle = *req.Subtitle
		}
		if err := validate.Struct(home); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil
	}, visitNone[domain.HomeHeader])
	if err != nil {
		return nil, err
	}
	return &home, nil
}

func (s *ContentService) ResetHome(ctx context.Context) (*domain.HomeHeader, error) {
	home, err := mutateDocument(ctx, s, domain.DocumentHome, domain.DefaultHome, func(home *domain.HomeHeader) error {
		*home = domain.DefaultHome()
		return nil
	}, visitNone[domain.HomeHeader])
	if err != nil {
		return nil, err
	}
	return &home, nil
}

// ============================================================================
// Export / Import
// ============================================================================

// Export assembles the data.json the static site reads
func (s *ContentService) Export(ctx context.Context) (*domain.SiteData, error) {
	projects, err := s.GetProjects(ctx)
	if err != nil {
		return nil, err
	}
	about, err := s.GetAbout(ctx)
	if err != nil {
		return nil, err
	}
	home, err := s.GetHome(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.SiteData{
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Projects:  projects,
		About:     *about,
		Home:      *home,
	}, nil
}

// Import loads site data into the store. ImportSeed only writes documents that
// have never been written; ImportReplace overwrites all of them.
func (s *ContentService) Import(ctx context.Context, data domain.SiteData, mode domain.ImportMode) (*domain.ImportResult, error) {
	if mode != domain.ImportSeed && mode != domain.ImportReplace {
		return nil, fmt.Errorf("%w: unknown import mode %q", ErrInvalidInput, mode)
	}
	if data.Projects == nil {
		data.Projects = domain.DefaultProjects()
	}
	if data.Home.Title == "" {
		data.Home = domain.DefaultHome()
	}
	normalizeAbout(&data.About)
	if err := validateProjects(data.Projects); err != nil {
		return nil, err
	}
	if err := validate.Struct(data.About); err != nil {
		return nil, fmt.Errorf("%w: about: %v", ErrInvalidInput, err)
	}
	if err := validate.Struct(data.Home); err != nil {
		return nil, fmt.Errorf("%w: home: %v", ErrInvalidInput, err)
	}

	result := &domain.ImportResult{Mode: mode, Written: []string{}, Skipped: []string{}}
	record := func(key string, written bool) {
		if written {
			result.Written = append(result.Written, key)
		} else {
			result.Skipped = append(result.Skipped, key)
		}
	}

	if mode == domain.ImportSeed {
		walkers := map[string]func(domain.ImageVisitor){
			domain.DocumentProjects: func(v domain.ImageVisitor) { visitProjects(&data.Projects, v) },
			domain.DocumentAbout:    func(v domain.ImageVisitor) { visitAbout(&data.About, v) },
			domain.DocumentHome:     func(domain.ImageVisitor) {},
		}
		docs := map[string]interface{}{
			domain.DocumentProjects: &data.Projects,
			domain.DocumentAbout:    &data.About,
			domain.DocumentHome:     &data.Home,
		}
		for _, key := range domain.DocumentKeys {
			created, err := s.seedDocument(ctx, key, docs[key], walkers[key])
			if err != nil {
				return nil, err
			}
			record(key, created)
		}
	} else {
		if _, err := s.updateProjects(ctx, func(p *[]domain.Project) error {
			*p = data.Projects
			return nil
		}); err != nil {
			return nil, err
		}
		record(domain.DocumentProjects, true)

		if _, err := s.updateAbout(ctx, func(a *domain.AboutPage) error {
			*a = data.About
			return nil
		}); err != nil {
			return nil, err
		}
		record(domain.DocumentAbout, true)

		if _, err := mutateDocument(ctx, s, domain.DocumentHome, domain.DefaultHome, func(h *domain.HomeHeader) error {
			*h = data.Home
			return nil
		}, visitNone[domain.HomeHeader]); err != nil {
			return nil, err
		}
		record(domain.DocumentHome, true)
	}

	s.logger.Info("content imported",
		zap.String("mode", string(mode)),
		zap.Strings("written", result.Written),
		zap.Strings("skipped", result.Skipped),
	)
	return result, nil
}

// seedDocument writes doc under key unless a document already exists. Inline
// images are only stored for documents that are written.
func (s *ContentService) seedDocument(ctx context.Context, key string, doc interface{}, walk func(domain.ImageVisitor)) (bool, error) {
	_, err := s.docRepo.Get(ctx, key)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	saved, err := s.offloadImages(ctx, walk)
	if err != nil {
		s.discardImages(ctx, saved)
		return false, err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		s.discardImages(ctx, saved)
		return false, fmt.Errorf("failed to encode %s: %w", key, err)
	}
	created, err := s.docRepo.CreateIfAbsent(ctx, key, string(body))
	if err != nil || !created {
		s.discardImages(ctx, saved)
	}
	if err != nil {
		return false, fmt.Errorf("failed to seed %s: %w", key, err)
	}
	return created, nil
}

// Documents lists the revision of every content document
func (s *ContentService) Documents(ctx context.Context) ([]domain.DocumentInfo, error) {
	docs, err := s.docRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	byKey := make(map[string]*domain.ContentDocument, len(docs))
	for i := range docs {
		byKey[docs[i].Key] = &docs[i]
	}
	infos := make([]domain.DocumentInfo, 0, len(domain.DocumentKeys))
	for _, key := range domain.DocumentKeys {
		infos = append(infos, mapper.ToDocumentInfo(key, byKey[key]))
	}
	return infos, nil
}

// RewriteImages passes every stored image reference to fn and saves the
// documents whose references fn changed. A reference set to "" is removed.
// It returns the keys of the documents written.
func (s *ContentService) RewriteImages(ctx context.Context, fn domain.ImageVisitor) ([]string, error) {
	updated := []string{}

	_, err := s.updateProjects(ctx, func(projects *[]domain.Project) error {
		changed := false
		for i := range *projects {
			(*projects)[i].VisitImages(trackChanges(fn, &changed))
			(*projects)[i].CompactImages()
		}
		if !changed {
			return errNoChange
		}
		updated = append(updated, domain.DocumentProjects)
		return nil
	})
	if err != nil {
		return nil, err
	}

	_, err = s.updateAbout(ctx, func(about *domain.AboutPage) error {
		changed := false
		about.VisitImages(trackChanges(fn, &changed))
		if !changed {
			return errNoChange
		}
		updated = append(updated, domain.DocumentAbout)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ============================================================================
// Document plumbing
// ============================================================================

func (s *ContentService) updateProjects(ctx context.Context, fn func(*[]domain.Project) error) ([]domain.Project, error) {
	return mutateDocument(ctx, s, domain.DocumentProjects, domain.DefaultProjects, fn, visitProjects)
}

func (s *ContentService) updateAbout(ctx context.Context, fn func(*domain.AboutPage) error) (domain.AboutPage, error) {
	return mutateDocument(ctx, s, domain.DocumentAbout, domain.DefaultAbout, fn, visitAbout)
}

// loadDocument decodes the stored document into out and returns its revision.
// out is left untouched and the revision is 0 when the document was never written.
func (s *ContentService) loadDocument(ctx context.Context, key string, out interface{}) (int64, error) {
	doc, err := s.docRepo.Get(ctx, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(doc.Body), out); err != nil {
		return 0, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return doc.Revision, nil
}

// mutateDocument runs a read-modify-write of one document. Inline images are
// moved into the image store before the write, and the whole cycle is retried
// when another writer bumped the revision in between.
func mutateDocument[T any](
	ctx context.Context,
	s *ContentService,
	key string,
	initial func() T,
	fn func(*T) error,
	visit func(*T, domain.ImageVisitor),
) (T, error) {
	var zero T
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		doc := initial()
		revision, err := s.loadDocument(ctx, key, &doc)
		if err != nil {
			return zero, err
		}

		if err := fn(&doc); err != nil {
			if errors.Is(err, errNoChange) {
				return doc, nil
			}
			return zero, err
		}

		saved, err := s.offloadImages(ctx, func(v domain.ImageVisitor) { visit(&doc, v) })
		if err != nil {
			s.discardImages(ctx, saved)
			return zero, err
		}

		body, err := json.Marshal(doc)
		if err != nil {
			return zero, fmt.Errorf("failed to encode %s: %w", key, err)
		}
		_, err = s.docRepo.Put(ctx, key, string(body), revision)
		if errors.Is(err, repository.ErrStaleRevision) {
			s.discardImages(ctx, saved)
			s.logger.Debug("document changed during write, retrying",
				zap.String("document", key),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return zero, fmt.Errorf("failed to save %s: %w", key, err)
		}
		return doc, nil
	}
	return zero, fmt.Errorf("%w: %s kept changing during the write", ErrConflict, key)
}

// offloadImages moves inline data:image payloads into the image store and
// replaces them with local references. Legacy indexeddb: references are
// rewritten to the local: form. The IDs of stored images are returned, also
// on error.
func (s *ContentService) offloadImages(ctx context.Context, walk func(domain.ImageVisitor)) ([]string, error) {
	var firstErr error
	var saved []string
	now := s.now()

	walk(func(owner, slot string, ref *string) {
		if firstErr != nil {
			return
		}
		if id, ok := domain.LocalRefID(*ref); ok {
			*ref = domain.LocalRef(id)
			return
		}
		if domain.IsVideoURL(*ref) || !domain.IsImageDataURL(*ref) {
			return
		}

		id := domain.NewImageID(slugify(owner), slot, now)
		if _, err := s.images.SaveDataURL(ctx, id, *ref); err != nil {
			firstErr = fmt.Errorf("failed to store %s image of %s: %w", slot, owner, err)
			return
		}
		saved = append(saved, id)
		*ref = domain.LocalRef(id)
	})
	return saved, firstErr
}

// discardImages deletes images stored for a write that was not saved. The
// profile image ID is shared with the stored about page and is kept.
func (s *ContentService) discardImages(ctx context.Context, ids []string) {
	for _, id := range ids {
		if id == domain.ProfileImageID {
			continue
		}
		if err := s.images.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			s.logger.Warn("failed to discard unused image", zap.String("imageId", id), zap.Error(err))
		}
	}
}

func visitProjects(projects *[]domain.Project, fn domain.ImageVisitor) {
	for i := range *projects {
		(*projects)[i].VisitImages(fn)
	}
}

func visitAbout(about *domain.AboutPage, fn domain.ImageVisitor) {
	about.VisitImages(fn)
}

func visitNone[T any](*T, domain.ImageVisitor) {}

func trackChanges(fn domain.ImageVisitor, changed *bool) domain.ImageVisitor {
	return func(owner, slot string, ref *string) {
		before := *ref
		fn(owner, slot, ref)
		if *ref != before {
			*changed = true
		}
	}
}

func normalizeAbout(about *domain.AboutPage) {
	if about.Content == nil {
		about.Content = []domain.ContentBlock{}
	}
	if about.Skills == nil {
		about.Skills = &domain.Skills{}
	}
	if about.Skills.Design == nil {
		about.Skills.Design = []string{}
	}
	if about.Skills.Tools == nil {
		about.Skills.Tools = []string{}
	}
	if about.Skills.Development == nil {
		about.Skills.Development = []string{}
	}
}

func validateProjects(projects []domain.Project) error {
	seen := make(map[string]bool, len(projects))
	for i := range projects {
		if err := validate.Struct(projects[i]); err != nil {
			return fmt.Errorf("%w: project %d: %v", ErrInvalidInput, i, err)
		}
		if seen[projects[i].ID] {
			return fmt.Errorf("%w: duplicate project id %s", ErrInvalidInput, projects[i].ID)
		}
		seen[projects[i].ID] = true
	}
	return nil
}

func indexOfProject(projects []domain.Project, id string) int {
	for i := range projects {
		if projects[i].ID == id {
			return i
		}
	}
	return -1
}

func uniqueProjectID(projects []domain.Project, base string) string {
	id := base
	for n := 2; indexOfProject(projects, id) >= 0; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	return id
}

// slugify lowercases s and joins its alphanumeric runs with dashes
func slugify(s string) string {
	slug := strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-"), "-")
	if len(slug) > 80 {
		slug = strings.TrimRight(slug[:80], "-")
	}
	if slug == "" {
		return "project"
	}
	return slug
}
