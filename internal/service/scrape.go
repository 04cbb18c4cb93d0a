package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/folio-works/portfolio-api/internal/domain"
	"github.com/folio-works/portfolio-api/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

var nonKeyChars = regexp.MustCompile(`[^A-Za-z0-9]+`)

// ScrapeImages loads the page of every deployed project and copies the images
// it shows into the image store. A copied image is marked as uploaded at its
// source URL so it never counts as pending.
func (s *SyncService) ScrapeImages(ctx context.Context) (*domain.ScrapeResult, error) {
	base, err := s.siteURL("/")
	if err != nil {
		return nil, err
	}
	data, err := s.FetchDeployed(ctx)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(zap.String("site", base.Host))
	result := &domain.ScrapeResult{Stored: []string{}, Existing: []string{}, Failed: []string{}}

	for _, project := range data.Projects {
		pagePath := "/work/" + url.PathEscape(project.ID)
		page, err := s.fetchFromSite(ctx, pagePath)
		if err != nil {
			log.Warn("failed to load project page", zap.String("path", pagePath), zap.Error(err))
			result.Failed = append(result.Failed, pagePath)
			continue
		}
		result.Pages++

		sources, err := imageSources(page.Body)
		if err != nil {
			log.Warn("failed to parse project page", zap.String("path", pagePath), zap.Error(err))
			result.Failed = append(result.Failed, pagePath)
			continue
		}
		for _, src := range sources {
			source, ok := resolveSource(base, src)
			if !ok {
				continue
			}
			id := scrapedImageID(project.ID, source)
			stored, err := s.storeScraped(ctx, id, source)
			switch {
			case err != nil:
				log.Warn("failed to copy deployed image",
					zap.String("imageId", id),
					zap.String("url", source.String()),
					zap.Error(err),
				)
				result.Failed = append(result.Failed, source.String())
			case stored:
				result.Stored = append(result.Stored, id)
			default:
				result.Existing = append(result.Existing, id)
			}
		}
	}

	log.Info("deployed images scraped",
		zap.Int("pages", result.Pages),
		zap.Int("stored", len(result.Stored)),
		zap.Int("existing", len(result.Existing)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (s *SyncService) storeScraped(ctx context.Context, id string, source *url.URL) (bool, error) {
	if !storage.ValidKey(id) {
		return false, fmt.Errorf("%w: cannot derive an image id from %s", ErrInvalidInput, source)
	}
	_, err := s.images.Get(ctx, id)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	content, err := s.fetch(ctx, source)
	if err != nil {
		return false, err
	}
	if _, err := s.images.Save(ctx, id, content.ContentType, content.Body); err != nil {
		return false, err
	}
	if err := s.images.MarkUploaded(ctx, id, source.String()); err != nil {
		return false, err
	}
	return true, nil
}

// imageSources returns the distinct img src values of an HTML page, leaving
// out inline data and icons
func imageSources(page []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var sources []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "img" {
			src := strings.TrimSpace(attr(n, "src"))
			lower := strings.ToLower(src)
			if src != "" && !seen[src] && !domain.IsDataURL(src) &&
				!strings.Contains(lower, "icon") && !strings.Contains(lower, "logo") {
				seen[src] = true
				sources = append(sources, src)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sources, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// resolveSource makes src absolute against the site; only http(s) sources are kept
func resolveSource(base *url.URL, src string) (*url.URL, bool) {
	ref, err := url.Parse(src)
	if err != nil {
		return nil, false
	}
	abs := base.ResolveReference(ref)
	if (abs.Scheme != "http" && abs.Scheme != "https") || abs.Host == "" {
		return nil, false
	}
	abs.Fragment = ""
	return abs, true
}

// scrapedImageID is <projectId>-scraped-<file name with non-alphanumerics as dashes>
func scrapedImageID(projectID string, source *url.URL) string {
	name := strings.Trim(nonKeyChars.ReplaceAllString(path.Base(source.Path), "-"), "-")
	return projectID + "-scraped-" + name
}
