package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/folio-works/portfolio-api/internal/config"
	"github.com/folio-works/portfolio-api/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid object key")
	// ErrRejected is returned when a blob host refuses an upload (bad credentials, quota, type)
	ErrRejected = errors.New("upload rejected by blob host")
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,199}$`)

// Object is an image or video handed to a blob host
type Object struct {
	// Key is the image ID; the host appends an extension derived from ContentType
	Key         string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Uploaded describes where a blob host published an object
type Uploaded struct {
	Key         string
	OriginalURL string
	// ResizedURL is a transformed (width-limited, recompressed) variant when the host offers one
	ResizedURL string
	Size       int64
}

// URL returns the URL the site should reference, preferring the resized variant
func (u *Uploaded) URL() string {
	if u.ResizedURL != "" {
		return u.ResizedURL
	}
	return u.OriginalURL
}

// Host publishes images at a public URL
type Host interface {
	Name() string
	Upload(ctx context.Context, obj Object) (*Uploaded, error)
}

// Downloader is implemented by hosts whose objects are served by this API
type Downloader interface {
	Download(ctx context.Context, storagePath string) (io.ReadCloser, error)
}

// NewHost creates the blob host selected by cfg.Mode
func NewHost(cfg *config.StorageConfig, publicBaseURL string, logger *zap.Logger) (Host, error) {
	switch cfg.Mode {
	case "local":
		return NewLocalStorage(cfg.LocalBasePath, publicBaseURL)
	case "azure", "cloud":
		if cfg.Azure.ConnectionString == "" {
			return nil, fmt.Errorf("connection string required for azure storage")
		}
		return NewAzureBlobStorage(&cfg.Azure, logger)
	case "r2":
		return NewR2Storage(&cfg.R2, logger)
	case "imagekit":
		return NewImageKitHost(&cfg.ImageKit, logger)
	case "cloudinary":
		return NewCloudinaryHost(&cfg.Cloudinary, logger)
	default:
		return nil, fmt.Errorf("unsupported storage mode: %s", cfg.Mode)
	}
}

// ValidKey reports whether key can be used as an object key on every host
func ValidKey(key string) bool {
	return validKey.MatchString(key) && !strings.Contains(key, "..")
}

// objectName validates the key and appends the extension of the content type
func objectName(obj Object) (string, error) {
	if !ValidKey(obj.Key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, obj.Key)
	}
	ext := domain.ExtensionFor(obj.ContentType)
	if ext == "" || strings.HasSuffix(strings.ToLower(obj.Key), ext) {
		return obj.Key, nil
	}
	return obj.Key + ext, nil
}

// isImage reports whether resize transforms apply to the content type
func isImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") && contentType != "image/svg+xml" && contentType != "image/gif"
}

// countingReader wraps an io.Reader and counts the number of bytes read
type countingReader struct {
	r     io.Reader
	count int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.count += int64(n)
	return n, err
}
