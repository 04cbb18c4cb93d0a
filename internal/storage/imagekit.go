package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/folio-works/portfolio-api/internal/config"
	"github.com/folio-works/portfolio-api/internal/domain"
	"github.com/google/uuid"
	"github.com/imagekit-developer/imagekit-go"
	"github.com/imagekit-developer/imagekit-go/api/uploader"
	"go.uber.org/zap"
)

const (
	imageKitTransform = "tr:w-1200,q-85,f-auto"
	// imageKitAuthTTL is how long a client-side upload signature stays valid
	imageKitAuthTTL = time.Hour
)

const defaultUploadTimeout = 25 * time.Second

// ImageKitHost uploads through the ImageKit upload API
type ImageKitHost struct {
	cfg     *config.ImageKitConfig
	ik      *imagekit.ImageKit
	timeout time.Duration
	logger  *zap.Logger
}

// NewImageKitHost validates credentials and builds the host
func NewImageKitHost(cfg *config.ImageKitConfig, logger *zap.Logger) (*ImageKitHost, error) {
	if cfg.PrivateKey == "" || cfg.URLEndpoint == "" {
		return nil, fmt.Errorf("imagekit storage requires a private key and url endpoint")
	}

	ik := newImageKit(cfg)
	if cfg.UploadPrefix != "" {
		ik.Uploader.Config.API.UploadPrefix = strings.TrimRight(cfg.UploadPrefix, "/") + "/"
	}

	logger.Info("ImageKit storage initialized",
		zap.String("urlEndpoint", cfg.URLEndpoint),
		zap.String("folder", cfg.Folder),
	)
	return &ImageKitHost{
		cfg:     cfg,
		ik:      ik,
		timeout: uploadTimeout(cfg.TimeoutDuration()),
		logger:  logger,
	}, nil
}

func newImageKit(cfg *config.ImageKitConfig) *imagekit.ImageKit {
	return imagekit.NewFromParams(imagekit.NewParams{
		PrivateKey:  cfg.PrivateKey,
		PublicKey:   cfg.PublicKey,
		UrlEndpoint: cfg.URLEndpoint,
	})
}

func (h *ImageKitHost) Name() string { return "imagekit" }

// Upload sends the file with a stable name (useUniqueFileName=false) so
// re-uploading an image ID replaces it
func (h *ImageKitHost) Upload(ctx context.Context, obj Object) (*Uploaded, error) {
	name, err := objectName(obj)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	unique := false
	resp, err := h.ik.Uploader.Upload(ctx, obj.Body, uploader.UploadParam{
		FileName:          name,
		Folder:            h.cfg.Folder,
		UseUniqueFileName: &unique,
	})
	if err != nil {
		return nil, fmt.Errorf("imagekit upload of %s: %w", name, uploadError(ctx, err))
	}
	if resp.Data.Url == "" {
		return nil, fmt.Errorf("imagekit upload of %s: response has no url", name)
	}

	size := int64(resp.Data.Size)
	uploaded := &Uploaded{Key: resp.Data.FilePath, OriginalURL: resp.Data.Url, Size: size}
	if isImage(obj.ContentType) && resp.Data.FilePath != "" {
		uploaded.ResizedURL = strings.TrimRight(h.cfg.URLEndpoint, "/") + "/" + imageKitTransform + "/" + strings.TrimPrefix(resp.Data.FilePath, "/")
	}

	h.logger.Info("Image uploaded to ImageKit",
		zap.String("fileId", resp.Data.FileId),
		zap.String("filePath", resp.Data.FilePath),
		zap.Int64("size", size),
	)
	return uploaded, nil
}

// ImageKitSigner issues the token/expire/signature triple browsers need to
// upload to ImageKit directly
type ImageKitSigner struct {
	ik        *imagekit.ImageKit
	publicKey string
	now       func() time.Time
}

// NewImageKitSigner returns nil when no ImageKit credentials are configured
func NewImageKitSigner(cfg *config.ImageKitConfig) *ImageKitSigner {
	if cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil
	}
	return &ImageKitSigner{ik: newImageKit(cfg), publicKey: cfg.PublicKey, now: time.Now}
}

// Sign creates fresh authentication parameters
func (s *ImageKitSigner) Sign() domain.ImageKitAuthResponse {
	signed := s.ik.SignToken(imagekit.SignTokenParam{
		Token:   uuid.New().String(),
		Expires: s.now().Add(imageKitAuthTTL).Unix(),
	})
	return domain.ImageKitAuthResponse{
		Token:     signed.Token,
		Expire:    signed.Expires,
		Signature: signed.Signature,
		PublicKey: s.publicKey,
	}
}

// uploadError marks SDK failures that were answered by the host as rejected
func uploadError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrRejected, err)
}

func uploadTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultUploadTimeout
	}
	return d
}
