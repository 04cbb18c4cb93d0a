package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/folio-works/portfolio-api/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const r2ResizeOptions = "width=1200,quality=85,format=auto"

// R2Storage publishes images to a Cloudflare R2 bucket through its S3-compatible API
type R2Storage struct {
	client       *minio.Client
	bucket       string
	publicDomain string
	imagesDomain string
	logger       *zap.Logger
}

// NewR2Storage creates an S3 client for {accountId}.r2.cloudflarestorage.com
func NewR2Storage(cfg *config.R2Config, logger *zap.Logger) (*R2Storage, error) {
	if cfg.Bucket == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("r2 storage requires bucket, access key id and secret access key")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.AccountID == "" {
			return nil, fmt.Errorf("r2 storage requires an account id or an explicit endpoint")
		}
		endpoint = cfg.AccountID + ".r2.cloudflarestorage.com"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure:       cfg.UseSSL,
		Region:       "auto",
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create r2 client: %w", err)
	}

	publicDomain := cfg.PublicDomain
	if publicDomain == "" {
		if cfg.AccountID == "" {
			return nil, fmt.Errorf("r2 storage requires a public domain or an account id")
		}
		publicDomain = "pub-" + cfg.AccountID + ".r2.dev"
	}

	logger.Info("Cloudflare R2 storage initialized",
		zap.String("endpoint", endpoint),
		zap.String("bucket", cfg.Bucket),
		zap.String("publicDomain", publicDomain),
		zap.Bool("resizing", cfg.ImagesDomain != ""),
	)

	return &R2Storage{
		client:       client,
		bucket:       cfg.Bucket,
		publicDomain: strings.TrimRight(publicDomain, "/"),
		imagesDomain: strings.TrimRight(cfg.ImagesDomain, "/"),
		logger:       logger,
	}, nil
}

func (s *R2Storage) Name() string { return "r2" }

// Upload PUTs the object and returns its public URL, plus a Cloudflare image
// resizing URL when an images domain is configured
func (s *R2Storage) Upload(ctx context.Context, obj Object) (*Uploaded, error) {
	name, err := objectName(obj)
	if err != nil {
		return nil, err
	}

	info, err := s.client.PutObject(ctx, s.bucket, name, obj.Body, obj.Size, minio.PutObjectOptions{
		ContentType:  obj.ContentType,
		CacheControl: immutableCacheControl,
	})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.StatusCode == 401 || resp.StatusCode == 403 {
			return nil, fmt.Errorf("%w: r2 %s: %s", ErrRejected, resp.Code, resp.Message)
		}
		return nil, fmt.Errorf("failed to upload to r2: %w", err)
	}

	uploaded := &Uploaded{
		Key:         name,
		OriginalURL: publicURL(s.publicDomain, name),
		Size:        info.Size,
	}
	if s.imagesDomain != "" && isImage(obj.ContentType) {
		uploaded.ResizedURL = withScheme(s.imagesDomain) + "/cdn-cgi/image/" + r2ResizeOptions + "/" + uploaded.OriginalURL
	}

	s.logger.Info("Image uploaded to R2",
		zap.String("object", name),
		zap.String("bucket", s.bucket),
		zap.Int64("size", info.Size),
	)

	return uploaded, nil
}

func publicURL(domain, name string) string {
	return withScheme(domain) + "/" + url.PathEscape(name)
}

func withScheme(domain string) string {
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}
