package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	cldconfig "github.com/cloudinary/cloudinary-go/v2/config"
	"github.com/folio-works/portfolio-api/internal/config"
	"go.uber.org/zap"
)

const cloudinaryTransform = "w_1200,q_auto,f_auto"

// CloudinaryHost uploads through the Cloudinary upload API. With an API secret
// uploads are signed; otherwise the unsigned upload preset is used.
type CloudinaryHost struct {
	cfg     *config.CloudinaryConfig
	cld     *cloudinary.Cloudinary
	signed  bool
	timeout time.Duration
	logger  *zap.Logger
}

func NewCloudinaryHost(cfg *config.CloudinaryConfig, logger *zap.Logger) (*CloudinaryHost, error) {
	if cfg.CloudName == "" {
		return nil, fmt.Errorf("cloudinary storage requires a cloud name")
	}
	signed := cfg.APIKey != "" && cfg.APISecret != ""
	if !signed && cfg.UploadPreset == "" {
		return nil, fmt.Errorf("cloudinary storage requires an api key and secret or an unsigned upload preset")
	}

	cldCfg, err := cldconfig.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config: %w", err)
	}
	if cfg.APIBaseURL != "" {
		cldCfg.API.UploadPrefix = strings.TrimRight(cfg.APIBaseURL, "/")
	}
	cld, err := cloudinary.NewFromConfiguration(*cldCfg)
	if err != nil {
		return nil, fmt.Errorf("cloudinary client: %w", err)
	}

	logger.Info("Cloudinary storage initialized",
		zap.String("cloudName", cfg.CloudName),
		zap.Bool("signed", signed),
		zap.String("folder", cfg.Folder),
	)
	return &CloudinaryHost{
		cfg:     cfg,
		cld:     cld,
		signed:  signed,
		timeout: uploadTimeout(cfg.TimeoutDuration()),
		logger:  logger,
	}, nil
}

func (h *CloudinaryHost) Name() string { return "cloudinary" }

func (h *CloudinaryHost) Upload(ctx context.Context, obj Object) (*Uploaded, error) {
	if _, err := objectName(obj); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	params := uploader.UploadParams{
		PublicID:     obj.Key,
		Folder:       h.cfg.Folder,
		ResourceType: "auto",
	}
	var (
		resp *uploader.UploadResult
		err  error
	)
	if h.signed {
		params.Overwrite = api.Bool(true)
		resp, err = h.cld.Upload.Upload(ctx, obj.Body, params)
	} else {
		// unsigned presets do not allow overwrite
		resp, err = h.cld.Upload.UnsignedUpload(ctx, obj.Body, h.cfg.UploadPreset, params)
	}
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload of %s: %w", obj.Key, uploadError(ctx, err))
	}
	if resp.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload of %s: %w: %s", obj.Key, ErrRejected, resp.Error.Message)
	}
	if resp.SecureURL == "" {
		return nil, fmt.Errorf("cloudinary upload of %s: response has no secure_url", obj.Key)
	}

	size := int64(resp.Bytes)
	uploaded := &Uploaded{Key: resp.PublicID, OriginalURL: resp.SecureURL, Size: size}
	if resp.ResourceType == "image" && isImage(obj.ContentType) {
		uploaded.ResizedURL = strings.Replace(resp.SecureURL, "/upload/", "/upload/"+cloudinaryTransform+"/", 1)
	}

	h.logger.Info("Image uploaded to Cloudinary",
		zap.String("publicId", resp.PublicID),
		zap.Int64("size", size),
	)
	return uploaded, nil
}
