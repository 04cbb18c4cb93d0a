package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/folio-works/portfolio-api/internal/config"
	"go.uber.org/zap"
)

const immutableCacheControl = "public, max-age=31536000"

// AzureBlobStorage publishes images to an Azure Blob Storage container
type AzureBlobStorage struct {
	client        *azblob.Client
	containerName string
	publicURL     string
	logger        *zap.Logger
}

// NewAzureBlobStorage creates the client and makes sure the container exists
func NewAzureBlobStorage(cfg *config.AzureBlobConfig, logger *zap.Logger) (*AzureBlobStorage, error) {
	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	_, err = client.CreateContainer(context.Background(), cfg.Container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL, err = containerURL(client.URL(), cfg.Container)
		if err != nil {
			return nil, err
		}
	}

	logger.Info("Azure Blob Storage initialized",
		zap.String("container", cfg.Container),
		zap.String("publicURL", publicURL),
	)

	return &AzureBlobStorage{
		client:        client,
		containerName: cfg.Container,
		publicURL:     strings.TrimRight(publicURL, "/"),
		logger:        logger,
	}, nil
}

func (s *AzureBlobStorage) Name() string { return "azure" }

// Upload stores the object under its image name, overwriting an earlier version
func (s *AzureBlobStorage) Upload(ctx context.Context, obj Object) (*Uploaded, error) {
	blobName, err := objectName(obj)
	if err != nil {
		return nil, err
	}

	contentType := obj.ContentType
	cacheControl := immutableCacheControl
	uploadOptions := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType:  &contentType,
			BlobCacheControl: &cacheControl,
		},
	}

	reader := &countingReader{r: obj.Body}

	if _, err := s.client.UploadStream(ctx, s.containerName, blobName, reader, uploadOptions); err != nil {
		return nil, fmt.Errorf("failed to upload blob: %w", err)
	}

	s.logger.Info("Image uploaded to Azure Blob Storage",
		zap.String("blobName", blobName),
		zap.String("container", s.containerName),
		zap.String("contentType", contentType),
		zap.Int64("size", reader.count),
	)

	return &Uploaded{
		Key:         blobName,
		OriginalURL: s.publicURL + "/" + url.PathEscape(blobName),
		Size:        reader.count,
	}, nil
}

// containerURL strips any SAS query from the service URL and appends the container
func containerURL(serviceURL, container string) (string, error) {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return "", fmt.Errorf("invalid blob service URL: %w", err)
	}
	u.RawQuery = ""
	u.Path = strings.TrimRight(u.Path, "/") + "/" + container
	return u.String(), nil
}
