package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStorage keeps images on disk and publishes them under {publicBaseURL}/media/
type LocalStorage struct {
	basePath      string
	publicBaseURL string
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(basePath, publicBaseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath:      basePath,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

func (s *LocalStorage) Name() string { return "local" }

// Upload writes the object to a sharded path ({ab}/{cd}/{name}), replacing any previous version
func (s *LocalStorage) Upload(ctx context.Context, obj Object) (*Uploaded, error) {
	name, err := objectName(obj)
	if err != nil {
		return nil, err
	}
	storagePath := shardedPath(name)
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(storagePath))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// write to a temp file first so readers never see a partial image
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	size, err := io.Copy(tmp, obj.Body)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}

	return &Uploaded{
		Key:         storagePath,
		OriginalURL: s.publicBaseURL + "/media/" + storagePath,
		Size:        size,
	}, nil
}

// Download opens a previously uploaded object
func (s *LocalStorage) Download(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(storagePath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, storagePath)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// resolve maps a storage path onto the filesystem, refusing paths outside basePath
func (s *LocalStorage) resolve(storagePath string) (string, error) {
	clean := path.Clean("/" + storagePath)
	if clean == "/" || strings.Contains(storagePath, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, storagePath)
	}
	return filepath.Join(s.basePath, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

func shardedPath(name string) string {
	shard := strings.ToLower(strings.NewReplacer("-", "", "_", "", ".", "").Replace(name))
	for len(shard) < 4 {
		shard += "0"
	}
	return path.Join(shard[:2], shard[2:4], name)
}
