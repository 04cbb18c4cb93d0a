package storage_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/folio-works/portfolio-api/internal/config"
	"github.com/folio-works/portfolio-api/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func pngObject(key string) storage.Object {
	return storage.Object{Key: key, ContentType: "image/png", Size: int64(len(pngBytes)), Body: bytes.NewReader(pngBytes)}
}

// ============================================================================
// Local
// ============================================================================

func TestLocalStorage_UploadAndDownload(t *testing.T) {
	s, err := storage.NewLocalStorage(t.TempDir(), "http://localhost:8080/")
	require.NoError(t, err)
	assert.Equal(t, "local", s.Name())

	uploaded, err := s.Upload(context.Background(), pngObject("qatar-thumbnail-1700000000000"))
	require.NoError(t, err)
	assert.Equal(t, "qa/ta/qatar-thumbnail-1700000000000.png", uploaded.Key)
	assert.Equal(t, "http://localhost:8080/media/qa/ta/qatar-thumbnail-1700000000000.png", uploaded.URL())
	assert.Equal(t, int64(len(pngBytes)), uploaded.Size)

	rc, err := s.Download(context.Background(), uploaded.Key)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, got)
}

func TestLocalStorage_RejectsBadKeys(t *testing.T) {
	s, err := storage.NewLocalStorage(t.TempDir(), "http://localhost")
	require.NoError(t, err)

	for _, key := range []string{"../etc/passwd", "a/b", "", ".hidden"} {
		_, err := s.Upload(context.Background(), pngObject(key))
		assert.ErrorIs(t, err, storage.ErrInvalidKey, key)
	}

	_, err = s.Download(context.Background(), "../../secret")
	assert.ErrorIs(t, err, storage.ErrInvalidKey)

	_, err = s.Download(context.Background(), "ab/cd/missing.png")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// ============================================================================
// ImageKit
// ============================================================================

func TestImageKitHost_Upload(t *testing.T) {
	var gotFields url.Values
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "private_key", user)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotFields = url.Values(r.MultipartForm.Value)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"fileId":   "f1",
			"name":     "qatar-image-1.png",
			"url":      "https://ik.imagekit.io/demo/portfolio/qatar-image-1.png",
			"filePath": "/portfolio/qatar-image-1.png",
			"size":     len(pngBytes),
		})
	}))
	defer srv.Close()

	host, err := storage.NewImageKitHost(&config.ImageKitConfig{
		PrivateKey:   "private_key",
		PublicKey:    "public_key",
		URLEndpoint:  "https://ik.imagekit.io/demo/",
		Folder:       "/portfolio",
		UploadPrefix: srv.URL,
		Timeout:      5,
	}, zap.NewNop())
	require.NoError(t, err)

	uploaded, err := host.Upload(context.Background(), pngObject("qatar-image-1"))
	require.NoError(t, err)

	assert.Equal(t, "/files/upload", gotPath)
	assert.Equal(t, "qatar-image-1.png", gotFields.Get("fileName"))
	assert.Equal(t, "/portfolio", gotFields.Get("folder"))
	assert.Equal(t, "false", gotFields.Get("useUniqueFileName"))
	assert.Equal(t, "https://ik.imagekit.io/demo/portfolio/qatar-image-1.png", uploaded.OriginalURL)
	assert.Equal(t, "https://ik.imagekit.io/demo/tr:w-1200,q-85,f-auto/portfolio/qatar-image-1.png", uploaded.ResizedURL)
	assert.Equal(t, uploaded.ResizedURL, uploaded.URL())
	assert.Equal(t, int64(len(pngBytes)), uploaded.Size)
}

func TestImageKitHost_UploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Your account cannot be authenticated."}`))
	}))
	defer srv.Close()

	host, err := storage.NewImageKitHost(&config.ImageKitConfig{
		PrivateKey:   "k",
		PublicKey:    "p",
		URLEndpoint:  "https://ik",
		UploadPrefix: srv.URL,
	}, zap.NewNop())
	require.NoError(t, err)

	_, err = host.Upload(context.Background(), pngObject("x"))
	require.ErrorIs(t, err, storage.ErrRejected)
}

func TestImageKitHost_RequiresCredentials(t *testing.T) {
	_, err := storage.NewImageKitHost(&config.ImageKitConfig{}, zap.NewNop())
	assert.Error(t, err)
}

func TestImageKitSigner(t *testing.T) {
	assert.Nil(t, storage.NewImageKitSigner(&config.ImageKitConfig{PrivateKey: "only-private"}))

	signer := storage.NewImageKitSigner(&config.ImageKitConfig{PublicKey: "public_key", PrivateKey: "private_key"})
	require.NotNil(t, signer)

	a := signer.Sign()
	b := signer.Sign()
	assert.Equal(t, "public_key", a.PublicKey)
	assert.Len(t, a.Signature, 40)
	assert.NotEqual(t, a.Token, b.Token)
}

// ============================================================================
// Cloudinary
// ============================================================================

func TestCloudinaryHost_UnsignedPreset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/demo/auto/upload"), r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "portfolio_images", r.FormValue("upload_preset"))
		assert.Equal(t, "portfolio", r.FormValue("folder"))
		assert.Equal(t, "about-profile-image", r.FormValue("public_id"))
		assert.Empty(t, r.FormValue("signature"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"public_id":"portfolio/about-profile-image","secure_url":"https://res.cloudinary.com/demo/image/upload/v1/portfolio/about-profile-image.png","bytes":29,"resource_type":"image"}`))
	}))
	defer srv.Close()

	host, err := storage.NewCloudinaryHost(&config.CloudinaryConfig{
		CloudName:    "demo",
		UploadPreset: "portfolio_images",
		Folder:       "portfolio",
		APIBaseURL:   srv.URL,
	}, zap.NewNop())
	require.NoError(t, err)

	uploaded, err := host.Upload(context.Background(), pngObject("about-profile-image"))
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/w_1200,q_auto,f_auto/v1/portfolio/about-profile-image.png", uploaded.URL())
	assert.Equal(t, int64(29), uploaded.Size)
}

func TestCloudinaryHost_SignedUploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "key", r.FormValue("api_key"))
		assert.NotEmpty(t, r.FormValue("timestamp"))
		assert.Len(t, r.FormValue("signature"), 40)
		assert.Equal(t, "true", r.FormValue("overwrite"))
		assert.Empty(t, r.FormValue("upload_preset"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid Signature"}}`))
	}))
	defer srv.Close()

	host, err := storage.NewCloudinaryHost(&config.CloudinaryConfig{CloudName: "demo", APIKey: "key", APISecret: "secret", APIBaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	_, err = host.Upload(context.Background(), pngObject("p-1"))
	require.ErrorIs(t, err, storage.ErrRejected)
	assert.Contains(t, err.Error(), "Invalid Signature")
}

func TestCloudinaryHost_RequiresCredentials(t *testing.T) {
	_, err := storage.NewCloudinaryHost(&config.CloudinaryConfig{}, zap.NewNop())
	assert.Error(t, err)

	_, err = storage.NewCloudinaryHost(&config.CloudinaryConfig{CloudName: "demo"}, zap.NewNop())
	assert.Error(t, err)
}

// ============================================================================
// R2
// ============================================================================

func TestR2Storage_Upload(t *testing.T) {
	var gotPath, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		assert.Equal(t, http.MethodPut, r.Method)
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "AWS4-HMAC-SHA256"))
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host, err := storage.NewR2Storage(&config.R2Config{
		AccountID:       "acct",
		AccessKeyID:     "access",
		SecretAccessKey: "secret",
		Bucket:          "portfolio",
		Endpoint:        strings.TrimPrefix(srv.URL, "http://"),
		UseSSL:          false,
		ImagesDomain:    "images.example.com",
	}, zap.NewNop())
	require.NoError(t, err)

	uploaded, err := host.Upload(context.Background(), pngObject("home-image-5"))
	require.NoError(t, err)

	assert.Equal(t, "/portfolio/home-image-5.png", gotPath)
	assert.Equal(t, "image/png", gotContentType)
	assert.Equal(t, "https://pub-acct.r2.dev/home-image-5.png", uploaded.OriginalURL)
	assert.Equal(t, "https://images.example.com/cdn-cgi/image/width=1200,quality=85,format=auto/https://pub-acct.r2.dev/home-image-5.png", uploaded.ResizedURL)
}

func TestR2Storage_RequiresCredentials(t *testing.T) {
	_, err := storage.NewR2Storage(&config.R2Config{Bucket: "b"}, zap.NewNop())
	assert.Error(t, err)
}

// ============================================================================
// Factory and sniffing
// ============================================================================

func TestNewHost(t *testing.T) {
	host, err := storage.NewHost(&config.StorageConfig{Mode: "local", LocalBasePath: t.TempDir()}, "http://localhost", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "local", host.Name())

	_, err = storage.NewHost(&config.StorageConfig{Mode: "netlify"}, "", zap.NewNop())
	assert.Error(t, err)

	_, err = storage.NewHost(&config.StorageConfig{Mode: "azure"}, "", zap.NewNop())
	assert.Error(t, err)
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "image/png", storage.DetectContentType(pngBytes, ""))
	assert.Equal(t, "image/png", storage.DetectContentType(pngBytes, "application/octet-stream"))
	assert.Equal(t, "image/jpeg", storage.DetectContentType([]byte("not really an image"), "image/jpeg"))
	assert.True(t, storage.IsMedia("video/mp4"))
	assert.False(t, storage.IsMedia("text/html"))
}
