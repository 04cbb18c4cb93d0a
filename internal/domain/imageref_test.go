package domain_test

import (
	"testing"
	"time"

	"github.com/folio-works/portfolio-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRefID(t *testing.T) {
	tests := []struct {
		ref    string
		wantID string
		wantOK bool
	}{
		{"local:qatar-thumbnail-1", "qatar-thumbnail-1", true},
		{"indexeddb:about-profile-image", "about-profile-image", true},
		{"local:", "", false},
		{"https://cdn.example.com/a.png", "", false},
		{"data:image/png;base64,AAAA", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			id, ok := domain.LocalRefID(tt.ref)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestNeedsUpload(t *testing.T) {
	assert.True(t, domain.NeedsUpload("local:x"))
	assert.True(t, domain.NeedsUpload("indexeddb:x"))
	assert.True(t, domain.NeedsUpload("data:image/png;base64,AAAA"))
	assert.False(t, domain.NeedsUpload("https://ik.imagekit.io/demo/a.png"))
	assert.False(t, domain.NeedsUpload(""))
}

func TestIsVideoURL(t *testing.T) {
	assert.True(t, domain.IsVideoURL("https://cdn.example.com/reel.mp4"))
	assert.True(t, domain.IsVideoURL("https://cdn.example.com/reel.MOV?v=2"))
	assert.True(t, domain.IsVideoURL("data:video/webm;base64,AAAA"))
	assert.False(t, domain.IsVideoURL("https://cdn.example.com/still.png"))
	assert.False(t, domain.IsVideoURL("https://cdn.example.com/mp4"))
}

func TestParseDataURL(t *testing.T) {
	t.Run("valid png", func(t *testing.T) {
		contentType, data, err := domain.ParseDataURL("data:image/png;base64,aGVsbG8=")
		require.NoError(t, err)
		assert.Equal(t, "image/png", contentType)
		assert.Equal(t, []byte("hello"), data)
	})

	t.Run("media type parameters are dropped", func(t *testing.T) {
		contentType, _, err := domain.ParseDataURL("data:image/svg+xml;charset=utf-8;base64,aGVsbG8=")
		require.NoError(t, err)
		assert.Equal(t, "image/svg+xml", contentType)
	})

	invalid := map[string]string{
		"no prefix":     "image/png;base64,aGVsbG8=",
		"no separator":  "data:image/png;base64",
		"not base64":    "data:image/png,hello",
		"bad encoding":  "data:image/png;base64,!!!",
		"empty payload": "data:image/png;base64,",
	}
	for name, ref := range invalid {
		t.Run(name, func(t *testing.T) {
			_, _, err := domain.ParseDataURL(ref)
			assert.ErrorIs(t, err, domain.ErrInvalidDataURL)
		})
	}
}

func TestEncodeDataURLRoundTrip(t *testing.T) {
	ref := domain.EncodeDataURL("image/gif", []byte("GIF89a"))
	contentType, data, err := domain.ParseDataURL(ref)
	require.NoError(t, err)
	assert.Equal(t, "image/gif", contentType)
	assert.Equal(t, []byte("GIF89a"), data)
}

func TestNewImageID(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := domain.NewImageID("qatar", "thumbnail", now)
	assert.Regexp(t, `^qatar-thumbnail-1700000000123-[0-9a-f]{8}$`, id)
	assert.NotEqual(t, id, domain.NewImageID("qatar", "thumbnail", now))
	assert.Equal(t, domain.ProfileImageID, domain.NewImageID("about", "profile", now))
}

func TestGeneratedID_UniqueWithinMillisecond(t *testing.T) {
	now := time.UnixMilli(1709294400000)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := domain.GeneratedID("image", now)
		assert.Regexp(t, `^image-1709294400000-[0-9a-f]{8}$`, id)
		assert.False(t, seen[id], id)
		seen[id] = true
	}
}
