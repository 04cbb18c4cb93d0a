package domain

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// LocalRefPrefix marks an image whose bytes are held in the pending image store
	LocalRefPrefix = "local:"
	// LegacyRefPrefix is the reference format written by the browser-only editor
	LegacyRefPrefix = "indexeddb:"
	// ProfileImageID is the fixed image ID of the about page profile picture
	ProfileImageID = "about-profile-image"
)

var ErrInvalidDataURL = errors.New("invalid data URL")

var videoExtensions = map[string]bool{".mp4": true, ".webm": true, ".mov": true, ".avi": true}

// IsDataURL reports whether ref is an inline data: payload
func IsDataURL(ref string) bool {
	return strings.HasPrefix(ref, "data:")
}

// IsImageDataURL reports whether ref is an inline image payload
func IsImageDataURL(ref string) bool {
	return strings.HasPrefix(ref, "data:image/")
}

// LocalRef formats a pending image reference
func LocalRef(id string) string {
	return LocalRefPrefix + id
}

// LocalRefID extracts the image ID from a local:<id> or indexeddb:<id> reference
func LocalRefID(ref string) (string, bool) {
	for _, prefix := range []string{LocalRefPrefix, LegacyRefPrefix} {
		if id, ok := strings.CutPrefix(ref, prefix); ok && id != "" {
			return id, true
		}
	}
	return "", false
}

// IsLocalRef reports whether ref points into the pending image store
func IsLocalRef(ref string) bool {
	_, ok := LocalRefID(ref)
	return ok
}

// NeedsUpload reports whether ref must be resolved to a hosted URL before publishing
func NeedsUpload(ref string) bool {
	return IsLocalRef(ref) || IsDataURL(ref)
}

// IsVideoURL reports whether ref points at a video file
func IsVideoURL(ref string) bool {
	if strings.HasPrefix(ref, "data:video/") {
		return true
	}
	p := ref
	if u, err := url.Parse(ref); err == nil {
		p = u.Path
	}
	return videoExtensions[strings.ToLower(path.Ext(p))]
}

// ParseDataURL decodes a base64 data URL into its media type and payload
func ParseDataURL(ref string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURL)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload separator", ErrInvalidDataURL)
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = mediaType[:i]
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: empty payload", ErrInvalidDataURL)
	}
	return mediaType, data, nil
}

// EncodeDataURL builds a base64 data URL
func EncodeDataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// NewImageID builds the ID a pending image is stored under. The about page
// profile picture always reuses ProfileImageID.
func NewImageID(owner, slot string, now time.Time) string {
	if owner == "about" && slot == "profile" {
		return ProfileImageID
	}
	return GeneratedID(owner+"-"+slot, now)
}

// GeneratedID returns <prefix>-<unixmillis>-<random>. The random part keeps
// IDs generated within the same millisecond apart.
func GeneratedID(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), uuid.NewString()[:8])
}

// ExtensionFor maps an image content type onto a file extension
func ExtensionFor(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	case "image/avif":
		return ".avif"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	default:
		return ""
	}
}
