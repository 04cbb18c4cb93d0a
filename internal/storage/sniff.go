package storage

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DetectContentType prefers the sniffed media type of data when it is an image
// or video, falling back to the declared type
func DetectContentType(data []byte, declared string) string {
	detected := mimetype.Detect(data).String()
	if i := strings.Index(detected, ";"); i >= 0 {
		detected = detected[:i]
	}
	if IsMedia(detected) {
		return detected
	}
	if declared == "" {
		return detected
	}
	return declared
}

// IsMedia reports whether the content type is an image or a video
func IsMedia(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") || strings.HasPrefix(contentType, "video/")
}
