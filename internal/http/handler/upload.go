package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// multipartOverhead leaves room for form boundaries and small fields next to the file
const multipartOverhead = 64 << 10

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// readMultipartFile reads the "file" part of a multipart request. The file
// may be at most maxBytes; idField names an optional form field with the image ID.
func readMultipartFile(w http.ResponseWriter, r *http.Request, maxBytes int64, idField string) (data []byte, contentType, id string, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	if err := r.ParseMultipartForm(maxBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large: maximum size is %dMB", maxBytes>>20))
			return nil, "", "", false
		}
		respondWithError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return nil, "", "", false
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid file upload: file field is required")
		return nil, "", "", false
	}
	defer file.Close()

	if header.Size > maxBytes {
		respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large: maximum size is %dMB", maxBytes>>20))
		return nil, "", "", false
	}
	data, err = io.ReadAll(file)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return nil, "", "", false
	}

	return data, header.Header.Get("Content-Type"), strings.TrimSpace(r.FormValue(idField)), true
}

// dataURLBodyLimit is the JSON body size that fits a base64 data URL of maxBytes
func dataURLBodyLimit(maxBytes int64) int64 {
	return maxBytes/3*4 + multipartOverhead
}
