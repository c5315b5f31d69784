package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/live-vibe/internal/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pagination reads limit and offset, falling back to defaults for missing or
// malformed values and capping limit at maxPageSize.
func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// queryDate parses an optional YYYY-MM-DD query parameter
func queryDate(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, apperrors.NewInvalidParameterError(name, "expected YYYY-MM-DD")
	}
	return t, nil
}

// upload is a single file read from a multipart form
type upload struct {
	FileName    string
	ContentType string
	Data        []byte
	// Form carries the non-file fields
	Form map[string]string
}

// readUpload reads the "file" part of a multipart request, bounded by maxBytes
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.NewInvalidParameterError("file", "file is too large")
		}
		return nil, apperrors.NewInvalidParameterError("file", "expected multipart form data")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, apperrors.NewInvalidParameterError("file", "file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperrors.NewInvalidParameterError("file", "could not read file")
	}

	form := make(map[string]string, len(r.MultipartForm.Value))
	for k, v := range r.MultipartForm.Value {
		if len(v) > 0 {
			form[k] = v[0]
		}
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return &upload{FileName: header.Filename, ContentType: contentType, Data: data, Form: form}, nil
}
