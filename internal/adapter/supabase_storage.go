package adapter

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/live-vibe/internal/circuitbreaker"
	"github.com/live-vibe/internal/config"
	apperrors "github.com/live-vibe/internal/errors"
)

const storageProvider = "supabase"

var storageErrorPaths = []string{"message", "error", "error_description"}

// StorageClient stores user files in Supabase Storage buckets using the
// service role key.
type StorageClient struct {
	p          *httpProvider
	baseURL    string
	serviceKey string
}

// NewStorageClient creates a Supabase Storage client
func NewStorageClient(cfg *config.SupabaseConfig) *StorageClient {
	return newStorageClient(cfg, nil)
}

func newStorageClient(cfg *config.SupabaseConfig, transport http.RoundTripper) *StorageClient {
	base := strings.TrimRight(cfg.URL, "/")
	return &StorageClient{
		p:          newHTTPProvider(storageProvider, base, 60*time.Second, transport),
		baseURL:    base,
		serviceKey: cfg.ServiceKey,
	}
}

// Upload stores data at bucket/path, replacing any existing object, and
// returns its public URL.
func (c *StorageClient) Upload(ctx context.Context, bucket, path, contentType string, data []byte) (string, error) {
	if bucket == "" || path == "" {
		return "", apperrors.NewInvalidParameterError("path", "bucket and object path are required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := c.headers()
	h.Set("x-upsert", "true")
	_, err := c.p.do(ctx, call{
		op:          "upload",
		method:      http.MethodPost,
		path:        "/storage/v1/object/" + bucket + "/" + escapePath(path),
		raw:         data,
		contentType: contentType,
		header:      h,
		fallback:    "File upload failed",
		detailPaths: storageErrorPaths,
	})
	if err != nil {
		return "", err
	}
	return c.PublicURL(bucket, path), nil
}

// Delete removes the object at bucket/path. Missing objects are not an error.
func (c *StorageClient) Delete(ctx context.Context, bucket, path string) error {
	if bucket == "" || path == "" {
		return apperrors.NewInvalidParameterError("path", "bucket and object path are required")
	}
	_, err := c.p.do(ctx, call{
		op:          "delete",
		method:      http.MethodDelete,
		path:        "/storage/v1/object/" + bucket,
		header:      c.headers(),
		body:        map[string][]string{"prefixes": {path}},
		fallback:    "File delete failed",
		detailPaths: storageErrorPaths,
	})
	return err
}

// PublicURL returns the URL of an object in a public bucket
func (c *StorageClient) PublicURL(bucket, path string) string {
	return c.baseURL + "/storage/v1/object/public/" + bucket + "/" + escapePath(path)
}

// Stats exposes the client's circuit breaker
func (c *StorageClient) Stats() circuitbreaker.Stats {
	return c.p.Stats()
}

func (c *StorageClient) headers() http.Header {
	h := http.Header{}
	h.Set("apikey", c.serviceKey)
	h.Set("Authorization", "Bearer "+c.serviceKey)
	return h
}

// escapePath escapes each segment of an object path, keeping the separators
func escapePath(path string) string {
	segments := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
