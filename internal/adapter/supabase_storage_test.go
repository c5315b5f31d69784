package adapter

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/live-vibe/internal/config"
	apperrors "github.com/live-vibe/internal/errors"
)

func newTestStorage(t *testing.T, handler http.HandlerFunc) (*StorageClient, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := newStorageClient(&config.SupabaseConfig{URL: srv.URL + "/", ServiceKey: "service-key"}, nil)
	fastRetry(c.p)
	return c, srv.URL
}

func TestStorageClient_Upload(t *testing.T) {
	c, base := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/storage/v1/object/profile-photos/u1/avatar 1.png", r.URL.Path)
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		assert.Equal(t, "true", r.Header.Get("x-upsert"))

		raw, _ := io.ReadAll(r.Body)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, raw)
		w.Write([]byte(`{"Key":"profile-photos/u1/avatar 1.png"}`))
	})

	publicURL, err := c.Upload(testCtx(t), "profile-photos", "u1/avatar 1.png", "image/png", []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	assert.Equal(t, base+"/storage/v1/object/public/profile-photos/u1/avatar%201.png", publicURL)
}

func TestStorageClient_UploadError(t *testing.T) {
	c, _ := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"statusCode":"413","error":"Payload too large","message":"The object exceeded the maximum allowed size"}`))
	})

	_, err := c.Upload(testCtx(t), "art-pieces", "u1/a.png", "image/png", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, "The object exceeded the maximum allowed size", apperrors.Categorize(err).Message)
}

func TestStorageClient_Delete(t *testing.T) {
	c, _ := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/storage/v1/object/art-pieces", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, []interface{}{"u1/a.png"}, body["prefixes"])
		w.Write([]byte(`[]`))
	})

	require.NoError(t, c.Delete(testCtx(t), "art-pieces", "u1/a.png"))
	assert.Error(t, c.Delete(testCtx(t), "art-pieces", ""))
}

func TestEscapePath(t *testing.T) {
	assert.Equal(t, "u1/my%20song.mp3", escapePath("/u1/my song.mp3"))
}
