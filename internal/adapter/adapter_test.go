package adapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/live-vibe/internal/circuitbreaker"
	apperrors "github.com/live-vibe/internal/errors"
)

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// fastRetry shortens backoff so retry paths run quickly in tests
func fastRetry(p *httpProvider) {
	p.retry.InitialDelay = time.Millisecond
	p.retry.MaxDelay = 2 * time.Millisecond
}

func TestErrorDetail(t *testing.T) {
	body := []byte(`{"errors":[{"code":"CARD_DECLINED","detail":"Card was declined"}]}`)
	assert.Equal(t, "Card was declined", errorDetail(body, squareErrorPaths...))
	assert.Equal(t, "CARD_DECLINED", errorDetail([]byte(`{"errors":[{"code":"CARD_DECLINED"}]}`), squareErrorPaths...))
	assert.Empty(t, errorDetail([]byte(`not json`), "message"))
	assert.Empty(t, errorDetail(nil, "message"))
}

func TestHTTPProvider_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	p := newHTTPProvider("test", srv.URL, time.Second, nil)
	fastRetry(p)

	body, err := p.do(testCtx(t), call{op: "ping", method: http.MethodGet, path: "/"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPProvider_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"bad input"}`))
	}))
	defer srv.Close()

	p := newHTTPProvider("test", srv.URL, time.Second, nil)
	fastRetry(p)

	_, err := p.do(testCtx(t), call{op: "ping", method: http.MethodGet, path: "/", detailPaths: []string{"message"}})
	require.Error(t, err)
	cat := apperrors.Categorize(err)
	assert.Equal(t, apperrors.CategoryProvider, cat.Category)
	assert.Equal(t, "bad input", cat.Message)
	assert.Equal(t, http.StatusBadRequest, cat.Details["status"])
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPProvider_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := newHTTPProvider("test", srv.URL, time.Second, nil)
	fastRetry(p)

	_, err := p.do(testCtx(t), call{op: "ping", method: http.MethodGet, path: "/"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeProviderRateLimit, apperrors.Categorize(err).Code)
}

func TestHTTPProvider_OpenCircuitFailsFast(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := newHTTPProvider("test", srv.URL, time.Second, nil)
	fastRetry(p)
	p.retry.MaxAttempts = 1

	for i := 0; i < 5; i++ {
		_, _ = p.do(testCtx(t), call{op: "ping", method: http.MethodGet, path: "/"})
	}
	require.Equal(t, circuitbreaker.StateOpen, p.Stats().State)

	before := atomic.LoadInt32(&calls)
	_, err := p.do(testCtx(t), call{op: "ping", method: http.MethodGet, path: "/"})
	require.Error(t, err)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.GetHTTPStatusCode(err))
	assert.Equal(t, before, atomic.LoadInt32(&calls))
}

func decodeBody(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}
