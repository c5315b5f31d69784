// Package adapter wraps the external HTTP APIs the marketplace depends on:
// Square payments, Kling AI video generation and Supabase Storage.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/live-vibe/internal/circuitbreaker"
	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/metrics"
	"github.com/live-vibe/internal/ratelimit"
	"github.com/live-vibe/internal/retry"
)

// maxResponseBytes caps how much of a provider response is read
const maxResponseBytes = 8 << 20

// httpProvider is the plumbing shared by the JSON provider clients: a
// circuit breaker around every attempt and bounded retry of transient failures.
type httpProvider struct {
	name    string
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	retry   *retry.Config
}

func newHTTPProvider(name, baseURL string, timeout time.Duration, transport http.RoundTripper) *httpProvider {
	if transport == nil {
		transport = metrics.NewRequestWatcher(name, nil)
	}
	breakerCfg := circuitbreaker.DefaultConfig(name)
	breakerCfg.IsFailure = apperrors.IsRetryable

	retryCfg := retry.DefaultConfig()
	retryCfg.ShouldRetry = func(err error) bool {
		return !errors.Is(err, circuitbreaker.ErrCircuitOpen) && apperrors.IsRetryable(err)
	}

	return &httpProvider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout, Transport: transport},
		breaker: circuitbreaker.NewCircuitBreaker(breakerCfg),
		retry:   retryCfg,
	}
}

// call describes one provider request
type call struct {
	op          string // metrics label
	method      string
	path        string
	body        interface{} // JSON encoded when set
	raw         []byte      // sent as-is when body is nil
	contentType string
	header      http.Header
	// fallback is the error message used when the response carries no detail
	fallback string
	// detailPaths are gjson paths tried for an error message, in order
	detailPaths []string
	// once disables retry for requests that are not safe to repeat
	once bool
}

// do executes c and returns the body of a 2xx response
func (p *httpProvider) do(ctx context.Context, c call) ([]byte, error) {
	payload := c.raw
	contentType := c.contentType
	if c.body != nil {
		encoded, err := json.Marshal(c.body)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to encode provider request", err)
		}
		payload = encoded
		contentType = "application/json"
	}

	retryCfg := p.retry
	if c.once {
		single := *p.retry
		single.MaxAttempts = 1
		retryCfg = &single
	}

	var out []byte
	err := retry.Do(ctx, retryCfg, func(ctx context.Context, attempt int) error {
		err := p.breaker.Execute(ctx, func(ctx context.Context) error {
			body, err := p.send(ctx, c, payload, contentType)
			out = body
			return err
		})
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			unavailable := apperrors.NewProviderError(p.name, fmt.Sprintf("%s is temporarily unavailable", p.name), err)
			unavailable.StatusCode = http.StatusServiceUnavailable
			return unavailable
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *httpProvider) send(ctx context.Context, c call, payload []byte, contentType string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, c.method, p.baseURL+c.path, reader)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build provider request", err)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(metrics.OperationHeader, c.op)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, p.transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, p.transportError(ctx, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, p.statusError(resp.StatusCode, body, c)
	}
	return body, nil
}

func (p *httpProvider) transportError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ratelimit.ErrMaxWaitExceeded):
		return apperrors.NewProviderRateLimitError(p.name)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperrors.NewProviderTimeoutError(p.name)
	case errors.Is(err, context.Canceled):
		return err
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return apperrors.NewProviderTimeoutError(p.name)
	}
	return apperrors.NewProviderError(p.name, "", err)
}

func (p *httpProvider) statusError(status int, body []byte, c call) error {
	if status == http.StatusTooManyRequests {
		return apperrors.NewProviderRateLimitError(p.name)
	}

	detail := errorDetail(body, c.detailPaths...)
	if detail == "" {
		detail = c.fallback
	}
	perr := apperrors.NewProviderError(p.name, detail, nil)
	perr.Details["status"] = status
	if status >= http.StatusInternalServerError {
		perr.StatusCode = http.StatusServiceUnavailable
	}
	return perr
}

// errorDetail returns the first non-empty string found at paths in a JSON body
func errorDetail(body []byte, paths ...string) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	for _, path := range paths {
		if v := gjson.GetBytes(body, path); v.Exists() && strings.TrimSpace(v.String()) != "" {
			return v.String()
		}
	}
	return ""
}

// Stats exposes the provider's circuit breaker state for health endpoints
func (p *httpProvider) Stats() circuitbreaker.Stats {
	return p.breaker.Stats()
}
