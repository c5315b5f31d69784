package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/live-vibe/internal/errors"
)

func fastConfig() *Config {
	return &Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
		ShouldRetry:  func(error) bool { return true },
	}
}

func TestWithExponentialBackoff_SucceedsAfterRetry(t *testing.T) {
	calls := 0
	result := WithExponentialBackoff(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("transient")
		}
		return nil
	})

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 3, calls)
	assert.NoError(t, result.LastError)
}

func TestWithExponentialBackoff_StopsOnNonRetryable(t *testing.T) {
	cfg := fastConfig()
	cfg.ShouldRetry = nil // falls back to apperrors.IsRetryable

	calls := 0
	result := WithExponentialBackoff(context.Background(), cfg, func(ctx context.Context, attempt int) error {
		calls++
		return apperrors.NewValidationError("amount", "bad amount")
	})

	assert.False(t, result.Success)
	assert.Equal(t, 1, calls)
}

func TestWithExponentialBackoff_RetriesProviderTimeouts(t *testing.T) {
	cfg := fastConfig()
	cfg.ShouldRetry = nil

	calls := 0
	err := Do(context.Background(), cfg, func(ctx context.Context, attempt int) error {
		calls++
		return apperrors.NewProviderTimeoutError("kling")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, apperrors.CodeProviderTimeout, apperrors.Categorize(err).Code)
}

func TestWithExponentialBackoff_ContextCancelled(t *testing.T) {
	cfg := fastConfig()
	cfg.InitialDelay = time.Second
	cfg.MaxDelay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	result := WithExponentialBackoff(ctx, cfg, func(ctx context.Context, attempt int) error {
		cancel()
		return errors.New("fail")
	})

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.LastError, context.Canceled)
	assert.Equal(t, 1, result.Attempts)
}

func TestDelay(t *testing.T) {
	cfg := &Config{InitialDelay: 500 * time.Millisecond, MaxDelay: 2 * time.Second, Multiplier: 2}
	assert.Equal(t, 500*time.Millisecond, Delay(cfg, 1))
	assert.Equal(t, time.Second, Delay(cfg, 2))
	assert.Equal(t, 2*time.Second, Delay(cfg, 3))
	assert.Equal(t, 2*time.Second, Delay(cfg, 8))
}

func TestDo_SingleAttemptReturnsErrorUnwrapped(t *testing.T) {
	want := apperrors.NewProviderError("square", "Card declined", nil)
	err := Do(context.Background(), DefaultConfig(), func(ctx context.Context, attempt int) error {
		return want
	})
	assert.Same(t, want, err)
}
