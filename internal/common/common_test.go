package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry(t *testing.T) {
	ctx := context.Background()
	errBoom := errors.New("boom")
	errFlaky := fmt.Errorf("connection reset: %w", ErrBackendUnavailable)

	t.Run("single attempt returns error unchanged", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, func() error {
			calls++
			return errBoom
		}, RetryOptions{MaxAttempts: 1})

		assert.Same(t, errBoom, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, func() error {
			calls++
			if calls < 3 {
				return errFlaky
			}
			return nil
		}, RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		err := WithRetry(ctx, func() error {
			return errFlaky
		}, RetryOptions{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond})

		require.ErrorIs(t, err, ErrMaxRetries)
		assert.ErrorIs(t, err, ErrBackendUnavailable)
	})

	t.Run("unclassified error is not retried", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, func() error {
			calls++
			return errBoom
		}, RetryOptions{MaxAttempts: 5, InitialDelay: time.Millisecond})

		assert.Same(t, errBoom, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("explicitly retryable error is retried", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, func() error {
			calls++
			if calls == 1 {
				return &RetryableError{Err: errBoom, Retryable: true}
			}
			return nil
		}, RetryOptions{MaxAttempts: 2, InitialDelay: time.Millisecond})

		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("non-retryable error stops immediately", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, func() error {
			calls++
			return &RetryableError{Err: errBoom, Retryable: false}
		}, RetryOptions{MaxAttempts: 5, InitialDelay: time.Millisecond})

		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, 1, calls)
	})
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrRateLimit))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(fmt.Errorf("groq: %w", ErrBackendUnavailable)))
	assert.False(t, IsRetryable(fmt.Errorf("no choices: %w", ErrEmptyResponse)))
	assert.True(t, IsRetryable(&RetryableError{Err: errors.New("x"), Retryable: true}))
	assert.False(t, IsRetryable(errors.New("x")))
}

func TestUserError(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewUserError("could not reach the model backend", inner)

	assert.Equal(t, "could not reach the model backend: connection refused", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "just a message", NewUserError("just a message", nil).Error())
}

func TestSetupLogger(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	require.NoError(t, setupLogger(&buf, "debug", "json"))
	slog.Debug("hello", "backend", "openai/gpt-4")
	assert.Contains(t, buf.String(), `"backend":"openai/gpt-4"`)

	require.ErrorIs(t, setupLogger(&buf, "verbose", "json"), ErrInvalidConfig)
	require.ErrorIs(t, setupLogger(&buf, "info", "xml"), ErrInvalidConfig)
}
