package retry

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryConfig_WithRetries(t *testing.T) {
	ctx := context.Background()
	{
		// 0 max attempts - still runs
		retryCfg := NewRetryConfig(NewRetryConfigArgs{})
		calls := 0
		err := retryCfg.WithRetries(ctx, func(attempt int, _ error) error {
			calls++
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	}
	{
		// 1 max attempts - fails
		calls := 0
		retryCfg := NewRetryConfig(NewRetryConfigArgs{MaxAttempts: 1})
		err := retryCfg.WithRetries(ctx, func(attempt int, _ error) error {
			calls++
			return fmt.Errorf("table bronze.orders does not exist")
		})
		assert.ErrorContains(t, err, "table bronze.orders does not exist")
		assert.Equal(t, 1, calls)
	}
	{
		// 2 max attempts - first fails and second succeeds, the previous error is passed along
		calls := 0
		retryCfg := NewRetryConfig(NewRetryConfigArgs{MaxAttempts: 2})
		err := retryCfg.WithRetries(ctx, func(attempt int, prevErr error) error {
			calls++
			if attempt == 0 {
				assert.NoError(t, prevErr)
				return fmt.Errorf("table bronze.orders does not exist")
			}
			assert.ErrorContains(t, prevErr, "table bronze.orders does not exist")
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	}
}

func TestWithRetries(t *testing.T) {
	ctx := context.Background()
	{
		// 2 max attempts - first fails and second succeeds
		calls := 0
		retryCfg := NewRetryConfig(NewRetryConfigArgs{MaxAttempts: 2, JitterBaseMs: 1, JitterMaxMs: 2})
		value, err := WithRetries(ctx, retryCfg, func(attempt int, _ error) (int, error) {
			calls++
			if attempt == 0 {
				return 0, fmt.Errorf("table bronze.orders does not exist")
			}
			return 100, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 100, value)
		assert.Equal(t, 2, calls)
	}
	{
		// 3 max attempts - first fails with a retryable error, second fails with a non-retryable error
		calls := 0
		retryCfg := NewRetryConfig(NewRetryConfigArgs{
			MaxAttempts:    3,
			IsRetryableErr: func(err error) bool { return strings.Contains(err.Error(), "retry") },
		})
		_, err := WithRetries(ctx, retryCfg, func(attempt int, _ error) (int, error) {
			calls++
			if attempt == 0 {
				return 0, fmt.Errorf("retry: warehouse is starting")
			} else if attempt == 1 {
				return 0, fmt.Errorf("table bronze.orders does not exist")
			}
			assert.Fail(t, "Should not happen")
			return 0, nil
		})
		assert.ErrorContains(t, err, "table bronze.orders does not exist")
		assert.Equal(t, 2, calls)
	}
	{
		// Cancelled context stops retrying and surfaces the last error
		cancelledCtx, cancel := context.WithCancel(ctx)
		cancel()

		calls := 0
		retryCfg := NewRetryConfig(NewRetryConfigArgs{MaxAttempts: 5, JitterBaseMs: 1000, JitterMaxMs: 5000})
		_, err := WithRetries(cancelledCtx, retryCfg, func(attempt int, _ error) (int, error) {
			calls++
			return 0, fmt.Errorf("connection refused")
		})
		assert.ErrorContains(t, err, "connection refused")
		assert.Equal(t, 1, calls)
	}
	{
		// Fixed interval between attempts
		calls := 0
		retryCfg := NewRetryConfig(NewRetryConfigArgs{MaxAttempts: 3, Interval: 5 * time.Millisecond, JitterBaseMs: 60_000, JitterMaxMs: 60_000})
		start := time.Now()
		value, err := WithRetries(ctx, retryCfg, func(attempt int, _ error) (string, error) {
			calls++
			if attempt < 2 {
				return "", fmt.Errorf("upstream table is missing")
			}
			return "ready", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "ready", value)
		assert.Equal(t, 3, calls)
		assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
		assert.Less(t, time.Since(start), 30*time.Second)
	}
	{
		// Negative interval falls back to jitter
		retryCfg := NewRetryConfig(NewRetryConfigArgs{Interval: -time.Second})
		assert.Zero(t, retryCfg.interval)
	}
}
