package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/tabbylabs/mintpipe/internal/platform/logger"
	"github.com/tabbylabs/mintpipe/internal/store"
)

const (
	// retryBaseDelay is the first backoff interval; subsequent attempts
	// double it, with ±50% jitter applied.
	retryBaseDelay = 200 * time.Millisecond

	// maxRetries caps the number of retries after the initial attempt,
	// three attempts total.
	maxRetries = 2
)

// withRetry runs op, retrying transient store errors with exponential
// backoff and jitter. Non-transient errors return immediately; a transient
// error that survives all attempts surfaces as-is for the caller to map.
func withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(maxRetries,
		retry.WithJitterPercent(50, retry.NewExponential(retryBaseDelay)))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		opErr := op(ctx)
		if opErr == nil {
			return nil
		}
		if errors.Is(opErr, store.ErrTransient) {
			logger.FromContext(ctx).Warn("transient store error, will retry",
				"attempt", attempt,
				"error", opErr)
			return retry.RetryableError(opErr)
		}
		return opErr
	})
	return err
}
