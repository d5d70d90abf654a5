package blobstore

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// Retry tuning: base 1s, factor 2x, capped at 60s, +/-25% jitter, bounded
// retry count.
const (
	maxRetries     = 5
	baseBackoff    = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
)

// sleepFunc waits for d or until ctx is canceled. Tests override this to
// avoid real delays.
type sleepFunc func(ctx context.Context, d time.Duration) error

func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// calcBackoff computes exponential backoff with +/-25% jitter.
func calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// withRetry retries fn on transient errors with exponential backoff,
// giving up after maxRetries retries (maxRetries+1 calls of fn in all) or
// on context cancellation. A non-nil
// isPermanent classifier short-circuits retry for errors known not to be
// transient (e.g. 404 on delete).
func withRetry(
	ctx context.Context, logger *slog.Logger, sleep sleepFunc, op string, isPermanent func(error) bool, fn func() error,
) error {
	if sleep == nil {
		sleep = timeSleep
	}

	var attempt int

	for {
		err := fn()
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if isPermanent != nil && isPermanent(err) {
			return err
		}

		if attempt >= maxRetries {
			return err
		}

		backoff := calcBackoff(attempt)
		logger.Warn("retrying blob store operation",
			slog.String("op", op),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		if sleepErr := sleep(ctx, backoff); sleepErr != nil {
			return errors.Join(err, sleepErr)
		}

		attempt++
	}
}
