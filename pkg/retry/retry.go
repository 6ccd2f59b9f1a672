// Package retry wraps external calls in bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrExhausted marks an error returned after every attempt failed.
var ErrExhausted = errors.New("retries exhausted")

// Policy bounds the attempts and spacing of a retried operation.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// Permanent marks err as not worth retrying. Do returns the unwrapped error
// immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs fn until it succeeds, returns a Permanent error, exhausts
// p.MaxAttempts, or ctx is done. Failed attempts that will be retried are
// logged with op. When attempts run out the last error is wrapped with ErrExhausted.
func Do[T any](ctx context.Context, p Policy, logger *slog.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	attempts := max(p.MaxAttempts, 1)

	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier >= 1 {
		b.Multiplier = p.Multiplier
	}

	tries := 0
	result, err := backoff.Retry(
		ctx,
		func() (T, error) {
			tries++
			return fn(ctx)
		},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.WarnContext(ctx, "retrying",
				"op", op,
				"attempt", tries,
				"next", next,
				"error", err,
			)
		}),
	)

	if err == nil {
		return result, nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return result, permanent.Unwrap()
	}
	if tries >= attempts && ctx.Err() == nil {
		return result, fmt.Errorf("%s: %w after %d attempts: %w", op, ErrExhausted, tries, err)
	}
	return result, err
}
