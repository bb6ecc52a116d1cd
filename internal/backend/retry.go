package backend

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/zecgate/gateway/internal/observability"
)

// RetryConfig configures the backend proxy's retry-with-exponential-backoff
// behavior. Retries are applied only here; no other gateway component retries.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// ErrRetriesExhausted wraps the last error after all attempts failed.
type ErrRetriesExhausted struct {
	Attempts int
	Last     error
}

func (e *ErrRetriesExhausted) Error() string {
	return "backend: retries exhausted after " + itoa(e.Attempts) + " attempts: " + e.Last.Error()
}

func (e *ErrRetriesExhausted) Unwrap() error { return e.Last }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// doWithRetry runs fn with exponential backoff and jitter, bounded by cfg.
// Context cancellation stops retrying immediately; non-retryable errors stop
// immediately without consuming the remaining attempt budget.
func doWithRetry(ctx context.Context, cfg RetryConfig, logger observability.Logger, fn func(ctx context.Context) error) error {
	backoffStrategy := retry.NewExponential(cfg.InitialDelay)
	backoffStrategy = retry.WithJitter(cfg.InitialDelay/4, backoffStrategy)
	backoffStrategy = retry.WithCappedDuration(cfg.MaxDelay, backoffStrategy)
	var maxRetries uint64
	if cfg.MaxAttempts > 1 {
		maxRetries = uint64(cfg.MaxAttempts - 1)
	}
	backoffStrategy = retry.WithMaxRetries(maxRetries, backoffStrategy)

	attempt := 0
	var lastErr error
	err := retry.Do(ctx, backoffStrategy, func(ctx context.Context) error {
		attempt++
		opErr := fn(ctx)
		if opErr == nil {
			return nil
		}
		lastErr = opErr
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isRetryable(opErr) {
			return opErr
		}
		if logger != nil {
			logger.Debug("backend call failed, retrying",
				observability.Int("attempt", attempt),
				observability.Err(opErr))
		}
		return retry.RetryableError(opErr)
	})
	if err == nil {
		return nil
	}
	if attempt >= cfg.MaxAttempts {
		return &ErrRetriesExhausted{Attempts: attempt, Last: lastErr}
	}
	return err
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return true
}
