package retry

import (
	"context"
	"errors"
	"time"
)

// Policy describes a bounded retry loop with additive backoff: attempt n
// (1-based) is preceded by a delay of Initial + (n-2)*Step.
type Policy struct {
	MaxAttempts int
	Initial     time.Duration
	Step        time.Duration
}

func (p Policy) delay(completed int) time.Duration {
	return p.Initial + time.Duration(completed-1)*p.Step
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as terminal so Do surfaces it without further attempts.
func Permanent(err error) error {
	return &permanentError{err: err}
}

// Do runs op until it succeeds, returns a permanent error, the attempt
// ceiling is reached, or ctx is done. The last error is returned after the
// ceiling; a ceiling of zero or less performs no attempts.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(p.delay(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
	}
	return lastErr
}
