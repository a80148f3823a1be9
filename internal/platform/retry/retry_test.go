package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ticketshop/invoicing-gateway/internal/platform/retry"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 3}, func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 5, Initial: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ReturnsLastErrorAfterCeiling(t *testing.T) {
	calls := 0
	lastErr := errors.New("still failing")
	err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 4, Initial: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return lastErr
	})
	assert.ErrorIs(t, err, lastErr)
	assert.Equal(t, 4, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	terminal := errors.New("terminal")
	err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 5, Initial: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return retry.Permanent(terminal)
	})
	assert.ErrorIs(t, err, terminal)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := retry.Do(ctx, retry.Policy{MaxAttempts: 10, Initial: time.Second}, func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
