package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/receipts/pkg/retry"
)

var errTransient = errors.New("transient")

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 3, BaseWait: time.Millisecond}, func(_ context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 2, BaseWait: time.Millisecond}, func(context.Context, int) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 2, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	p := retry.Policy{
		MaxAttempts: 5,
		BaseWait:    time.Millisecond,
		Retryable:   func(err error) bool { return errors.Is(err, errTransient) },
	}

	err := retry.Do(context.Background(), p, func(context.Context, int) error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = retry.Do(context.Background(), retry.Policy{}, func(context.Context, int) error {
		calls++
		return errTransient
	})
	assert.Equal(t, 1, calls)
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := retry.Do(ctx, retry.Policy{MaxAttempts: 5, BaseWait: time.Hour}, func(context.Context, int) error {
		calls++
		cancel()
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestBackoff(t *testing.T) {
	p := retry.Policy{BaseWait: 100 * time.Millisecond, MaxWait: 300 * time.Millisecond}

	tests := []struct {
		n   int
		min time.Duration
		max time.Duration
	}{
		{1, 100 * time.Millisecond, 110 * time.Millisecond},
		{2, 200 * time.Millisecond, 220 * time.Millisecond},
		{3, 300 * time.Millisecond, 330 * time.Millisecond},
		{6, 300 * time.Millisecond, 330 * time.Millisecond},
	}

	for _, tt := range tests {
		got := p.Backoff(tt.n)
		assert.GreaterOrEqual(t, got, tt.min, "n=%d", tt.n)
		assert.LessOrEqual(t, got, tt.max, "n=%d", tt.n)
	}

	assert.Zero(t, retry.Policy{}.Backoff(3))
}
