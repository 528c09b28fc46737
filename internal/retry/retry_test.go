package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func recordSleeps(slept *[]time.Duration) Sleeper {
	return func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return ctx.Err()
	}
}

func TestDelayBacksOffAndCaps(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 200*time.Millisecond, cfg.Delay(0))
	assert.Equal(t, 400*time.Millisecond, cfg.Delay(1))
	assert.Equal(t, 800*time.Millisecond, cfg.Delay(2))
	assert.Equal(t, 5*time.Second, cfg.Delay(10))
}

func TestExecuteSucceedsAfterTransientErrors(t *testing.T) {
	var slept []time.Duration
	calls := 0
	got, err := Execute(context.Background(), Options{
		Config:    DefaultConfig(),
		Retryable: func(err error) bool { return errors.Is(err, errTransient) },
		Sleep:     recordSleeps(&slept),
	}, func(attempt int) (string, error) {
		calls++
		if attempt < 2 {
			return "", errTransient
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, slept)
}

func TestExecuteStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad payload")
	calls := 0
	_, err := Execute(context.Background(), Options{
		Config:    DefaultConfig(),
		Retryable: func(err error) bool { return errors.Is(err, errTransient) },
		Sleep:     recordSleeps(new([]time.Duration)),
	}, func(int) (int, error) {
		calls++
		return 0, permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestExecuteExhaustsBudget(t *testing.T) {
	calls := 0
	_, err := Execute(context.Background(), Options{
		Config:    Config{MaxRetries: 2, BaseDelay: time.Millisecond, BackoffMultiple: 2},
		Retryable: func(error) bool { return true },
		Sleep:     recordSleeps(new([]time.Duration)),
	}, func(int) (int, error) {
		calls++
		return 0, errTransient
	})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestExecuteRespectsTimeBudget(t *testing.T) {
	calls := 0
	_, err := Execute(context.Background(), Options{
		Config:    Config{MaxRetries: 5, BaseDelay: time.Second, BackoffMultiple: 2},
		Retryable: func(error) bool { return true },
		Budget:    func() time.Duration { return 500 * time.Millisecond },
		Sleep:     recordSleeps(new([]time.Duration)),
	}, func(int) (int, error) {
		calls++
		return 0, errTransient
	})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 1, calls)
}

func TestExecuteHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Execute(ctx, Options{Config: DefaultConfig()}, func(int) (int, error) {
		t.Fatal("fn must not run after cancellation")
		return 0, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
