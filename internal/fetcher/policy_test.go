package fetcher_test

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"trends/scraper/internal/fetcher"
	"trends/scraper/internal/testing/require"
)

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, fetcher.Policy{MaxRetries: 1}.Validate())
	require.NoError(t, fetcher.Policy{MaxRetries: 3, BaseTimeout: time.Second, Jitter: 2 * time.Second}.Validate())

	for _, p := range []fetcher.Policy{
		{MaxRetries: 0},
		{MaxRetries: -1},
		{MaxRetries: 1, BaseTimeout: -1},
		{MaxRetries: 1, Jitter: -1},
		{MaxRetries: 1, Escalation: -1},
	} {
		require.ErrorIs(t, p.Validate(), fetcher.ErrInvalidPolicy)
	}
}

func TestPolicyWindow(t *testing.T) {
	p := fetcher.Policy{BaseTimeout: 20 * time.Second, Jitter: 3 * time.Second, Escalation: 5 * time.Second}

	lo, hi := p.Window(1)
	require.Equal(t, lo, 17*time.Second)
	require.Equal(t, hi, 23*time.Second)

	lo, hi = p.Window(3)
	require.Equal(t, lo, 27*time.Second)
	require.Equal(t, hi, 33*time.Second)

	lo, hi = fetcher.Policy{BaseTimeout: time.Second, Jitter: 3 * time.Second}.Window(1)
	require.Equal(t, lo, time.Duration(0))
	require.Equal(t, hi, 4*time.Second)
}

func TestPolicyBackoff(t *testing.T) {
	p := fetcher.Policy{BaseTimeout: 10 * time.Second, Jitter: 2 * time.Second}
	require.Equal(t, p.Backoff(1, 0), 8*time.Second)
	require.Equal(t, p.Backoff(1, 0.25), 9*time.Second)
	require.Equal(t, p.Backoff(1, 1), 12*time.Second)
	require.Equal(t, p.Backoff(1, 7), 12*time.Second)
	require.Equal(t, p.Backoff(1, -1), 8*time.Second)
	require.Equal(t, fetcher.Policy{}.Backoff(1, 0.5), time.Duration(0))
}

func TestSleep(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		start := time.Now()
		require.NoError(t, fetcher.Sleep(t.Context(), 3*time.Second))
		require.Equal(t, time.Since(start), 3*time.Second)
	})

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), time.Second)
		defer cancel()
		start := time.Now()
		require.ErrorIs(t, fetcher.Sleep(ctx, time.Minute), context.DeadlineExceeded)
		require.Equal(t, time.Since(start), time.Second)
	})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.ErrorIs(t, fetcher.Sleep(ctx, 0), context.Canceled)
}

func TestCountdown(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sleep := fetcher.Countdown(time.Second, quietLogger())
		start := time.Now()
		require.NoError(t, sleep(t.Context(), 5*time.Second))
		require.Equal(t, time.Since(start), 5*time.Second)
	})

	synctest.Test(t, func(t *testing.T) {
		sleep := fetcher.Countdown(2*time.Second, quietLogger())
		ctx, cancel := context.WithTimeout(t.Context(), 3*time.Second)
		defer cancel()
		require.ErrorIs(t, sleep(ctx, time.Minute), context.DeadlineExceeded)
	})
}

func TestRunWithRealSleeps(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := fetcher.New[string, string](fetcher.WithLogger(quietLogger()), fetcher.WithRandom(func() float64 { return 0 }))
		calls := 0
		op := func(context.Context, fetcher.Item[string]) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("unavailable")
			}
			return "ok", nil
		}

		start := time.Now()
		out := f.Run(t.Context(), fetcher.Item[string]{ID: "x"}, op, fetcher.Policy{
			MaxRetries:  3,
			BaseTimeout: 20 * time.Second,
			Jitter:      3 * time.Second,
		})
		require.Equal(t, out.Status, fetcher.StatusCompleted)
		require.Equal(t, time.Since(start), 34*time.Second)
	})
}
