package fetcher

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Sleeper blocks for d or until ctx is done, returning ctx.Err() in the latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Countdown returns a Sleeper that logs the remaining time every step while it waits.
func Countdown(step time.Duration, logger log.FieldLogger) Sleeper {
	if step <= 0 {
		return Sleep
	}
	if logger == nil {
		logger = log.StandardLogger()
	}

	return func(ctx context.Context, d time.Duration) error {
		if d <= 0 {
			return ctx.Err()
		}

		deadline := time.Now().Add(d)
		done := time.NewTimer(d)
		defer done.Stop()
		tick := time.NewTicker(step)
		defer tick.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-done.C:
				logger.Debug("⏱️ Backoff complete")
				return nil
			case <-tick.C:
				remaining := time.Until(deadline).Round(time.Second)
				if remaining > 0 {
					logger.Debugf("⏱️ %s remaining", remaining)
				}
			}
		}
	}
}
