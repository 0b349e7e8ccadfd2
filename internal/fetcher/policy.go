package fetcher

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidPolicy = errors.New("invalid retry policy")

// Policy configures one fetch sequence. It is fixed for the lifetime of a Run call.
type Policy struct {
	// MaxRetries is the total number of attempts, including the first one.
	MaxRetries int
	// BaseTimeout is the centre of the backoff window.
	BaseTimeout time.Duration
	// Jitter is the half-width of the backoff window around BaseTimeout.
	Jitter time.Duration
	// Escalation widens BaseTimeout after every failed attempt. Zero keeps the window fixed.
	Escalation time.Duration
	// PauseAfterSuccess makes a successful attempt wait one backoff duration before returning,
	// which keeps a sequential caller from hammering the remote source.
	PauseAfterSuccess bool
}

// Validate reports whether the policy can be used as configured.
func (p Policy) Validate() error {
	if p.MaxRetries < 1 {
		return fmt.Errorf("%w: max retries can't be < 1", ErrInvalidPolicy)
	}
	if p.BaseTimeout < 0 {
		return fmt.Errorf("%w: base timeout can't be < 0", ErrInvalidPolicy)
	}
	if p.Jitter < 0 {
		return fmt.Errorf("%w: jitter can't be < 0", ErrInvalidPolicy)
	}
	if p.Escalation < 0 {
		return fmt.Errorf("%w: escalation can't be < 0", ErrInvalidPolicy)
	}
	return nil
}

// Window returns the inclusive bounds of the backoff drawn after the given attempt (1-based).
func (p Policy) Window(attempt int) (lo, hi time.Duration) {
	base := p.BaseTimeout
	if attempt > 1 {
		base += time.Duration(attempt-1) * p.Escalation
	}
	lo = max(0, base-p.Jitter)
	hi = max(0, base+p.Jitter)
	return lo, hi
}

// Backoff maps r in [0, 1) onto the backoff window of the given attempt.
func (p Policy) Backoff(attempt int, r float64) time.Duration {
	lo, hi := p.Window(attempt)
	if hi <= lo {
		return lo
	}
	r = min(max(r, 0), 1)
	return lo + time.Duration(r*float64(hi-lo))
}

func (p Policy) normalized() Policy {
	if p.MaxRetries < 1 {
		p.MaxRetries = 1
	}
	p.BaseTimeout = max(0, p.BaseTimeout)
	p.Jitter = max(0, p.Jitter)
	p.Escalation = max(0, p.Escalation)
	return p
}
