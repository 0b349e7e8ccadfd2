// Package fetcher runs calls against unreliable remote sources with bounded retries and
// randomized backoff, turning every work item into exactly one terminal [Outcome].
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	ErrExhausted = errors.New("retries exhausted")
	ErrCancelled = errors.New("fetch cancelled")
)

type Status int

const (
	StatusCompleted Status = iota + 1
	StatusExhausted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusExhausted:
		return "exhausted"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Item is a unit of work. The payload is never modified by the fetcher.
type Item[P any] struct {
	ID      string
	Payload P
}

// Outcome is the terminal record of one item.
type Outcome[V any] struct {
	ItemID   string
	Status   Status
	Value    V
	Err      error // last fetch error; nil when completed
	Attempts int
}

func (o Outcome[V]) Completed() bool {
	return o.Status == StatusCompleted
}

// Failure describes a non-completed outcome as an error. It returns nil for completed ones.
func (o Outcome[V]) Failure() error {
	switch o.Status {
	case StatusCompleted:
		return nil
	case StatusCancelled:
		return fmt.Errorf("%s: %w: %w", o.ItemID, ErrCancelled, o.Err)
	default:
		return fmt.Errorf("%s: %w after %d attempts: %w", o.ItemID, ErrExhausted, o.Attempts, o.Err)
	}
}

// Operation performs a single attempt for an item.
type Operation[P, V any] func(ctx context.Context, item Item[P]) (V, error)

// Observer receives attempt level events, e.g. for metrics.
type Observer interface {
	AttemptFailed(itemID string, attempt int, err error)
	BackoffScheduled(itemID string, d time.Duration)
	Finished(itemID string, status Status, attempts int)
}

type nopObserver struct{}

func (nopObserver) AttemptFailed(string, int, error) {}

func (nopObserver) BackoffScheduled(string, time.Duration) {}

func (nopObserver) Finished(string, Status, int) {}

type Option func(*settings)

type settings struct {
	sleep    Sleeper
	random   func() float64
	observer Observer
	logger   log.FieldLogger
}

func WithSleeper(sleep Sleeper) Option {
	if sleep == nil {
		panic("sleeper can't be nil")
	}
	return func(s *settings) {
		s.sleep = sleep
	}
}

// WithRandom replaces the source of uniform values in [0, 1) used to draw backoffs.
func WithRandom(random func() float64) Option {
	if random == nil {
		panic("random can't be nil")
	}
	return func(s *settings) {
		s.random = random
	}
}

func WithObserver(observer Observer) Option {
	return func(s *settings) {
		if observer == nil {
			observer = nopObserver{}
		}
		s.observer = observer
	}
}

func WithLogger(logger log.FieldLogger) Option {
	return func(s *settings) {
		if logger == nil {
			logger = log.StandardLogger()
		}
		s.logger = logger
	}
}

// Fetcher holds only immutable settings, so one instance may be shared by any number of
// goroutines as long as the operations it runs are safe for concurrent use.
type Fetcher[P, V any] struct {
	settings
}

func New[P, V any](options ...Option) *Fetcher[P, V] {
	s := settings{
		sleep:    Sleep,
		random:   rand.Float64,
		observer: nopObserver{},
		logger:   log.StandardLogger(),
	}
	for _, opt := range options {
		opt(&s)
	}
	return &Fetcher[P, V]{settings: s}
}

// Run attempts op for item until it succeeds or policy.MaxRetries attempts have failed.
// Errors returned by op never escape; they end up in the returned outcome.
func (f *Fetcher[P, V]) Run(ctx context.Context, item Item[P], op Operation[P, V], policy Policy) Outcome[V] {
	policy = policy.normalized()
	logger := f.logger.WithField("item", item.ID)
	out := Outcome[V]{ItemID: item.ID}

	if err := ctx.Err(); err != nil {
		out.Status = StatusCancelled
		out.Err = err
		return f.finish(logger, out)
	}

	for attempt := 1; attempt <= policy.MaxRetries; attempt++ {
		out.Attempts = attempt

		value, err := op(ctx, item)
		if err == nil {
			out.Status = StatusCompleted
			out.Value = value
			out.Err = nil
			if policy.PauseAfterSuccess {
				d := policy.Backoff(attempt, f.random())
				logger.Debugf("Pausing %s after success", d)
				// The value is already in hand, so an interrupted pause doesn't change the outcome.
				_ = f.sleep(ctx, d)
			}
			return f.finish(logger, out)
		}

		out.Err = err
		f.observer.AttemptFailed(item.ID, attempt, err)

		if ctx.Err() != nil {
			out.Status = StatusCancelled
			return f.finish(logger, out)
		}
		if attempt == policy.MaxRetries {
			logger.Warnf("🔄 Attempt %d/%d failed: %v", attempt, policy.MaxRetries, err)
			break
		}

		d := policy.Backoff(attempt, f.random())
		logger.Warnf("🔄 Attempt %d/%d failed: %v (retrying in %s)", attempt, policy.MaxRetries, err, d)
		f.observer.BackoffScheduled(item.ID, d)

		if err := f.sleep(ctx, d); err != nil {
			out.Status = StatusCancelled
			return f.finish(logger, out)
		}
	}

	out.Status = StatusExhausted
	return f.finish(logger, out)
}

func (f *Fetcher[P, V]) finish(logger log.FieldLogger, out Outcome[V]) Outcome[V] {
	switch out.Status {
	case StatusCompleted:
		logger.Debugf("✅ Completed after %d attempt(s)", out.Attempts)
	case StatusExhausted:
		logger.Errorf("❌ Max retries reached after %d attempt(s): %v", out.Attempts, out.Err)
	case StatusCancelled:
		logger.Infof("🛑 Cancelled after %d attempt(s)", out.Attempts)
	}
	f.observer.Finished(out.ItemID, out.Status, out.Attempts)
	return out
}

// Process runs item and hands the outcome to sink. Only a sink failure is returned as an error.
func (f *Fetcher[P, V]) Process(
	ctx context.Context,
	item Item[P],
	op Operation[P, V],
	policy Policy,
	sink Sink[V],
) (Outcome[V], error) {
	out := f.Run(ctx, item, op, policy)
	if sink == nil {
		return out, nil
	}
	// Record with a context that survives cancellation so a cancelled outcome is still persisted.
	if err := sink.Record(context.WithoutCancel(ctx), out); err != nil {
		return out, fmt.Errorf("record outcome of %s: %w", item.ID, err)
	}
	return out, nil
}

// ProcessAll processes items with at most workers concurrent invocations. Invocations share
// nothing but the operation and the sink, so both must be safe for concurrent use when
// workers > 1. The first sink failure cancels the remaining items and is returned.
func (f *Fetcher[P, V]) ProcessAll(
	ctx context.Context,
	items []Item[P],
	op Operation[P, V],
	policy Policy,
	sink Sink[V],
	workers int,
) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, workers))

	for _, item := range items {
		g.Go(func() error {
			_, err := f.Process(gctx, item, op, policy, sink)
			return err
		})
	}

	return g.Wait()
}
