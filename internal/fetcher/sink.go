package fetcher

import (
	"context"
	"errors"
)

// Sink persists terminal outcomes. It is called exactly once per item.
type Sink[V any] interface {
	Record(ctx context.Context, outcome Outcome[V]) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc[V any] func(ctx context.Context, outcome Outcome[V]) error

func (f SinkFunc[V]) Record(ctx context.Context, outcome Outcome[V]) error {
	return f(ctx, outcome)
}

// MultiSink records every outcome into all of its sinks, even when some of them fail.
type MultiSink[V any] []Sink[V]

func (m MultiSink[V]) Record(ctx context.Context, outcome Outcome[V]) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, outcome); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every outcome.
func Discard[V any]() Sink[V] {
	return SinkFunc[V](func(context.Context, Outcome[V]) error { return nil })
}
