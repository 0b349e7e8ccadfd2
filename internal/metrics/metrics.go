// Package metrics exposes fetcher events as Prometheus metrics.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"trends/scraper/internal/client"
	"trends/scraper/internal/fetcher"
)

const namespace = "trends"

// Observer implements [fetcher.Observer] on top of Prometheus collectors.
type Observer struct {
	attemptsFailed *prometheus.CounterVec
	backoff        prometheus.Histogram
	outcomes       *prometheus.CounterVec
	attempts       prometheus.Histogram
}

var _ fetcher.Observer = (*Observer)(nil)

// NewObserver creates the collectors and registers them with registerer. If registerer is nil,
// metrics are not registered.
func NewObserver(registerer prometheus.Registerer, subsystem string) *Observer {
	o := Observer{
		attemptsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "attempts_failed_total",
			Help:      "Number of failed fetch attempts",
		}, []string{"reason"}),
		backoff: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "backoff_seconds",
			Help:      "Scheduled backoff between attempts",
			Buckets:   prometheus.LinearBuckets(5, 5, 12),
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outcomes_total",
			Help:      "Number of items by terminal status",
		}, []string{"status"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "attempts",
			Help:      "Attempts spent per item",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
	}

	if registerer != nil {
		registerer.MustRegister(o.attemptsFailed, o.backoff, o.outcomes, o.attempts)
	}

	return &o
}

func (o *Observer) AttemptFailed(_ string, _ int, err error) {
	o.attemptsFailed.WithLabelValues(reason(err)).Inc()
}

func (o *Observer) BackoffScheduled(_ string, d time.Duration) {
	o.backoff.Observe(d.Seconds())
}

func (o *Observer) Finished(_ string, status fetcher.Status, attempts int) {
	o.outcomes.WithLabelValues(status.String()).Inc()
	if attempts > 0 {
		o.attempts.Observe(float64(attempts))
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, client.ErrQuotaExceeded):
		return "quota"
	default:
		return "error"
	}
}
