// Package metrics exposes Prometheus counters for the notifier.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cycle results.
const (
	CycleOK     = "ok"
	CycleFailed = "failed"
)

// Message outcomes.
const (
	OutcomeNotified  = "notified"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
	OutcomeMalformed = "malformed"
)

var (
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailnotify_cycles_total",
			Help: "Polling cycles by result",
		},
		[]string{"result"}, // ok, failed
	)

	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailnotify_messages_total",
			Help: "Fetched messages by outcome",
		},
		[]string{"outcome"},
	)

	DeliveryFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailnotify_delivery_fallbacks_total",
			Help: "Notifications resent as plain text after the formatted send failed",
		},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mailnotify_cycle_duration_seconds",
			Help:    "Polling cycle duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		},
	)
)

// RecordCycle records one finished cycle.
func RecordCycle(result string, d time.Duration) {
	CyclesTotal.WithLabelValues(result).Inc()
	CycleDuration.Observe(d.Seconds())
}

// RecordMessage counts one message outcome.
func RecordMessage(outcome string) {
	MessagesTotal.WithLabelValues(outcome).Inc()
}

// RecordFallback counts one plain-text resend.
func RecordFallback() {
	DeliveryFallbacksTotal.Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
