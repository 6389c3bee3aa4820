// Package metrics records per-run counters and pushes them to a Prometheus pushgateway.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "review_relay"

// Page outcomes.
const (
	PageOK    = "ok"
	PageEmpty = "empty"
	PageError = "error"
)

// Notification outcomes.
const (
	NotifySent       = "sent"
	NotifySuppressed = "suppressed"
	NotifyFailed     = "failed"
)

// Recorder owns a private registry. A nil *Recorder records nothing.
type Recorder struct {
	reg           *prometheus.Registry
	pages         *prometheus.CounterVec
	newReviews    *prometheus.CounterVec
	notifications *prometheus.CounterVec
	runDuration   prometheus.Histogram
	lastSuccess   prometheus.Gauge
}

// New builds a Recorder with all collectors registered.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		pages: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "feed_pages_total", Help: "Feed pages fetched."},
			[]string{"country", "status"}, // status: ok|empty|error
		),
		newReviews: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "new_reviews_total", Help: "Reviews not seen before."},
			[]string{"country"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "notifications_total", Help: "Notification outcomes."},
			[]string{"outcome"}, // outcome: sent|suppressed|failed
		),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "run_duration_seconds",
			Help:    "Duration of a relay run.",
			Buckets: prometheus.DefBuckets,
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_success_timestamp_seconds",
			Help: "Unix time of the last run that finished without error.",
		}),
	}
	r.reg.MustRegister(r.pages, r.newReviews, r.notifications, r.runDuration, r.lastSuccess)
	return r
}

func (r *Recorder) ObservePage(country, status string) {
	if r == nil {
		return
	}
	r.pages.WithLabelValues(country, status).Inc()
}

func (r *Recorder) ObserveNewReview(country string) {
	if r == nil {
		return
	}
	r.newReviews.WithLabelValues(country).Inc()
}

func (r *Recorder) ObserveNotification(outcome string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(outcome).Inc()
}

// ObserveRun records the run duration and, on success, the completion time.
func (r *Recorder) ObserveRun(started time.Time, err error) {
	if r == nil {
		return
	}
	r.runDuration.Observe(time.Since(started).Seconds())
	if err == nil {
		r.lastSuccess.SetToCurrentTime()
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// Handler serves the registry in the text exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry(), promhttp.HandlerOpts{})
}

// Push sends the current values to a pushgateway under the given job.
// An empty url is a no-op.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if r == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(r.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
