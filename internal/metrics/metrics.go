// Package metrics holds the Prometheus collectors of the service
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	ThrowsSent         *prometheus.CounterVec
	DuplicateThrows    prometheus.Counter
	FeedComposeSeconds prometheus.Histogram
	FeedComposeErrors  *prometheus.CounterVec
	FollowRequests     *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
}

// New creates the collectors on a dedicated registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ThrowsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "throws_sent_total",
				Help: "Total number of throws persisted",
			},
			[]string{"kind"},
		),
		DuplicateThrows: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "throws_duplicate_total",
				Help: "Total number of throw attempts rejected as duplicates",
			},
		),
		FeedComposeSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "feed_compose_duration_seconds",
				Help:    "Time spent composing a viewer feed",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		),
		FeedComposeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feed_compose_errors_total",
				Help: "Feed compose query failures by stage",
			},
			[]string{"stage"},
		),
		FollowRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "follow_requests_total",
				Help: "Successful follow graph changes",
			},
			[]string{"action"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests by route and status class",
			},
			[]string{"route", "class"},
		),
	}

	m.registry.MustRegister(
		m.ThrowsSent,
		m.DuplicateThrows,
		m.FeedComposeSeconds,
		m.FeedComposeErrors,
		m.FollowRequests,
		m.HTTPRequests,
		collectors.NewGoCollector(),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The helpers below accept a nil receiver so components can run without metrics.

func (m *Metrics) ObserveThrow(withMessage bool) {
	if m == nil {
		return
	}
	kind := "plain"
	if withMessage {
		kind = "message"
	}
	m.ThrowsSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveDuplicateThrow() {
	if m == nil {
		return
	}
	m.DuplicateThrows.Inc()
}

func (m *Metrics) ObserveCompose(d time.Duration) {
	if m == nil {
		return
	}
	m.FeedComposeSeconds.Observe(d.Seconds())
}

func (m *Metrics) ObserveComposeError(stage string) {
	if m == nil {
		return
	}
	m.FeedComposeErrors.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveFollow(action string) {
	if m == nil {
		return
	}
	m.FollowRequests.WithLabelValues(action).Inc()
}

func (m *Metrics) ObserveRequest(route string, status int) {
	if m == nil {
		return
	}
	class := "2xx"
	switch {
	case status >= 500:
		class = "5xx"
	case status >= 400:
		class = "4xx"
	case status >= 300:
		class = "3xx"
	}
	m.HTTPRequests.WithLabelValues(route, class).Inc()
}
