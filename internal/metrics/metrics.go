// Package metrics exposes Prometheus collectors for the API.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "nutriwatch/internal/errors"
)

const namespace = "nutriwatch"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics owns a private registry and the collectors registered on it.
type Metrics struct {
	registry *prometheus.Registry

	StockAdjustments       *prometheus.CounterVec
	FoodRequestSubmissions *prometheus.CounterVec
	FoodRequestReviews     *prometheus.CounterVec
	EventPublishFailures   *prometheus.CounterVec
	RequestDuration        *prometheus.HistogramVec
}

// New creates the collectors and registers them with the Go and process
// collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		StockAdjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjustments_total",
			Help:      "Stock adjustments by direction and outcome.",
		}, []string{"direction", "outcome"}),
		FoodRequestSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "food_request_submissions_total",
			Help:      "Food request submissions by outcome.",
		}, []string{"outcome"}),
		FoodRequestReviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "food_request_reviews_total",
			Help:      "Food request approvals and rejections by outcome.",
		}, []string{"decision", "outcome"}),
		EventPublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Domain events that could not be published.",
		}, []string{"type"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.StockAdjustments,
		m.FoodRequestSubmissions,
		m.FoodRequestReviews,
		m.EventPublishFailures,
		m.RequestDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveStockAdjustment counts one stock adjustment.
func (m *Metrics) ObserveStockAdjustment(direction string, err error) {
	m.StockAdjustments.WithLabelValues(direction, Outcome(err)).Inc()
}

// ObserveSubmission counts one food request submission.
func (m *Metrics) ObserveSubmission(err error) {
	m.FoodRequestSubmissions.WithLabelValues(Outcome(err)).Inc()
}

// ObserveReview counts one approval or rejection.
func (m *Metrics) ObserveReview(decision string, err error) {
	m.FoodRequestReviews.WithLabelValues(decision, Outcome(err)).Inc()
}

// ObservePublishFailure counts one event that failed to publish.
func (m *Metrics) ObservePublishFailure(eventType string) {
	m.EventPublishFailures.WithLabelValues(eventType).Inc()
}

// ObserveRequest records the latency of one HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, elapsed time.Duration) {
	m.RequestDuration.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
}

// Outcome maps an error to a low-cardinality label: "success", the
// application error code, or "error".
func Outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return OutcomeError
}
