// Package metrics holds the Prometheus collectors for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RequestsSubmitted  prometheus.Counter
	Decisions          *prometheus.CounterVec
	POsGenerated       prometheus.Counter
	ReceiptValidations *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on the given registerer. Tests pass a fresh
// registry so repeated construction does not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "saveapenny_requests_submitted_total",
			Help: "Total number of purchase requests submitted",
		}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "saveapenny_decisions_total",
			Help: "Total number of approval decisions, by level and decision",
		}, []string{"level", "decision"}),
		POsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "saveapenny_purchase_orders_generated_total",
			Help: "Total number of purchase orders generated",
		}),
		ReceiptValidations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "saveapenny_receipt_validations_total",
			Help: "Total number of receipt validations, by verdict",
		}, []string{"verdict"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "saveapenny_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route, and status code",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}
