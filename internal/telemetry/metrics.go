package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	CourierErrors    *prometheus.CounterVec
	RefreshBatchSize prometheus.Histogram
}

// NewMetrics creates and registers Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courierbridge_requests_total",
				Help: "Total number of requests by operation, courier, and status",
			},
			[]string{"operation", "courier", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courierbridge_request_duration_seconds",
				Help:    "Request duration in seconds by operation and courier",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "courier"},
		),
		CourierErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courierbridge_courier_errors_total",
				Help: "Total courier API errors by courier and error code",
			},
			[]string{"courier", "error_code"},
		),
		RefreshBatchSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "courierbridge_refresh_batch_size",
				Help:    "Number of shipments selected per tracking refresh run",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
			},
		),
	}
}

// RecordRequest records a request metric.
func (m *Metrics) RecordRequest(operation, courier, status string, duration float64) {
	m.RequestsTotal.WithLabelValues(operation, courier, status).Inc()
	m.RequestDuration.WithLabelValues(operation, courier).Observe(duration)
}

// RecordError records a courier error metric.
func (m *Metrics) RecordError(courier, errorCode string) {
	m.CourierErrors.WithLabelValues(courier, errorCode).Inc()
}

// RecordRefreshBatch records the size of one refresh run.
func (m *Metrics) RecordRefreshBatch(size int) {
	m.RefreshBatchSize.Observe(float64(size))
}
