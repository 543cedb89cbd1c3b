// internal/metrics/metrics.go
// Package metrics holds the Prometheus collectors of the admin API.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "awadmin"

// Metrics holds all the application metrics
type Metrics struct {
	// HTTP request metrics
	HTTPRequestTotal    *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Storage operation metrics
	StorageOperationTotal    *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec

	// Event publishing metrics
	EventPublishTotal    *prometheus.CounterVec
	EventPublishDuration *prometheus.HistogramVec

	// Payload validation metrics
	SchemaValidationTotal    *prometheus.CounterVec
	SchemaValidationDuration *prometheus.HistogramVec

	// Response shaping and authentication
	ResponseShapeTotal *prometheus.CounterVec
	AuthAttemptTotal   *prometheus.CounterVec
}

// Global metrics instance with mutex for thread safety
var (
	globalMetrics *Metrics
	metricsMutex  sync.Mutex
)

// NewMetrics returns the process wide Metrics, creating and registering it
// on first use.
func NewMetrics() *Metrics {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	if globalMetrics != nil {
		return globalMetrics
	}

	m := &Metrics{
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		StorageOperationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Total number of storage operations",
		}, []string{"operation", "resource", "status"}),

		StorageOperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_duration_seconds",
			Help:      "Storage operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "resource", "status"}),

		EventPublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_total",
			Help:      "Total number of event publish operations",
		}, []string{"event_type", "status"}),

		EventPublishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_publish_duration_seconds",
			Help:      "Event publish duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type", "status"}),

		SchemaValidationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_validation_total",
			Help:      "Total number of payload validations",
		}, []string{"resource", "mode", "status"}),

		SchemaValidationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "schema_validation_duration_seconds",
			Help:      "Payload validation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"resource", "mode", "status"}),

		ResponseShapeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_shape_total",
			Help:      "Responses passed through the shaping pipeline, by produced shape",
		}, []string{"shape"}),

		AuthAttemptTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Credential and token exchanges, by endpoint and outcome",
		}, []string{"endpoint", "status"}),
	}

	m.HTTPRequestTotal = registerOrGet(m.HTTPRequestTotal)
	m.HTTPRequestDuration = registerOrGet(m.HTTPRequestDuration)
	m.StorageOperationTotal = registerOrGet(m.StorageOperationTotal)
	m.StorageOperationDuration = registerOrGet(m.StorageOperationDuration)
	m.EventPublishTotal = registerOrGet(m.EventPublishTotal)
	m.EventPublishDuration = registerOrGet(m.EventPublishDuration)
	m.SchemaValidationTotal = registerOrGet(m.SchemaValidationTotal)
	m.SchemaValidationDuration = registerOrGet(m.SchemaValidationDuration)
	m.ResponseShapeTotal = registerOrGet(m.ResponseShapeTotal)
	m.AuthAttemptTotal = registerOrGet(m.AuthAttemptTotal)

	globalMetrics = m
	return m
}

// registerOrGet registers c with the default registry and returns the
// collector already registered under the same name, if any.
func registerOrGet[C prometheus.Collector](c C) C {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

// Status renders an outcome label.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveHTTP records one completed request.
func (m *Metrics) ObserveHTTP(method, route string, status int, took time.Duration) {
	code := strconv.Itoa(status)
	m.HTTPRequestTotal.WithLabelValues(method, route, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route, code).Observe(took.Seconds())
}

// ObserveStorage records one storage call.
func (m *Metrics) ObserveStorage(operation, resource string, err error, took time.Duration) {
	status := Status(err)
	m.StorageOperationTotal.WithLabelValues(operation, resource, status).Inc()
	m.StorageOperationDuration.WithLabelValues(operation, resource, status).Observe(took.Seconds())
}

// ObservePublish records one event publication.
func (m *Metrics) ObservePublish(eventType string, err error, took time.Duration) {
	status := Status(err)
	m.EventPublishTotal.WithLabelValues(eventType, status).Inc()
	m.EventPublishDuration.WithLabelValues(eventType, status).Observe(took.Seconds())
}

// ObserveValidation records one payload validation.
func (m *Metrics) ObserveValidation(resource, mode string, err error, took time.Duration) {
	status := Status(err)
	m.SchemaValidationTotal.WithLabelValues(resource, mode, status).Inc()
	m.SchemaValidationDuration.WithLabelValues(resource, mode, status).Observe(took.Seconds())
}

// ObserveShape counts one shaped response.
func (m *Metrics) ObserveShape(shape string) {
	m.ResponseShapeTotal.WithLabelValues(shape).Inc()
}

// ObserveAuth counts one authentication attempt.
func (m *Metrics) ObserveAuth(endpoint string, err error) {
	m.AuthAttemptTotal.WithLabelValues(endpoint, Status(err)).Inc()
}
