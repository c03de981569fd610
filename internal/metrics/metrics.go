package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Identity stores
	RecordStoreValidation(store, status string, duration time.Duration)
	RecordStoreError(store, operation string)
	RecordGroupLookup(store string, groups int, duration time.Duration)

	// Authentication mechanisms
	RecordAuthentication(mechanism, status string, duration time.Duration)
	RecordRememberMeToken(action string)
}

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Identity Store Metrics
	StoreValidationsTotal   *prometheus.CounterVec
	StoreValidationDuration *prometheus.HistogramVec
	StoreErrorsTotal        *prometheus.CounterVec
	GroupLookupsTotal       *prometheus.CounterVec
	GroupLookupDuration     *prometheus.HistogramVec

	// Authentication Metrics
	AuthenticationsTotal   *prometheus.CounterVec
	AuthenticationDuration *prometheus.HistogramVec
	RememberMeTokensTotal  *prometheus.CounterVec

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag
// If enabled=true, returns Prometheus-based Metrics
// If enabled=false, returns NoopMetrics (zero overhead)
// Uses sync.Once to ensure Prometheus metrics are only registered once
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

// initMetrics creates and registers all Prometheus metrics
func initMetrics() *Metrics {
	return &Metrics{
		StoreValidationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_store_validations_total",
				Help: "Total number of credential validations per identity store",
			},
			[]string{"store", "status"}, // status: VALID, INVALID, NOT_VALIDATED
		),
		StoreValidationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "identity_store_validation_duration_seconds",
				Help:    "Time taken by an identity store to validate a credential",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"store"},
		),
		StoreErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_store_errors_total",
				Help: "Total number of identity store system faults",
			},
			[]string{"store", "operation"}, // operation: validate, groups
		),
		GroupLookupsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_store_group_lookups_total",
				Help: "Total number of caller group lookups",
			},
			[]string{"store"},
		),
		GroupLookupDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "identity_store_group_lookup_duration_seconds",
				Help:    "Time taken to look up caller groups",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"store"},
		),

		AuthenticationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authentications_total",
				Help: "Total number of authentication attempts by outcome",
			},
			[]string{
				"mechanism",
				"status",
			}, // status: NOT_DONE, SEND_CONTINUE, SUCCESS, SEND_FAILURE, ERROR
		),
		AuthenticationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authentication_duration_seconds",
				Help:    "Time taken by an authentication mechanism",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mechanism"},
		),
		RememberMeTokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remember_me_tokens_total",
				Help: "Total number of remember-me token operations",
			},
			[]string{"action"}, // issued, accepted, rejected, removed
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request latency in seconds",
				Buckets: []float64{
					0.001,
					0.005,
					0.010,
					0.025,
					0.050,
					0.100,
					0.250,
					0.500,
					1.0,
					2.5,
					5.0,
				},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being served",
			},
		),
	}
}

// RecordStoreValidation records one store's validation outcome
func (m *Metrics) RecordStoreValidation(store, status string, duration time.Duration) {
	m.StoreValidationsTotal.WithLabelValues(store, status).Inc()
	m.StoreValidationDuration.WithLabelValues(store).Observe(duration.Seconds())
}

// RecordStoreError records a system fault raised by a store
func (m *Metrics) RecordStoreError(store, operation string) {
	m.StoreErrorsTotal.WithLabelValues(store, operation).Inc()
}

// RecordGroupLookup records a caller group lookup
func (m *Metrics) RecordGroupLookup(store string, groups int, duration time.Duration) {
	m.GroupLookupsTotal.WithLabelValues(store).Inc()
	m.GroupLookupDuration.WithLabelValues(store).Observe(duration.Seconds())
}

// RecordAuthentication records the outcome of a mechanism run
func (m *Metrics) RecordAuthentication(mechanism, status string, duration time.Duration) {
	m.AuthenticationsTotal.WithLabelValues(mechanism, status).Inc()
	m.AuthenticationDuration.WithLabelValues(mechanism).Observe(duration.Seconds())
}

// RecordRememberMeToken records a remember-me token operation
func (m *Metrics) RecordRememberMeToken(action string) {
	m.RememberMeTokensTotal.WithLabelValues(action).Inc()
}
