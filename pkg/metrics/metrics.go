package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Ingestion
	ReadingsIngested *prometheus.CounterVec
	SubmitFailures   *prometheus.CounterVec

	// Status aggregation
	Reconciles        *prometheus.CounterVec
	ReconcileLatency  prometheus.Histogram
	StatusTransitions *prometheus.CounterVec
	SweptPatients     prometheus.Counter

	// Dispatch
	Dispatches         *prometheus.CounterVec
	DispatchQueueDepth prometheus.Gauge

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisLatency    *prometheus.HistogramVec

	// HTTP
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// NewMetrics creates all application metrics and registers them with reg.
// Tests pass a fresh prometheus.NewRegistry().
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ReadingsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_ingested_total",
			Help:      "Total number of persisted readings",
		}, []string{"test_type", "critical"}),
		SubmitFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reading_submit_failures_total",
			Help:      "Total number of rejected or failed reading batches",
		}, []string{"reason"}),

		Reconciles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patient_reconciles_total",
			Help:      "Total number of patient status reconciles",
		}, []string{"result"}),
		ReconcileLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "patient_reconcile_duration_seconds",
			Help:      "Time spent reconciling a patient status",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patient_status_transitions_total",
			Help:      "Total number of patient critical flag changes",
		}, []string{"to"}),
		SweptPatients: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_patients_total",
			Help:      "Total number of patients reconciled by the periodic sweep",
		}),

		Dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_dispatches_total",
			Help:      "Total number of reconcile dispatches",
		}, []string{"dispatcher", "status"}),
		DispatchQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconcile_queue_depth",
			Help:      "Current number of reconciles waiting in the in-process queue",
		}),

		RedisOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redis_operations_total",
			Help:      "Total number of Redis operations",
		}, []string{"operation", "status"}),
		RedisLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "redis_operation_duration_seconds",
			Help:      "Duration of Redis operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		}, []string{"operation"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}
