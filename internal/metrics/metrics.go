// Package metrics provides Prometheus metrics for the cover type service.
// It covers predictions, the one-time model load, artifact retrieval and the
// HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Prediction metrics
	Predictions         prometheus.Counter     // Total number of successful predictions
	PredictionFailures  prometheus.Counter     // Total number of failed predict calls
	PredictionLatency   prometheus.Histogram   // Predict latency in seconds
	PredictionCacheHits prometheus.Counter     // Predictions served from the cache
	PredictedClass      *prometheus.CounterVec // Predictions by cover type label

	// Model load metrics
	ModelLoads        *prometheus.CounterVec // Load attempts by outcome (ok, failed)
	ModelLoadDuration prometheus.Histogram   // Time to obtain the model handle
	ModelReady        prometheus.Gauge       // 1 once a model is loaded

	// Artifact metrics
	ArtifactFetchAttempts prometheus.Counter // HTTP attempts made while fetching
	ArtifactCacheHits     prometheus.Counter // Artifacts served from the local store
	ArtifactSize          prometheus.Gauge   // Size of the last obtained artifact

	// HTTP metrics
	HTTPRequests  *prometheus.CounterVec // Requests by route and status code
	WSConnections prometheus.Gauge       // Open websocket connections
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "covertype_predictions_total",
			Help: "Total number of successful predictions",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "covertype_prediction_failures_total",
			Help: "Total number of failed predict calls",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "covertype_prediction_latency_seconds",
			Help:    "Prediction latency in seconds (encode to label)",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		PredictionCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "covertype_prediction_cache_hits_total",
			Help: "Total number of predictions served from the cache",
		}),
		PredictedClass: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "covertype_predicted_class_total",
			Help: "Predictions by cover type",
		}, []string{"cover_type"}),
		ModelLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "covertype_model_loads_total",
			Help: "Model load attempts by outcome",
		}, []string{"outcome"}),
		ModelLoadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "covertype_model_load_duration_seconds",
			Help:    "Time to obtain the model handle in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		ModelReady: factory.NewGauge(prometheus.GaugeOpts{
			Name: "covertype_model_ready",
			Help: "1 when a model is loaded and serving",
		}),
		ArtifactFetchAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "covertype_artifact_fetch_attempts_total",
			Help: "Total number of HTTP attempts made while fetching the model artifact",
		}),
		ArtifactCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "covertype_artifact_cache_hits_total",
			Help: "Total number of artifacts served from the local store",
		}),
		ArtifactSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "covertype_artifact_size_bytes",
			Help: "Size of the last obtained model artifact in bytes",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "covertype_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "covertype_ws_connections",
			Help: "Number of open websocket connections",
		}),
	}
}
