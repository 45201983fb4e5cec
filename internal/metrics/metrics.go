// Package metrics provides Prometheus metrics collection for the diabetes risk
// service. It defines the inference, validation, HTTP and history metrics that
// are exposed via the /metrics endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Inference metrics
	MLPredictions      prometheus.Counter   // Total number of successful predictions
	MLFailures         prometheus.Counter   // Total number of inference failures
	MLModelAge         prometheus.Gauge     // Age of the loaded artifact in seconds
	MLLatency          prometheus.Histogram // Inference latency in seconds
	MLPredictionScores prometheus.Histogram // Distribution of class-1 probabilities
	MLTimeouts         prometheus.Counter   // Total number of inference timeouts
	ModelInfo          *prometheus.GaugeVec // Constant 1, labelled by backend and version
	FeatureDrift       *prometheus.GaugeVec // Input drift score per feature

	// Assessment metrics
	PredictionsByLabel *prometheus.CounterVec // Outcomes by displayed label
	ValidationFailures *prometheus.CounterVec // Rejected submissions by error kind

	// Transport metrics
	HTTPRequests  *prometheus.CounterVec   // Requests by route and status code
	HTTPDuration  *prometheus.HistogramVec // Request duration by route
	WSConnections prometheus.Gauge         // Open live-validation sockets

	// History metrics
	HistoryWrites prometheus.Counter // Records appended to the history store
	HistoryErrors prometheus.Counter // Failed history writes

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered

	gatherer prometheus.Gatherer
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
// When the registerer is also a Gatherer it is used by ErrorRate.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	m := &Metrics{
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of successful predictions",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of inference failures",
		}),
		MLModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the loaded model artifact in seconds",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "Inference latency in seconds (end-to-end)",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		MLPredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_prediction_scores",
			Help:    "Distribution of predicted diabetes probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		MLTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_timeouts_total",
			Help: "Total number of inference timeouts",
		}),
		ModelInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ml_model_info",
			Help: "Loaded model artifact, value is always 1",
		}, []string{"backend", "version"}),
		FeatureDrift: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ml_feature_drift_score",
			Help: "Shift of recent inputs from the training distribution per feature",
		}, []string{"feature"}),
		PredictionsByLabel: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "predictions_by_label_total",
			Help: "Total number of predictions by displayed label",
		}, []string{"label"}),
		ValidationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "validation_failures_total",
			Help: "Total number of rejected submissions by error kind",
		}, []string{"kind"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Number of open live-validation WebSocket connections",
		}),
		HistoryWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "history_writes_total",
			Help: "Total number of prediction records stored",
		}),
		HistoryErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "history_errors_total",
			Help: "Total number of failed prediction record writes",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
	if g, ok := registerer.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m
}

// SetModelInfo publishes the loaded artifact as a labelled constant gauge.
func (m *Metrics) SetModelInfo(backend, version string) {
	m.ModelInfo.Reset()
	m.ModelInfo.WithLabelValues(backend, version).Set(1)
}

// ErrorRate returns the ratio of inference failures to inference attempts,
// or 0 if nothing has been recorded yet.
func (m *Metrics) ErrorRate() float64 {
	var predictions, failures float64

	metricFamilies, err := m.gatherer.Gather()
	if err != nil {
		return 0
	}

	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "ml_predictions_total":
			for _, metric := range mf.Metric {
				predictions = metric.GetCounter().GetValue()
			}
		case "ml_failures_total":
			for _, metric := range mf.Metric {
				failures = metric.GetCounter().GetValue()
			}
		}
	}

	total := predictions + failures
	if total == 0 {
		return 0
	}
	return failures / total
}
