package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Interfaces for metrics to avoid circular imports
type MetricsCounter interface {
	Inc()
}

type MetricsGauge interface {
	Set(float64)
	Add(float64)
}

// MetricsWrapper adapts Metrics to the narrow recorder interfaces used by the
// predictor, the assessment service and the web layer. A nil wrapper is a
// valid no-op recorder.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

// Metrics returns the underlying collectors.
func (w *MetricsWrapper) Metrics() *Metrics {
	if w == nil {
		return nil
	}
	return w.m
}

func (w *MetricsWrapper) MLPredictionsInc() {
	if w == nil {
		return
	}
	w.m.MLPredictions.Inc()
}

func (w *MetricsWrapper) MLFailuresInc() {
	if w == nil {
		return
	}
	w.m.MLFailures.Inc()
	w.m.ErrorsTotal.Inc()
}

func (w *MetricsWrapper) MLLatencyObserve(seconds float64) {
	if w == nil {
		return
	}
	w.m.MLLatency.Observe(seconds)
}

func (w *MetricsWrapper) MLModelAgeSet(seconds float64) {
	if w == nil {
		return
	}
	w.m.MLModelAge.Set(seconds)
}

func (w *MetricsWrapper) MLPredictionScoresObserve(p float64) {
	if w == nil {
		return
	}
	w.m.MLPredictionScores.Observe(p)
}

func (w *MetricsWrapper) MLTimeoutsInc() {
	if w == nil {
		return
	}
	w.m.MLTimeouts.Inc()
}

// FeatureDriftSet publishes the latest drift score of one feature.
func (w *MetricsWrapper) FeatureDriftSet(feature string, score float64) {
	if w == nil {
		return
	}
	w.m.FeatureDrift.WithLabelValues(feature).Set(score)
}

// PredictionLabelInc counts an outcome shown to the user.
func (w *MetricsWrapper) PredictionLabelInc(label string) {
	if w == nil {
		return
	}
	w.m.PredictionsByLabel.WithLabelValues(label).Inc()
}

// ValidationFailureInc counts a rejected submission by error kind.
func (w *MetricsWrapper) ValidationFailureInc(kind string) {
	if w == nil {
		return
	}
	w.m.ValidationFailures.WithLabelValues(kind).Inc()
}

func (w *MetricsWrapper) HistoryWriteInc() {
	if w == nil {
		return
	}
	w.m.HistoryWrites.Inc()
}

func (w *MetricsWrapper) HistoryErrorInc() {
	if w == nil {
		return
	}
	w.m.HistoryErrors.Inc()
	w.m.ErrorsTotal.Inc()
}

// ObserveHTTP records one served request.
func (w *MetricsWrapper) ObserveHTTP(route string, code int, d time.Duration) {
	if w == nil {
		return
	}
	w.m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	w.m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (w *MetricsWrapper) WSConnections() MetricsGauge {
	return &GaugeWrapper{w.m.WSConnections}
}

func (w *MetricsWrapper) ErrorsTotal() MetricsCounter {
	return &CounterWrapper{w.m.ErrorsTotal}
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}

type GaugeWrapper struct {
	g prometheus.Gauge
}

func (gw *GaugeWrapper) Set(v float64) {
	gw.g.Set(v)
}

func (gw *GaugeWrapper) Add(v float64) {
	gw.g.Add(v)
}
