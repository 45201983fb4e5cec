package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestWrapper(t *testing.T) (*MetricsWrapper, *Metrics, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	return NewWrapper(metrics), metrics, registry
}

func histogramCount(t *testing.T, registry *prometheus.Registry, name string) uint64 {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	var total uint64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			total += m.GetHistogram().GetSampleCount()
		}
	}
	return total
}

func TestNewWrapper(t *testing.T) {
	wrapper, metrics, _ := newTestWrapper(t)

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.Metrics() != metrics {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestMetricsWrapper_MLMethods(t *testing.T) {
	wrapper, metrics, registry := newTestWrapper(t)

	wrapper.MLPredictionsInc()
	if v := testutil.ToFloat64(metrics.MLPredictions); v != 1 {
		t.Errorf("Expected 1 prediction, got %f", v)
	}

	wrapper.MLFailuresInc()
	if v := testutil.ToFloat64(metrics.MLFailures); v != 1 {
		t.Errorf("Expected 1 failure, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.ErrorsTotal); v != 1 {
		t.Errorf("Expected failures to count as errors, got %f", v)
	}

	wrapper.MLTimeoutsInc()
	if v := testutil.ToFloat64(metrics.MLTimeouts); v != 1 {
		t.Errorf("Expected 1 timeout, got %f", v)
	}

	wrapper.MLModelAgeSet(3600.0)
	if v := testutil.ToFloat64(metrics.MLModelAge); v != 3600.0 {
		t.Errorf("Expected model age 3600.0, got %f", v)
	}

	wrapper.MLLatencyObserve(0.25)
	wrapper.MLPredictionScoresObserve(0.75)
	wrapper.MLPredictionScoresObserve(0.15)

	if c := histogramCount(t, registry, "ml_latency_seconds"); c != 1 {
		t.Errorf("Expected 1 latency observation, got %d", c)
	}
	if c := histogramCount(t, registry, "ml_prediction_scores"); c != 2 {
		t.Errorf("Expected 2 score observations, got %d", c)
	}
}

func TestMetricsWrapper_LabelledCounters(t *testing.T) {
	wrapper, metrics, _ := newTestWrapper(t)

	wrapper.PredictionLabelInc("Diabetes")
	wrapper.PredictionLabelInc("No Diabetes")
	wrapper.PredictionLabelInc("No Diabetes")

	if v := testutil.ToFloat64(metrics.PredictionsByLabel.WithLabelValues("No Diabetes")); v != 2 {
		t.Errorf("Expected 2 negative outcomes, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.PredictionsByLabel.WithLabelValues("Diabetes")); v != 1 {
		t.Errorf("Expected 1 positive outcome, got %f", v)
	}

	wrapper.ValidationFailureInc("out_of_range")
	wrapper.ValidationFailureInc("empty_field")
	wrapper.ValidationFailureInc("out_of_range")
	if v := testutil.ToFloat64(metrics.ValidationFailures.WithLabelValues("out_of_range")); v != 2 {
		t.Errorf("Expected 2 out_of_range failures, got %f", v)
	}
	if c := testutil.CollectAndCount(metrics.ValidationFailures); c != 2 {
		t.Errorf("Expected 2 kinds, got %d", c)
	}
}

func TestMetricsWrapper_FeatureDrift(t *testing.T) {
	wrapper, metrics, _ := newTestWrapper(t)

	wrapper.FeatureDriftSet("Glucose", 0.1)
	wrapper.FeatureDriftSet("Glucose", 0.4)
	wrapper.FeatureDriftSet("BMI", 0.05)

	if v := testutil.ToFloat64(metrics.FeatureDrift.WithLabelValues("Glucose")); v != 0.4 {
		t.Errorf("Expected latest Glucose score 0.4, got %f", v)
	}
	if c := testutil.CollectAndCount(metrics.FeatureDrift); c != 2 {
		t.Errorf("Expected 2 features, got %d", c)
	}
}

func TestMetricsWrapper_HTTPAndHistory(t *testing.T) {
	wrapper, metrics, registry := newTestWrapper(t)

	wrapper.ObserveHTTP("/predict", http.StatusOK, 10*time.Millisecond)
	wrapper.ObserveHTTP("/predict", http.StatusOK, 20*time.Millisecond)
	wrapper.ObserveHTTP("/api/v1/predict", http.StatusUnprocessableEntity, time.Millisecond)

	if v := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/predict", "200")); v != 2 {
		t.Errorf("Expected 2 requests, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/api/v1/predict", "422")); v != 1 {
		t.Errorf("Expected 1 rejected API request, got %f", v)
	}
	if c := histogramCount(t, registry, "http_request_duration_seconds"); c != 3 {
		t.Errorf("Expected 3 duration observations, got %d", c)
	}

	wrapper.HistoryWriteInc()
	wrapper.HistoryErrorInc()
	if v := testutil.ToFloat64(metrics.HistoryWrites); v != 1 {
		t.Errorf("Expected 1 history write, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.HistoryErrors); v != 1 {
		t.Errorf("Expected 1 history error, got %f", v)
	}
}

func TestMetricsWrapper_GaugeOperations(t *testing.T) {
	wrapper, metrics, _ := newTestWrapper(t)

	conns := wrapper.WSConnections()
	conns.Add(1)
	conns.Add(1)
	conns.Add(-1)
	if v := testutil.ToFloat64(metrics.WSConnections); v != 1 {
		t.Errorf("Expected 1 open connection, got %f", v)
	}

	conns.Set(5)
	if v := testutil.ToFloat64(metrics.WSConnections); v != 5 {
		t.Errorf("Expected 5 open connections, got %f", v)
	}
}

func TestMetricsWrapper_NilIsNoop(t *testing.T) {
	var wrapper *MetricsWrapper

	wrapper.MLPredictionsInc()
	wrapper.MLFailuresInc()
	wrapper.MLLatencyObserve(1)
	wrapper.FeatureDriftSet("Age", 1)
	wrapper.MLModelAgeSet(1)
	wrapper.MLPredictionScoresObserve(1)
	wrapper.MLTimeoutsInc()
	wrapper.PredictionLabelInc("Diabetes")
	wrapper.ValidationFailureInc("negative")
	wrapper.HistoryWriteInc()
	wrapper.HistoryErrorInc()
	wrapper.ObserveHTTP("/", 200, time.Second)

	if wrapper.Metrics() != nil {
		t.Error("Expected nil metrics from nil wrapper")
	}
}

func TestMetrics_SetModelInfo(t *testing.T) {
	_, metrics, _ := newTestWrapper(t)

	metrics.SetModelInfo("native", "pima-lr-1")
	metrics.SetModelInfo("native", "pima-lr-2")

	if c := testutil.CollectAndCount(metrics.ModelInfo); c != 1 {
		t.Errorf("Expected a single model info series, got %d", c)
	}
	if v := testutil.ToFloat64(metrics.ModelInfo.WithLabelValues("native", "pima-lr-2")); v != 1 {
		t.Errorf("Expected model info value 1, got %f", v)
	}
}

func TestMetrics_ErrorRate(t *testing.T) {
	wrapper, metrics, _ := newTestWrapper(t)

	if rate := metrics.ErrorRate(); rate != 0 {
		t.Errorf("Expected 0 error rate with no traffic, got %f", rate)
	}

	for i := 0; i < 3; i++ {
		wrapper.MLPredictionsInc()
	}
	wrapper.MLFailuresInc()

	if rate := metrics.ErrorRate(); rate != 0.25 {
		t.Errorf("Expected error rate 0.25, got %f", rate)
	}
}

func TestCounterWrapper_DirectUsage(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "Test counter for unit tests",
	})

	wrapper := &CounterWrapper{c: counter}
	wrapper.Inc()
	if v := testutil.ToFloat64(counter); v != 1 {
		t.Errorf("Expected counter value 1, got %f", v)
	}
}

func TestMetricsWrapper_ErrorsTotal(t *testing.T) {
	wrapper, metrics, _ := newTestWrapper(t)

	wrapper.ErrorsTotal().Inc()
	wrapper.ErrorsTotal().Inc()
	if v := testutil.ToFloat64(metrics.ErrorsTotal); v != 2 {
		t.Errorf("Expected errors_total 2, got %f", v)
	}
}
