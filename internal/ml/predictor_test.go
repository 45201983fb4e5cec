package ml

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"diabetes-risk/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func endToEndVector(t *testing.T) features.Vector {
	t.Helper()
	v, err := features.Validate([]string{"1", "100", "70", "20", "80", "30.0", "0.5", "30"})
	require.NoError(t, err)
	return v
}

func TestLoad_ModelNotFound(t *testing.T) {
	for _, name := range []string{"missing.json", "missing.joblib", "missing.bin"} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(filepath.Join(t.TempDir(), name), Options{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrModelNotFound))
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, os.WriteFile(path, []byte("opaque"), 0o644))

	_, err := Load(path, Options{})
	assert.True(t, errors.Is(err, ErrUnsupportedArtifact))
}

func TestLoad_NativeArtifact(t *testing.T) {
	metrics := &MockMetrics{}
	path := writeArtifact(t, glucoseOnly())

	p, err := Load(path, Options{Metrics: metrics})
	require.NoError(t, err)
	defer p.Close()

	info := p.Info()
	assert.Equal(t, "native", info.Backend)
	assert.Equal(t, "test-1", info.Version)
	assert.Equal(t, path, info.Path)
	assert.Equal(t, features.Names(), info.FeatureNames)
	assert.False(t, info.ModifiedAt.IsZero())
	assert.GreaterOrEqual(t, metrics.modelAge, 0.0)
}

func TestLoad_RemoteRequiresURL(t *testing.T) {
	_, err := Load("", Options{Backend: "remote"})
	assert.Error(t, err)
}

func TestLoad_PythonSidecarFeatureMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.joblib")
	require.NoError(t, os.WriteFile(path, []byte("opaque"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model_metadata.json"),
		[]byte(`{"version":"x","feature_names":["Age","Glucose"]}`), 0o644))

	_, err := Load(path, Options{})
	assert.True(t, errors.Is(err, ErrFeatureMismatch))
}

func TestInfer_EndToEnd(t *testing.T) {
	p, err := Load(writeArtifact(t, glucoseOnly()), Options{})
	require.NoError(t, err)

	result, err := p.Infer(context.Background(), endToEndVector(t))
	require.NoError(t, err)

	assert.Contains(t, []int{0, 1}, result.PredictedClass)
	assert.InDelta(t, 1.0, result.ProbabilityClass0+result.ProbabilityClass1, ProbabilityTolerance)
	if result.PredictedClass == 1 {
		assert.Equal(t, "Diabetes", result.Label())
	} else {
		assert.Equal(t, "No Diabetes", result.Label())
	}
}

func TestInfer_Deterministic(t *testing.T) {
	p, err := Load(writeArtifact(t, glucoseOnly()), Options{})
	require.NoError(t, err)

	x := vectorWithGlucose(180)
	first, err := p.Infer(context.Background(), x)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := p.Infer(context.Background(), x)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestInfer_PassesVectorInContractOrder(t *testing.T) {
	stub := &StubClassifier{Class: 0, Probs: [2]float64{0.9, 0.1}}
	p := New(stub, Info{Backend: "stub"}, time.Second, nil)

	x := endToEndVector(t)
	_, err := p.Infer(context.Background(), x)
	require.NoError(t, err)
	assert.Equal(t, x, stub.Last())
	assert.Equal(t, 1, stub.Calls())
}

func TestInfer_EnforcesInvariants(t *testing.T) {
	testCases := []struct {
		name      string
		class     int
		probs     [2]float64
		wantClass int
		wantP1    float64
		wantErr   bool
	}{
		{"consistent", 1, [2]float64{0.3, 0.7}, 1, 0.7, false},
		{"class disagrees with argmax", 0, [2]float64{0.2, 0.8}, 1, 0.8, false},
		{"tie goes to class 0", 1, [2]float64{0.5, 0.5}, 0, 0.5, false},
		{"renormalised", 1, [2]float64{1, 3}, 1, 0.75, false},
		{"negative", 1, [2]float64{-0.1, 1.1}, 0, 0, true},
		{"NaN", 1, [2]float64{math.NaN(), 1}, 0, 0, true},
		{"zero sum", 0, [2]float64{0, 0}, 0, 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			metrics := &MockMetrics{}
			p := New(&StubClassifier{Class: tc.class, Probs: tc.probs}, Info{Backend: "stub"}, time.Second, metrics)

			result, err := p.Infer(context.Background(), endToEndVector(t))
			if tc.wantErr {
				require.Error(t, err)
				var ie *InferenceError
				assert.True(t, errors.As(err, &ie))
				assert.Equal(t, 1, metrics.failures)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantClass, result.PredictedClass)
			assert.InDelta(t, tc.wantP1, result.ProbabilityClass1, 1e-12)
			assert.InDelta(t, 1.0, result.ProbabilityClass0+result.ProbabilityClass1, ProbabilityTolerance)
			assert.Equal(t, 1, metrics.predictions)
			assert.Equal(t, []float64{result.ProbabilityClass1}, metrics.predictionScores)
		})
	}
}

func TestInfer_ClassifierError(t *testing.T) {
	metrics := &MockMetrics{}
	cause := errors.New("boom")
	p := New(&StubClassifier{Err: cause}, Info{Backend: "stub"}, time.Second, metrics)

	_, err := p.Infer(context.Background(), endToEndVector(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, metrics.failures)
	assert.Equal(t, 0, metrics.predictions)
	assert.Equal(t, 1, metrics.latencyCount)
}

func TestInfer_Timeout(t *testing.T) {
	metrics := &MockMetrics{}
	p := New(&StubClassifier{Block: true}, Info{Backend: "stub"}, 20*time.Millisecond, metrics)

	_, err := p.Infer(context.Background(), endToEndVector(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, metrics.timeouts)
}

func TestInfer_NilPredictor(t *testing.T) {
	var p *Predictor
	_, err := p.Infer(context.Background(), features.Vector{})
	var ie *InferenceError
	assert.True(t, errors.As(err, &ie))
}

func TestInfer_ConcurrentUse(t *testing.T) {
	p, err := Load(writeArtifact(t, glucoseOnly()), Options{})
	require.NoError(t, err)

	want, err := p.Infer(context.Background(), vectorWithGlucose(150))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := p.Infer(context.Background(), vectorWithGlucose(150))
			if err != nil {
				errs <- err
				return
			}
			if got != want {
				errs <- errors.New("concurrent result differs")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestPredictionResult_Derived(t *testing.T) {
	r := PredictionResult{PredictedClass: 1, ProbabilityClass0: 0.2, ProbabilityClass1: 0.8}
	assert.True(t, r.Positive())
	assert.Equal(t, "Diabetes", r.Label())
	assert.InDelta(t, 80.0, r.Confidence(), 1e-9)
	assert.InDelta(t, 80.0, r.RiskProbability(), 1e-9)

	r = PredictionResult{PredictedClass: 0, ProbabilityClass0: 0.9, ProbabilityClass1: 0.1}
	assert.Equal(t, "No Diabetes", r.Label())
	assert.InDelta(t, 90.0, r.Confidence(), 1e-9)
	assert.InDelta(t, 10.0, r.RiskProbability(), 1e-9)
}

func TestDetectBackend(t *testing.T) {
	assert.Equal(t, "native", detectBackend("m.JSON"))
	assert.Equal(t, "python", detectBackend("lr_final_for_diabetes.joblib"))
	assert.Equal(t, "python", detectBackend("m.pkl"))
	assert.Equal(t, "", detectBackend(""))
	assert.Equal(t, "", detectBackend("m.onnx"))
}

func TestLoad_AutoNeverSelectsRemote(t *testing.T) {
	_, err := Load("", Options{ModelURL: "http://127.0.0.1:1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelNotFound), "auto with no artifact is a missing model, got %v", err)
}

func TestPredictor_Health(t *testing.T) {
	metrics := &MockMetrics{}
	p := New(&StubClassifier{Probs: [2]float64{0.7, 0.3}}, Info{Backend: "stub"}, time.Second, metrics)
	assert.NoError(t, p.Health(context.Background()))
	assert.Equal(t, 0, metrics.predictions)

	broken := New(&StubClassifier{Probs: [2]float64{0, 0}}, Info{Backend: "stub"}, time.Second, nil)
	assert.Error(t, broken.Health(context.Background()))

	var nilPredictor *Predictor
	assert.Error(t, nilPredictor.Health(context.Background()))
}
