package ml

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"diabetes-risk/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// glucoseOnly has a single non-zero coefficient so outputs are easy to derive.
func glucoseOnly() LogisticArtifact {
	coef := make([]float64, features.Count)
	coef[features.Glucose] = 0.05
	return LogisticArtifact{
		Version:      "test-1",
		ModelType:    "logistic_regression",
		FeatureNames: features.Names(),
		Coefficients: coef,
		Intercept:    -5,
	}
}

func vectorWithGlucose(g float64) features.Vector {
	var v features.Vector
	copy(v[:], features.Defaults())
	v[features.Glucose] = g
	return v
}

func writeArtifact(t *testing.T, a LogisticArtifact) string {
	t.Helper()
	data, err := json.Marshal(a)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLogistic_KnownOutputs(t *testing.T) {
	m, err := NewLogistic(glucoseOnly())
	require.NoError(t, err)
	ctx := context.Background()

	testCases := []struct {
		name    string
		glucose float64
		class   int
		p1      float64
	}{
		{"on the boundary", 100, 0, 0.5},
		{"above", 140, 1, 1 / (1 + math.Exp(-2))},
		{"below", 60, 0, 1 / (1 + math.Exp(2))},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			x := vectorWithGlucose(tc.glucose)
			class, err := m.Predict(ctx, x)
			require.NoError(t, err)
			assert.Equal(t, tc.class, class)

			probs, err := m.PredictProba(ctx, x)
			require.NoError(t, err)
			assert.InDelta(t, tc.p1, probs[1], 1e-12)
			assert.InDelta(t, 1.0, probs[0]+probs[1], ProbabilityTolerance)
		})
	}
}

func TestLogistic_Scaler(t *testing.T) {
	a := glucoseOnly()
	a.Coefficients[features.Glucose] = 1
	a.Intercept = 0
	a.Scaler = &Scaler{
		Mean:  []float64{0, 120, 0, 0, 0, 0, 0, 0},
		Scale: []float64{1, 20, 1, 1, 1, 1, 1, 1},
	}
	m, err := NewLogistic(a)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, m.DecisionFunction(vectorWithGlucose(140)), 1e-12)
	assert.InDelta(t, -1.0, m.DecisionFunction(vectorWithGlucose(100)), 1e-12)
}

func TestLogistic_Rejects(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(a *LogisticArtifact)
		want   error
	}{
		{"wrong model type", func(a *LogisticArtifact) { a.ModelType = "random_forest" }, ErrUnsupportedArtifact},
		{"short coefficients", func(a *LogisticArtifact) { a.Coefficients = a.Coefficients[:7] }, ErrUnsupportedArtifact},
		{"feature order", func(a *LogisticArtifact) {
			a.FeatureNames[0], a.FeatureNames[7] = a.FeatureNames[7], a.FeatureNames[0]
		}, ErrFeatureMismatch},
		{"zero scale", func(a *LogisticArtifact) {
			a.Scaler = &Scaler{Mean: make([]float64, 8), Scale: make([]float64, 8)}
		}, ErrUnsupportedArtifact},
		{"short scaler", func(a *LogisticArtifact) {
			a.Scaler = &Scaler{Mean: make([]float64, 3), Scale: make([]float64, 3)}
		}, ErrUnsupportedArtifact},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := glucoseOnly()
			tc.mutate(&a)
			_, err := NewLogistic(a)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestLogistic_ExtremeScoresStayFinite(t *testing.T) {
	a := glucoseOnly()
	a.Coefficients[features.Glucose] = 100
	m, err := NewLogistic(a)
	require.NoError(t, err)

	for _, g := range []float64{50, 400} {
		probs, _ := m.PredictProba(context.Background(), vectorWithGlucose(g))
		assert.False(t, math.IsNaN(probs[0]) || math.IsNaN(probs[1]))
		assert.InDelta(t, 1.0, probs[0]+probs[1], ProbabilityTolerance)
	}
}

func TestLoadLogistic(t *testing.T) {
	path := writeArtifact(t, glucoseOnly())
	m, err := LoadLogistic(path)
	require.NoError(t, err)
	assert.Equal(t, "test-1", m.Artifact().Version)

	_, err = LoadLogistic(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.Is(err, ErrModelNotFound))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = LoadLogistic(bad)
	assert.Error(t, err)
}

func TestLoadLogistic_ShippedArtifact(t *testing.T) {
	path := filepath.Join("..", "..", "models", "lr_final_for_diabetes.json")
	if _, err := os.Stat(path); err != nil {
		t.Skip("shipped model artifact not present")
	}
	m, err := LoadLogistic(path)
	require.NoError(t, err)

	// Higher glucose must not lower the risk for this model.
	low, _ := m.PredictProba(context.Background(), vectorWithGlucose(80))
	high, _ := m.PredictProba(context.Background(), vectorWithGlucose(250))
	assert.Greater(t, high[1], low[1])
}
