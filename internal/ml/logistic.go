package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"diabetes-risk/internal/features"
)

const logisticModelType = "logistic_regression"

// LogisticArtifact is the JSON export of a fitted binary logistic
// regression, optionally preceded by a standard scaler.
type LogisticArtifact struct {
	Version      string    `json:"version"`
	ModelType    string    `json:"model_type"`
	FeatureNames []string  `json:"feature_names"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Scaler       *Scaler   `json:"scaler,omitempty"`
	TrainedAt    time.Time `json:"trained_at,omitempty"`
	Dataset      string    `json:"dataset,omitempty"`
}

// Scaler standardises each feature as (x - mean) / scale.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// LogisticModel evaluates a LogisticArtifact in process.
type LogisticModel struct {
	coef      [features.Count]float64
	intercept float64
	mean      [features.Count]float64
	scale     [features.Count]float64
	artifact  LogisticArtifact
}

// LoadLogistic reads and checks a JSON logistic regression artifact.
func LoadLogistic(path string) (*LogisticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ModelNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var a LogisticArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact: %w", err)
	}
	return NewLogistic(a)
}

// NewLogistic validates an artifact and builds the model.
func NewLogistic(a LogisticArtifact) (*LogisticModel, error) {
	if a.ModelType != "" && a.ModelType != logisticModelType {
		return nil, fmt.Errorf("%w: model_type %q", ErrUnsupportedArtifact, a.ModelType)
	}
	if len(a.FeatureNames) > 0 && !features.MatchesNames(a.FeatureNames) {
		return nil, fmt.Errorf("%w: got %v, want %v", ErrFeatureMismatch, a.FeatureNames, features.Names())
	}
	if len(a.Coefficients) != features.Count {
		return nil, fmt.Errorf("%w: expected %d coefficients, got %d", ErrUnsupportedArtifact, features.Count, len(a.Coefficients))
	}

	m := &LogisticModel{intercept: a.Intercept, artifact: a}
	copy(m.coef[:], a.Coefficients)
	for i := range m.scale {
		m.scale[i] = 1
	}

	if a.Scaler != nil {
		if len(a.Scaler.Mean) != features.Count || len(a.Scaler.Scale) != features.Count {
			return nil, fmt.Errorf("%w: scaler must have %d means and scales", ErrUnsupportedArtifact, features.Count)
		}
		for i, s := range a.Scaler.Scale {
			if s == 0 || math.IsNaN(s) {
				return nil, fmt.Errorf("%w: scaler scale %d is %v", ErrUnsupportedArtifact, i, s)
			}
		}
		copy(m.mean[:], a.Scaler.Mean)
		copy(m.scale[:], a.Scaler.Scale)
	}

	return m, nil
}

// Artifact returns the artifact the model was built from.
func (m *LogisticModel) Artifact() LogisticArtifact {
	return m.artifact
}

// Baseline reports the training distribution recorded by the scaler.
func (m *LogisticModel) Baseline() (Baseline, bool) {
	if m.artifact.Scaler == nil {
		return Baseline{}, false
	}
	return Baseline{Mean: m.mean, StdDev: m.scale}, true
}

// DecisionFunction returns the signed distance to the separating hyperplane.
func (m *LogisticModel) DecisionFunction(x features.Vector) float64 {
	z := m.intercept
	for i, v := range x {
		z += m.coef[i] * (v - m.mean[i]) / m.scale[i]
	}
	return z
}

func (m *LogisticModel) Predict(_ context.Context, x features.Vector) (int, error) {
	if m.DecisionFunction(x) > 0 {
		return 1, nil
	}
	return 0, nil
}

func (m *LogisticModel) PredictProba(_ context.Context, x features.Vector) ([2]float64, error) {
	p1 := sigmoid(m.DecisionFunction(x))
	return [2]float64{1 - p1, p1}, nil
}

func (m *LogisticModel) Evaluate(ctx context.Context, x features.Vector) (int, [2]float64, error) {
	probs, _ := m.PredictProba(ctx, x)
	class, _ := m.Predict(ctx, x)
	return class, probs, nil
}

// sigmoid converts a score to a probability without overflowing for large |x|.
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1.0 / (1.0 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1.0 + e)
}
