// Package ml wraps the pre-trained diabetes classifier behind a small,
// backend-neutral API.
//
// A classifier artifact is loaded once at process start and is read-only
// afterwards. Three backends are supported: a native logistic regression
// artifact evaluated in Go, a Python bridge for joblib artifacts, and a remote
// HTTP inference server. All of them receive the feature vector in the order
// defined by the features package.
package ml

import (
	"context"

	"diabetes-risk/internal/features"
)

// Classifier is the contract every artifact backend satisfies.
// Implementations must be safe for concurrent use and must not mutate their
// state during inference.
type Classifier interface {
	// Predict returns the predicted class, 0 or 1.
	Predict(ctx context.Context, x features.Vector) (int, error)

	// PredictProba returns [p(class 0), p(class 1)].
	PredictProba(ctx context.Context, x features.Vector) ([2]float64, error)
}

// Evaluator is implemented by backends that produce the class and the
// probabilities in a single round trip.
type Evaluator interface {
	Evaluate(ctx context.Context, x features.Vector) (int, [2]float64, error)
}

// MetricsInterface defines metrics methods needed by the predictor
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLLatencyObserve(float64)
	MLModelAgeSet(float64)
	MLPredictionScoresObserve(float64)
	MLTimeoutsInc()
}
