package ml

import (
	"fmt"
	"math"

	"diabetes-risk/internal/common"
)

// ProbabilityTolerance bounds how far p0+p1 may drift from 1.
const ProbabilityTolerance = 1e-6

// PredictionResult is the classifier output for one input vector.
type PredictionResult struct {
	PredictedClass    int     `json:"predicted_class"`
	ProbabilityClass0 float64 `json:"probability_class0"`
	ProbabilityClass1 float64 `json:"probability_class1"`
}

// Positive reports whether the diabetic class was predicted.
func (r PredictionResult) Positive() bool {
	return r.PredictedClass == 1
}

// Label is "Diabetes" for class 1 and "No Diabetes" otherwise.
func (r PredictionResult) Label() string {
	if r.Positive() {
		return common.LabelPositive
	}
	return common.LabelNegative
}

// Confidence is the probability of the predicted class as a percentage.
func (r PredictionResult) Confidence() float64 {
	return math.Max(r.ProbabilityClass0, r.ProbabilityClass1) * 100
}

// RiskProbability is the probability of the diabetic class as a percentage.
func (r PredictionResult) RiskProbability() float64 {
	return r.ProbabilityClass1 * 100
}

// newResult builds a result that satisfies the probability invariants:
// both probabilities are finite and non-negative, they sum to 1 within
// ProbabilityTolerance, and the class is the argmax with ties going to 0.
// A pair with a positive sum that is off by more than the tolerance is
// renormalised. The second return value reports whether the reported class
// had to be corrected.
func newResult(class int, probs [2]float64) (PredictionResult, bool, error) {
	for i, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return PredictionResult{}, false, fmt.Errorf("invalid probability %d: %v", i, p)
		}
	}

	sum := probs[0] + probs[1]
	if sum <= 0 {
		return PredictionResult{}, false, fmt.Errorf("probabilities sum to %v", sum)
	}
	if math.Abs(sum-1) > ProbabilityTolerance {
		probs[0] /= sum
		probs[1] /= sum
	}

	argmax := 0
	if probs[1] > probs[0] {
		argmax = 1
	}

	return PredictionResult{
		PredictedClass:    argmax,
		ProbabilityClass0: probs[0],
		ProbabilityClass1: probs[1],
	}, class != argmax, nil
}
