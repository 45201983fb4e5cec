// Package present turns classifier output into the text both front-ends show.
package present

import (
	"fmt"

	"diabetes-risk/internal/ml"
)

// Title is the heading shown by both front-ends.
const Title = "Diabetes Risk Prediction"

// Intro is shown above the form.
const Intro = "Enter the patient's details below to predict the risk of diabetes using a trained " +
	"logistic regression model (based on the Pima Indians Diabetes dataset)."

// Disclaimer is shown under every result.
const Disclaimer = "Note: This is a demonstration tool based on a logistic regression model trained on " +
	"the Pima Indians Diabetes dataset. It is not a substitute for professional medical diagnosis."

// Presentation is the display form of a PredictionResult.
type Presentation struct {
	Label         string  `json:"label"`
	ConfidencePct float64 `json:"confidence_pct"`
	RiskPct       float64 `json:"risk_pct"`
	Positive      bool    `json:"positive"`
}

// Present derives the display fields from r. It is pure.
func Present(r ml.PredictionResult) Presentation {
	return Presentation{
		Label:         r.Label(),
		ConfidencePct: r.Confidence(),
		RiskPct:       r.RiskProbability(),
		Positive:      r.Positive(),
	}
}

// Headline renders "Prediction: <label>".
func (p Presentation) Headline() string {
	return "Prediction: " + p.Label
}

// Summary renders "Confidence: 87.3% (Diabetes risk: 12.7%)".
func (p Presentation) Summary() string {
	return fmt.Sprintf("Confidence: %.1f%% (Diabetes risk: %.1f%%)", p.ConfidencePct, p.RiskPct)
}

// ConfidenceText renders the confidence with one decimal.
func (p Presentation) ConfidenceText() string {
	return fmt.Sprintf("%.1f%%", p.ConfidencePct)
}

// RiskText renders the diabetes risk with one decimal.
func (p Presentation) RiskText() string {
	return fmt.Sprintf("%.1f%%", p.RiskPct)
}

// InvalidInput prefixes a validation message the way the result area shows it.
func InvalidInput(msg string) string {
	return "Invalid Input: " + msg
}

// ErrorOccurred renders an unexpected failure.
func ErrorOccurred(msg string) string {
	return "An error occurred: " + msg
}

// ModelNotFound renders the startup failure message.
func ModelNotFound(path string) string {
	return fmt.Sprintf("Model not found! Please ensure %q is in the app directory.", path)
}
