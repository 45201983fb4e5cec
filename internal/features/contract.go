// Package features defines the fixed, ordered feature contract shared by the
// classifier artifact and both input forms, and validates raw user input
// against it.
//
// The order of the contract is the order the artifact was trained with. It
// never changes at runtime; every vector handed to a predictor is laid out in
// this order.
package features

import (
	"fmt"
	"math"
	"strconv"
)

// Count is the number of features the classifier expects.
const Count = 8

// Feature indices in contract order.
const (
	Pregnancies = iota
	Glucose
	BloodPressure
	SkinThickness
	Insulin
	BMI
	DiabetesPedigreeFunction
	Age
)

// FeatureSpec describes one clinical measurement used as classifier input.
type FeatureSpec struct {
	Index int     `json:"index"`
	Name  string  `json:"name"`  // column name used when the artifact was trained
	Label string  `json:"label"` // human readable form label
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Unit  string  `json:"unit"`

	// RangeChecked is false for features that are only subject to the
	// non-negativity rule.
	RangeChecked bool `json:"range_checked"`

	Default float64 `json:"default"`
	Step    float64 `json:"step"`
	Help    string  `json:"help"`
}

// InRange reports whether v lies inside [Min, Max].
func (f FeatureSpec) InRange(v float64) bool {
	return v >= f.Min && v <= f.Max
}

// RangeText renders the accepted interval, e.g. "50 - 400 mg/dL".
func (f FeatureSpec) RangeText() string {
	return formatRange(f.Min, f.Max, f.Unit)
}

// formatRange prints whole bounds as integers unless either bound is
// fractional, in which case both carry at least one decimal ("0.1 - 3.0").
func formatRange(lo, hi float64, unit string) string {
	decimal := lo != math.Trunc(lo) || hi != math.Trunc(hi)
	return fmt.Sprintf("%s - %s %s", formatBound(lo, decimal), formatBound(hi, decimal), unit)
}

func formatBound(v float64, decimal bool) string {
	if decimal && v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var contract = [Count]FeatureSpec{
	{
		Index: Pregnancies, Name: "Pregnancies", Label: "Pregnancies",
		Min: 0, Max: 20, Unit: "count",
		Default: 1, Step: 1,
		Help: "Number of times pregnant (0-20 typical)",
	},
	{
		Index: Glucose, Name: "Glucose", Label: "Glucose (mg/dL)",
		Min: 50, Max: 400, Unit: "mg/dL", RangeChecked: true,
		Default: 100, Step: 1,
		Help: "Plasma glucose concentration (typical 70-200)",
	},
	{
		Index: BloodPressure, Name: "BloodPressure", Label: "Blood Pressure (mmHg)",
		Min: 25, Max: 200, Unit: "mmHg", RangeChecked: true,
		Default: 70, Step: 1,
		Help: "Diastolic blood pressure (typical 60-120)",
	},
	{
		Index: SkinThickness, Name: "SkinThickness", Label: "Skin Thickness (mm)",
		Min: 10, Max: 100, Unit: "mm", RangeChecked: true,
		Default: 20, Step: 1,
		Help: "Triceps skinfold thickness",
	},
	{
		Index: Insulin, Name: "Insulin", Label: "Insulin (mu U/ml)",
		Min: 20, Max: 140, Unit: "mu U/ml", RangeChecked: true,
		Default: 80, Step: 1,
		Help: "2-Hour serum insulin",
	},
	{
		Index: BMI, Name: "BMI", Label: "BMI (kg/m²)",
		Min: 15, Max: 70, Unit: "kg/m²", RangeChecked: true,
		Default: 30, Step: 0.1,
		Help: "Body mass index (typical 18-67)",
	},
	{
		Index: DiabetesPedigreeFunction, Name: "DiabetesPedigreeFunction", Label: "Diabetes Pedigree Function",
		Min: 0.1, Max: 3.0, Unit: "score", RangeChecked: true,
		Default: 0.5, Step: 0.01,
		Help: "Diabetes pedigree score (typical 0.07-2.42)",
	},
	{
		Index: Age, Name: "Age", Label: "Age (years)",
		Min: 10, Max: 120, Unit: "years", RangeChecked: true,
		Default: 30, Step: 1,
		Help: "Age in years",
	},
}

// Contract returns a copy of the ordered feature table.
func Contract() []FeatureSpec {
	out := make([]FeatureSpec, Count)
	copy(out, contract[:])
	return out
}

// Spec returns the feature at index i. It panics if i is out of bounds.
func Spec(i int) FeatureSpec {
	return contract[i]
}

// Names returns the feature names in contract order.
func Names() []string {
	names := make([]string, Count)
	for i, f := range contract {
		names[i] = f.Name
	}
	return names
}

// Lookup finds a feature by its column name.
func Lookup(name string) (FeatureSpec, bool) {
	for _, f := range contract {
		if f.Name == name {
			return f, true
		}
	}
	return FeatureSpec{}, false
}

// Defaults returns the default form values in contract order.
func Defaults() []float64 {
	out := make([]float64, Count)
	for i, f := range contract {
		out[i] = f.Default
	}
	return out
}

// MatchesNames reports whether names equals the contract order exactly.
func MatchesNames(names []string) bool {
	if len(names) != Count {
		return false
	}
	for i, n := range names {
		if contract[i].Name != n {
			return false
		}
	}
	return true
}
