package features

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Vector holds one value per feature in contract order.
type Vector [Count]float64

// Slice returns the vector as a freshly allocated slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, Count)
	copy(out, v[:])
	return out
}

// ErrorKind classifies a validation failure.
type ErrorKind string

const (
	KindEmptyField ErrorKind = "empty_field"
	KindNotNumeric ErrorKind = "not_numeric"
	KindNegative   ErrorKind = "negative"
	KindOutOfRange ErrorKind = "out_of_range"
	KindFieldCount ErrorKind = "field_count"
)

// ValidationError is returned by the validators. Field is empty for
// KindFieldCount.
type ValidationError struct {
	Kind  ErrorKind
	Field string
	Index int
	Min   float64
	Max   float64
	Unit  string
	Got   int // number of fields received, KindFieldCount only
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindEmptyField:
		return fmt.Sprintf("%s is empty", e.Field)
	case KindNotNumeric:
		return fmt.Sprintf("%s must be a number", e.Field)
	case KindNegative:
		return fmt.Sprintf("all values must be non-negative: %s", e.Field)
	case KindOutOfRange:
		return fmt.Sprintf("%s should be between %s", e.Field, formatRange(e.Min, e.Max, e.Unit))
	case KindFieldCount:
		return fmt.Sprintf("expected %d fields, got %d", Count, e.Got)
	default:
		return fmt.Sprintf("invalid %s", e.Field)
	}
}

// Is lets errors.Is match on kind alone, e.g. errors.Is(err, ErrOutOfRange).
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return t.Field == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrEmptyField = &ValidationError{Kind: KindEmptyField}
	ErrNotNumeric = &ValidationError{Kind: KindNotNumeric}
	ErrNegative   = &ValidationError{Kind: KindNegative}
	ErrOutOfRange = &ValidationError{Kind: KindOutOfRange}
	ErrFieldCount = &ValidationError{Kind: KindFieldCount}
)

// AsValidationError unwraps err into a *ValidationError if possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// Validate parses raw form input in contract order. It reports the first
// violation found: empty or non-numeric fields in index order, then negative
// values, then range violations for range checked features.
func Validate(raw []string) (Vector, error) {
	var v Vector
	if len(raw) != Count {
		return v, &ValidationError{Kind: KindFieldCount, Index: -1, Got: len(raw)}
	}

	for i, s := range raw {
		f := contract[i]
		s = strings.TrimSpace(s)
		if s == "" {
			return Vector{}, fieldError(KindEmptyField, f)
		}
		x, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
			return Vector{}, fieldError(KindNotNumeric, f)
		}
		v[i] = x
	}

	if err := checkValues(v); err != nil {
		return Vector{}, err
	}
	return v, nil
}

// ValidateValues applies the numeric rules to already parsed input.
func ValidateValues(values []float64) (Vector, error) {
	var v Vector
	if len(values) != Count {
		return v, &ValidationError{Kind: KindFieldCount, Index: -1, Got: len(values)}
	}
	for i, x := range values {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Vector{}, fieldError(KindNotNumeric, contract[i])
		}
		v[i] = x
	}
	if err := checkValues(v); err != nil {
		return Vector{}, err
	}
	return v, nil
}

// ValidateMap validates input keyed by feature name. Missing keys are
// reported as empty fields; unknown keys are ignored.
func ValidateMap(values map[string]string) (Vector, error) {
	return Validate(Ordered(values))
}

// ValidateNamed validates numeric input keyed by feature name, as sent by the
// JSON API. Missing keys are reported as empty fields; unknown keys are ignored.
func ValidateNamed(values map[string]float64) (Vector, error) {
	ordered := make([]float64, Count)
	for i, f := range contract {
		x, ok := values[f.Name]
		if !ok {
			return Vector{}, fieldError(KindEmptyField, f)
		}
		ordered[i] = x
	}
	return ValidateValues(ordered)
}

// Ordered lays named values out in contract order, using "" for missing names.
func Ordered(values map[string]string) []string {
	raw := make([]string, Count)
	for i, f := range contract {
		raw[i] = values[f.Name]
	}
	return raw
}

// CheckField validates a single raw field in isolation. It is used for
// inline validation while the user is typing.
func CheckField(index int, raw string) error {
	if index < 0 || index >= Count {
		return &ValidationError{Kind: KindFieldCount, Index: -1, Got: index}
	}
	f := contract[index]
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fieldError(KindEmptyField, f)
	}
	x, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
		return fieldError(KindNotNumeric, f)
	}
	if x < 0 {
		return fieldError(KindNegative, f)
	}
	if f.RangeChecked && !f.InRange(x) {
		return fieldError(KindOutOfRange, f)
	}
	return nil
}

func checkValues(v Vector) error {
	for i, x := range v {
		if x < 0 {
			return fieldError(KindNegative, contract[i])
		}
	}
	for i, x := range v {
		f := contract[i]
		if f.RangeChecked && !f.InRange(x) {
			return fieldError(KindOutOfRange, f)
		}
	}
	return nil
}

func fieldError(kind ErrorKind, f FeatureSpec) *ValidationError {
	e := &ValidationError{Kind: kind, Field: f.Name, Index: f.Index}
	if kind == KindOutOfRange {
		e.Min, e.Max, e.Unit = f.Min, f.Max, f.Unit
	}
	return e
}
