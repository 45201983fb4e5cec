// Package assess is the form → validate → predict → present pipeline shared
// by the web and terminal front-ends. Every recoverable failure is converted
// to a *UserError here, so nothing past a single request sees a Go error.
package assess

import (
	"context"
	"errors"
	"time"

	"diabetes-risk/internal/features"
	"diabetes-risk/internal/ml"
	"diabetes-risk/internal/present"
	"diabetes-risk/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Inferrer is the part of *ml.Predictor the pipeline needs.
type Inferrer interface {
	Infer(ctx context.Context, x features.Vector) (ml.PredictionResult, error)
}

// Recorder receives assessment metrics. *metrics.MetricsWrapper implements it.
type Recorder interface {
	ValidationFailureInc(kind string)
	PredictionLabelInc(label string)
	HistoryWriteInc()
	HistoryErrorInc()
}

// History stores outcomes. *storage.Store implements it.
type History interface {
	Append(record storage.PredictionRecord) error
	Recent(n int) ([]storage.PredictionRecord, error)
	Range(start, end time.Time) ([]storage.PredictionRecord, error)
	Count() (int, error)
	Prune(keep int) (int, error)
}

// DriftObserver watches validated inputs. *ml.DriftDetector implements it.
type DriftObserver interface {
	Observe(x features.Vector)
}

// Outcome is the result of one assessment. Exactly one of Presentation and
// Err is set.
type Outcome struct {
	RequestID    string
	Vector       *features.Vector
	Result       *ml.PredictionResult
	Presentation *present.Presentation
	Err          *UserError
}

// OK reports whether the assessment produced a prediction.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Presentation != nil
}

// Service runs assessments against one predictor. It is safe for concurrent
// use.
type Service struct {
	predictor Inferrer
	metrics   Recorder
	history   History
	keep      int
	drift     DriftObserver
	backend   string
	version   string
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records validation failures and outcome labels.
func WithMetrics(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithHistory stores every successful outcome and keeps at most keep records.
// A keep of zero disables pruning.
func WithHistory(h History, keep int) Option {
	return func(s *Service) {
		s.history = h
		s.keep = keep
	}
}

// WithDrift feeds every validated input vector to d.
func WithDrift(d DriftObserver) Option {
	return func(s *Service) { s.drift = d }
}

// WithModelInfo tags stored records with the backend and artifact version.
func WithModelInfo(info ml.Info) Option {
	return func(s *Service) {
		s.backend = info.Backend
		s.version = info.Version
	}
}

// NewService creates a Service around p.
func NewService(p Inferrer, opts ...Option) *Service {
	s := &Service{predictor: p, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HistoryEnabled reports whether outcomes are being stored.
func (s *Service) HistoryEnabled() bool {
	return s.history != nil
}

// Assess validates raw form input in contract order and, if valid, runs the
// predictor on it.
func (s *Service) Assess(ctx context.Context, raw []string) Outcome {
	return s.run(ctx, func() (features.Vector, error) { return features.Validate(raw) })
}

// AssessValues is Assess for already numeric input.
func (s *Service) AssessValues(ctx context.Context, values []float64) Outcome {
	return s.run(ctx, func() (features.Vector, error) { return features.ValidateValues(values) })
}

// AssessNamed is Assess for numeric input keyed by feature name.
func (s *Service) AssessNamed(ctx context.Context, values map[string]float64) Outcome {
	return s.run(ctx, func() (features.Vector, error) { return features.ValidateNamed(values) })
}

// AssessForm is Assess for form fields keyed by feature name. Missing names
// are treated as empty fields.
func (s *Service) AssessForm(ctx context.Context, values map[string]string) Outcome {
	return s.run(ctx, func() (features.Vector, error) { return features.ValidateMap(values) })
}

// Recent returns up to n stored outcomes, newest first.
func (s *Service) Recent(n int) ([]storage.PredictionRecord, error) {
	if s.history == nil {
		return []storage.PredictionRecord{}, nil
	}
	return s.history.Recent(n)
}

// Between returns the stored outcomes with timestamps in [start, end], oldest
// first.
func (s *Service) Between(start, end time.Time) ([]storage.PredictionRecord, error) {
	if s.history == nil {
		return []storage.PredictionRecord{}, nil
	}
	records, err := s.history.Range(start, end)
	if records == nil && err == nil {
		records = []storage.PredictionRecord{}
	}
	return records, err
}

// HistoryCount returns the number of stored outcomes, 0 without history.
func (s *Service) HistoryCount() (int, error) {
	if s.history == nil {
		return 0, nil
	}
	return s.history.Count()
}

func (s *Service) run(ctx context.Context, validate func() (features.Vector, error)) Outcome {
	out := Outcome{RequestID: RequestIDFrom(ctx)}
	if out.RequestID == "" {
		out.RequestID = uuid.NewString()
	}
	logger := log.With().Str("request_id", out.RequestID).Str("source", SourceFrom(ctx)).Logger()

	x, err := validate()
	if err != nil {
		out.Err = userError(err)
		if s.metrics != nil {
			s.metrics.ValidationFailureInc(string(out.Err.ValidationKind))
		}
		logger.Info().
			Str("kind", string(out.Err.ValidationKind)).
			Str("field", out.Err.Field).
			Msg("input rejected")
		return out
	}
	if s.drift != nil {
		s.drift.Observe(x)
	}

	result, err := s.predictor.Infer(ml.WithRequestID(ctx, out.RequestID), x)
	if err != nil {
		out.Err = userError(err)
		logger.Error().Err(err).Msg("assessment failed")
		return out
	}

	p := present.Present(result)
	out.Vector = &x
	out.Result = &result
	out.Presentation = &p

	if s.metrics != nil {
		s.metrics.PredictionLabelInc(p.Label)
	}
	s.record(ctx, out.RequestID, result, p)

	logger.Info().
		Str("label", p.Label).
		Float64("confidence_pct", p.ConfidencePct).
		Float64("risk_pct", p.RiskPct).
		Msg("assessment complete")
	return out
}

// record appends the outcome to history. Input values are not part of the
// record.
func (s *Service) record(ctx context.Context, requestID string, result ml.PredictionResult, p present.Presentation) {
	if s.history == nil {
		return
	}
	err := s.history.Append(storage.PredictionRecord{
		RequestID:         requestID,
		Timestamp:         s.now().UTC(),
		PredictedClass:    result.PredictedClass,
		Label:             p.Label,
		ProbabilityClass0: result.ProbabilityClass0,
		ProbabilityClass1: result.ProbabilityClass1,
		Backend:           s.backend,
		ModelVersion:      s.version,
		Source:            SourceFrom(ctx),
	})
	if err != nil {
		log.Warn().Err(err).Str("request_id", requestID).Msg("failed to store prediction")
		if s.metrics != nil {
			s.metrics.HistoryErrorInc()
		}
		return
	}
	if s.metrics != nil {
		s.metrics.HistoryWriteInc()
	}
	if s.keep > 0 {
		if _, err := s.history.Prune(s.keep); err != nil {
			log.Warn().Err(err).Msg("failed to prune prediction history")
		}
	}
}

// IsValidation reports whether err came from input validation.
func IsValidation(err error) bool {
	_, ok := features.AsValidationError(err)
	return ok
}

// IsInference reports whether err came from the classifier.
func IsInference(err error) bool {
	var ie *ml.InferenceError
	return errors.As(err, &ie)
}
