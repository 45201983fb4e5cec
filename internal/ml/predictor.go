package ml

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"diabetes-risk/internal/common"
	"diabetes-risk/internal/features"

	"github.com/rs/zerolog/log"
)

// Options configures Load.
type Options struct {
	Backend    string // auto, native, python or remote
	ModelURL   string // remote backend only
	PythonPath string // python backend only; searched when empty
	Timeout    time.Duration
	Metrics    MetricsInterface
}

// Info describes the loaded artifact.
type Info struct {
	Backend      string    `json:"backend"`
	Path         string    `json:"path,omitempty"`
	URL          string    `json:"url,omitempty"`
	Version      string    `json:"version"`
	FeatureNames []string  `json:"feature_names"`
	ModifiedAt   time.Time `json:"modified_at,omitempty"`
	LoadedAt     time.Time `json:"loaded_at"`
}

// Predictor is the immutable handle to a loaded classifier. It is built once
// at startup and passed explicitly to whoever needs inference.
type Predictor struct {
	classifier Classifier
	info       Info
	timeout    time.Duration
	metrics    MetricsInterface
}

// Load opens the artifact at path with the configured backend. It returns an
// error matching ErrModelNotFound when the artifact does not exist.
func Load(path string, opts Options) (*Predictor, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	backend := opts.Backend
	if backend == "" || backend == common.BackendAuto {
		backend = detectBackend(path)
	}

	info := Info{
		Backend:      backend,
		Version:      "unknown",
		FeatureNames: features.Names(),
		LoadedAt:     time.Now(),
	}

	if backend != common.BackendRemote {
		st, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &ModelNotFoundError{Path: path}
			}
			return nil, fmt.Errorf("failed to stat model artifact: %w", err)
		}
		info.Path = path
		info.ModifiedAt = st.ModTime()
	}

	var classifier Classifier
	switch backend {
	case common.BackendNative:
		m, err := LoadLogistic(path)
		if err != nil {
			return nil, err
		}
		if v := m.Artifact().Version; v != "" {
			info.Version = v
		}
		classifier = m

	case common.BackendPython:
		if err := checkSidecar(path, &info); err != nil {
			return nil, err
		}
		c, err := NewPythonClassifier(path, opts.PythonPath, opts.Timeout)
		if err != nil {
			return nil, err
		}
		classifier = c

	case common.BackendRemote:
		if opts.ModelURL == "" {
			return nil, errors.New(common.ErrMsgModelURLRequired)
		}
		info.URL = opts.ModelURL
		classifier = NewRemoteClassifier(opts.ModelURL, opts.Timeout)

	default:
		return nil, fmt.Errorf("%w: no backend for %q", ErrUnsupportedArtifact, path)
	}

	p := New(classifier, info, opts.Timeout, opts.Metrics)

	if p.metrics != nil && !info.ModifiedAt.IsZero() {
		p.metrics.MLModelAgeSet(time.Since(info.ModifiedAt).Seconds())
	}

	log.Info().
		Str("backend", info.Backend).
		Str("model_path", info.Path).
		Str("model_url", info.URL).
		Str("version", info.Version).
		Msg("model loaded")

	return p, nil
}

// New wraps an already constructed classifier.
func New(c Classifier, info Info, timeout time.Duration, metrics MetricsInterface) *Predictor {
	if info.FeatureNames == nil {
		info.FeatureNames = features.Names()
	}
	if info.LoadedAt.IsZero() {
		info.LoadedAt = time.Now()
	}
	return &Predictor{classifier: c, info: info, timeout: timeout, metrics: metrics}
}

// Info returns a description of the loaded artifact.
func (p *Predictor) Info() Info {
	info := p.info
	info.FeatureNames = append([]string(nil), p.info.FeatureNames...)
	return info
}

// Baseline returns the training distribution when the backend exposes one.
func (p *Predictor) Baseline() (Baseline, bool) {
	if p == nil {
		return Baseline{}, false
	}
	if b, ok := p.classifier.(BaselineProvider); ok {
		return b.Baseline()
	}
	return Baseline{}, false
}

// Infer runs the classifier on x. Every failure is returned as an
// *InferenceError; the returned result always satisfies the probability
// invariants documented on PredictionResult.
func (p *Predictor) Infer(ctx context.Context, x features.Vector) (PredictionResult, error) {
	if p == nil || p.classifier == nil {
		return PredictionResult{}, &InferenceError{Backend: "none", Err: errors.New("predictor is not loaded")}
	}

	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.MLLatencyObserve(time.Since(start).Seconds())
		}
	}()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	class, probs, err := p.evaluate(ctx, x)
	if err != nil {
		return PredictionResult{}, p.fail(ctx, err)
	}

	result, corrected, err := newResult(class, probs)
	if err != nil {
		return PredictionResult{}, p.fail(ctx, err)
	}
	if corrected {
		log.Warn().
			Int("reported_class", class).
			Int("argmax_class", result.PredictedClass).
			Float64("p0", result.ProbabilityClass0).
			Float64("p1", result.ProbabilityClass1).
			Str("backend", p.info.Backend).
			Msg("classifier class disagrees with probabilities, using argmax")
	}

	if p.metrics != nil {
		p.metrics.MLPredictionsInc()
		p.metrics.MLPredictionScoresObserve(result.ProbabilityClass1)
	}

	log.Debug().
		Str("backend", p.info.Backend).
		Int("prediction", result.PredictedClass).
		Float64("p1", result.ProbabilityClass1).
		Str("request_id", RequestIDFrom(ctx)).
		Msg("Prediction successful")

	return result, nil
}

// Health runs the classifier once on the contract defaults without touching
// the prediction metrics.
func (p *Predictor) Health(ctx context.Context) error {
	if p == nil || p.classifier == nil {
		return errors.New("predictor is not loaded")
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var x features.Vector
	copy(x[:], features.Defaults())
	class, probs, err := p.evaluate(ctx, x)
	if err != nil {
		return err
	}
	_, _, err = newResult(class, probs)
	return err
}

// Close releases backend resources.
func (p *Predictor) Close() error {
	if c, ok := p.classifier.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (p *Predictor) evaluate(ctx context.Context, x features.Vector) (int, [2]float64, error) {
	if e, ok := p.classifier.(Evaluator); ok {
		return e.Evaluate(ctx, x)
	}
	class, err := p.classifier.Predict(ctx, x)
	if err != nil {
		return 0, [2]float64{}, err
	}
	probs, err := p.classifier.PredictProba(ctx, x)
	return class, probs, err
}

func (p *Predictor) fail(ctx context.Context, err error) error {
	if p.metrics != nil {
		p.metrics.MLFailuresInc()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			p.metrics.MLTimeoutsInc()
		}
	}
	log.Error().Err(err).Str("backend", p.info.Backend).Str("request_id", RequestIDFrom(ctx)).Msg("inference failed")
	return &InferenceError{Backend: p.info.Backend, Err: err}
}

// detectBackend picks a local backend from the artifact extension. The remote
// backend has no artifact and must be selected explicitly.
func detectBackend(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return common.BackendNative
	case ".joblib", ".pkl", ".pickle":
		return common.BackendPython
	}
	return ""
}

// checkSidecar reads optional metadata next to an opaque artifact and rejects
// it when it declares a different feature order.
func checkSidecar(path string, info *Info) error {
	md, err := loadModelMetadata(path)
	if err != nil {
		log.Debug().Err(err).Str("model_path", path).Msg("no model metadata, assuming contract feature order")
		return nil
	}
	if len(md.FeatureNames) > 0 && !features.MatchesNames(md.FeatureNames) {
		return fmt.Errorf("%w: metadata lists %v", ErrFeatureMismatch, md.FeatureNames)
	}
	if md.Version != "" {
		info.Version = md.Version
	}
	return nil
}
