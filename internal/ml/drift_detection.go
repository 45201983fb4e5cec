package ml

import (
	"math"
	"sync"
	"time"

	"diabetes-risk/internal/features"

	"github.com/rs/zerolog/log"
)

// Drift detection defaults.
const (
	DefaultDriftWindow     = 200
	DefaultDriftMinSamples = 30
	DefaultDriftThreshold  = 0.25
)

// Baseline is the per-feature distribution the artifact was trained on.
type Baseline struct {
	Mean   features.Vector `json:"mean"`
	StdDev features.Vector `json:"std_dev"`
}

// BaselineProvider is implemented by classifiers that know their training
// distribution.
type BaselineProvider interface {
	Baseline() (Baseline, bool)
}

// DriftGauge receives the latest score per feature.
type DriftGauge interface {
	FeatureDriftSet(feature string, score float64)
}

// DriftConfig configures a DriftDetector. Zero values select the defaults.
type DriftConfig struct {
	WindowSize int
	MinSamples int
	Threshold  float64
}

// FeatureDrift compares the recent inputs of one feature with the baseline.
type FeatureDrift struct {
	Feature        string  `json:"feature"`
	BaselineMean   float64 `json:"baseline_mean"`
	BaselineStdDev float64 `json:"baseline_std_dev"`
	CurrentMean    float64 `json:"current_mean"`
	CurrentStdDev  float64 `json:"current_std_dev"`
	Score          float64 `json:"score"`
	Drifted        bool    `json:"drifted"`
}

// DriftReport is a snapshot of the detector.
type DriftReport struct {
	Enabled   bool           `json:"enabled"`
	Samples   int            `json:"samples"`
	Ready     bool           `json:"ready"`
	Threshold float64        `json:"threshold"`
	Features  []FeatureDrift `json:"features,omitempty"`
	UpdatedAt time.Time      `json:"updated_at,omitempty"`
}

// DriftDetector keeps a sliding window of validated input vectors in memory
// and scores how far each feature has moved from the training baseline.
// Vectors are never written anywhere. It is safe for concurrent use.
type DriftDetector struct {
	mu        sync.RWMutex
	baseline  Baseline
	cfg       DriftConfig
	window    []features.Vector
	next      int
	drifted   [features.Count]bool
	scores    [features.Count]float64
	gauge     DriftGauge
	updatedAt time.Time
}

// NewDriftDetector creates a detector against b. gauge may be nil.
func NewDriftDetector(b Baseline, cfg DriftConfig, gauge DriftGauge) *DriftDetector {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultDriftWindow
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultDriftMinSamples
	}
	if cfg.MinSamples > cfg.WindowSize {
		cfg.MinSamples = cfg.WindowSize
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultDriftThreshold
	}
	return &DriftDetector{
		baseline: b,
		cfg:      cfg,
		window:   make([]features.Vector, 0, cfg.WindowSize),
		gauge:    gauge,
	}
}

// Observe adds x to the window and rescores once enough samples exist.
func (d *DriftDetector) Observe(x features.Vector) {
	if d == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.window) < d.cfg.WindowSize {
		d.window = append(d.window, x)
	} else {
		d.window[d.next] = x
	}
	d.next = (d.next + 1) % d.cfg.WindowSize
	d.updatedAt = time.Now()

	if len(d.window) < d.cfg.MinSamples {
		return
	}

	mean, std := d.moments()
	for i := 0; i < features.Count; i++ {
		score := statisticalMomentsScore(d.baseline.Mean[i], d.baseline.StdDev[i], mean[i], std[i])
		d.scores[i] = score
		if d.gauge != nil {
			d.gauge.FeatureDriftSet(features.Spec(i).Name, score)
		}

		drifted := score > d.cfg.Threshold
		if drifted && !d.drifted[i] {
			log.Warn().
				Str("feature", features.Spec(i).Name).
				Float64("score", score).
				Float64("baseline_mean", d.baseline.Mean[i]).
				Float64("current_mean", mean[i]).
				Msg("input drift detected")
		} else if !drifted && d.drifted[i] {
			log.Info().Str("feature", features.Spec(i).Name).Float64("score", score).Msg("input drift cleared")
		}
		d.drifted[i] = drifted
	}
}

// Report returns the current per-feature scores.
func (d *DriftDetector) Report() DriftReport {
	if d == nil {
		return DriftReport{}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	r := DriftReport{
		Enabled:   true,
		Samples:   len(d.window),
		Ready:     len(d.window) >= d.cfg.MinSamples,
		Threshold: d.cfg.Threshold,
		UpdatedAt: d.updatedAt,
	}
	if !r.Ready {
		return r
	}

	mean, std := d.moments()
	r.Features = make([]FeatureDrift, features.Count)
	for i := range r.Features {
		r.Features[i] = FeatureDrift{
			Feature:        features.Spec(i).Name,
			BaselineMean:   d.baseline.Mean[i],
			BaselineStdDev: d.baseline.StdDev[i],
			CurrentMean:    mean[i],
			CurrentStdDev:  std[i],
			Score:          d.scores[i],
			Drifted:        d.drifted[i],
		}
	}
	return r
}

// Reset drops the window and keeps the baseline.
func (d *DriftDetector) Reset() {
	if d == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.window = d.window[:0]
	d.next = 0
	d.drifted = [features.Count]bool{}
	d.scores = [features.Count]float64{}
}

// moments returns the population mean and standard deviation of the window.
// Callers hold d.mu.
func (d *DriftDetector) moments() (mean, std features.Vector) {
	n := float64(len(d.window))
	for _, x := range d.window {
		for i, v := range x {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= n
	}
	for _, x := range d.window {
		for i, v := range x {
			diff := v - mean[i]
			std[i] += diff * diff
		}
	}
	for i := range std {
		std[i] = math.Sqrt(std[i] / n)
	}
	return mean, std
}

// statisticalMomentsScore averages the normalised shift of mean and spread.
func statisticalMomentsScore(baseMean, baseStd, curMean, curStd float64) float64 {
	meanShift := math.Abs(baseMean-curMean) / (1 + math.Abs(baseMean))
	stdShift := math.Abs(baseStd-curStd) / (1 + baseStd)
	return (meanShift + stdShift) / 2
}
