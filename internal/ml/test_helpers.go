package ml

import (
	"context"
	"sync"

	"diabetes-risk/internal/features"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu               sync.Mutex
	predictions      int
	failures         int
	latencySum       float64
	latencyCount     int
	timeouts         int
	modelAge         float64
	predictionScores []float64
}

func (m *MockMetrics) MLPredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) MLFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) MLLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
	m.latencyCount++
}

func (m *MockMetrics) MLModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) MLPredictionScoresObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionScores = append(m.predictionScores, v)
}

func (m *MockMetrics) MLTimeoutsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts++
}

// StubClassifier returns canned outputs. It only implements Classifier, so
// the predictor exercises the two-call path.
type StubClassifier struct {
	Class int
	Probs [2]float64
	Err   error
	Block bool // wait for ctx cancellation before answering

	mu    sync.Mutex
	calls int
	last  features.Vector
}

func (s *StubClassifier) Predict(ctx context.Context, x features.Vector) (int, error) {
	s.mu.Lock()
	s.calls++
	s.last = x
	s.mu.Unlock()

	if s.Block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return s.Class, s.Err
}

func (s *StubClassifier) PredictProba(ctx context.Context, x features.Vector) ([2]float64, error) {
	return s.Probs, s.Err
}

// Calls returns how many times Predict was invoked.
func (s *StubClassifier) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Last returns the most recent vector passed to Predict.
func (s *StubClassifier) Last() features.Vector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
