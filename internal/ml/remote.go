package ml

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"diabetes-risk/internal/features"

	"github.com/go-resty/resty/v2"
)

// ClassifyPath is the endpoint a remote inference server exposes.
const ClassifyPath = "/api/v1/classify"

// ClassifyRequest is the wire request of the remote backend.
type ClassifyRequest struct {
	Features     []float64 `json:"features"`
	FeatureNames []string  `json:"feature_names"`
	RequestID    string    `json:"request_id,omitempty"`
}

// ClassifyResponse is the wire response of the remote backend.
type ClassifyResponse struct {
	Prediction    int       `json:"prediction"`
	Probabilities []float64 `json:"probabilities"`
	ModelVersion  string    `json:"model_version,omitempty"`
	Error         string    `json:"error,omitempty"`
}

type requestIDKey struct{}

// WithRequestID attaches a request ID that remote calls forward to the server.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request ID stored by WithRequestID.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RemoteClassifier delegates inference to an HTTP server speaking the
// ClassifyRequest/ClassifyResponse protocol.
type RemoteClassifier struct {
	rest *resty.Client
}

// NewRemoteClassifier creates a client for baseURL.
func NewRemoteClassifier(baseURL string, timeout time.Duration) *RemoteClassifier {
	r := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &RemoteClassifier{rest: r}
}

func (c *RemoteClassifier) Predict(ctx context.Context, x features.Vector) (int, error) {
	class, _, err := c.Evaluate(ctx, x)
	return class, err
}

func (c *RemoteClassifier) PredictProba(ctx context.Context, x features.Vector) ([2]float64, error) {
	_, probs, err := c.Evaluate(ctx, x)
	return probs, err
}

func (c *RemoteClassifier) Evaluate(ctx context.Context, x features.Vector) (int, [2]float64, error) {
	var probs [2]float64
	var out ClassifyResponse

	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(ClassifyRequest{
			Features:     x.Slice(),
			FeatureNames: features.Names(),
			RequestID:    RequestIDFrom(ctx),
		}).
		SetResult(&out).
		SetError(&out).
		Post(ClassifyPath)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, probs, fmt.Errorf("remote prediction timeout: %w", err)
		}
		return 0, probs, fmt.Errorf("remote request failed: %w", err)
	}
	if resp.IsError() {
		if out.Error != "" {
			return 0, probs, fmt.Errorf("remote server returned %d: %s", resp.StatusCode(), out.Error)
		}
		return 0, probs, fmt.Errorf("remote server returned %d", resp.StatusCode())
	}
	if len(out.Probabilities) != 2 {
		return 0, probs, fmt.Errorf("expected 2 probabilities, got %d", len(out.Probabilities))
	}

	probs[0], probs[1] = out.Probabilities[0], out.Probabilities[1]
	return out.Prediction, probs, nil
}
