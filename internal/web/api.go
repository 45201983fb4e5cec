package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"diabetes-risk/internal/assess"
	"diabetes-risk/internal/features"
	"diabetes-risk/internal/ml"
	"diabetes-risk/internal/storage"

	"github.com/rs/zerolog/log"
)

// maxJSONBytes bounds JSON request bodies.
const maxJSONBytes = 64 << 10

// PredictRequest is the body of POST /api/v1/predict. Exactly one of
// Features and Values must be set.
type PredictRequest struct {
	Features map[string]float64 `json:"features,omitempty"`
	Values   []float64          `json:"values,omitempty"`
}

// PredictResponse is the success body of POST /api/v1/predict.
type PredictResponse struct {
	RequestID      string     `json:"request_id"`
	PredictedClass int        `json:"predicted_class"`
	Label          string     `json:"label"`
	Probabilities  [2]float64 `json:"probabilities"`
	ConfidencePct  float64    `json:"confidence_pct"`
	RiskPct        float64    `json:"risk_pct"`
	Summary        string     `json:"summary"`
}

// ErrorResponse is returned with every non-2xx JSON answer.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// HistoryResponse is the body of GET /api/v1/history.
type HistoryResponse struct {
	Enabled bool                       `json:"enabled"`
	Records []storage.PredictionRecord `json:"records"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status         string  `json:"status"`
	Backend        string  `json:"backend"`
	ModelVersion   string  `json:"model_version"`
	HistoryEnabled bool    `json:"history_enabled"`
	HistoryRecords int     `json:"history_records"`
	ErrorRate      float64 `json:"error_rate"` // inference failures / attempts since start
	UptimeSeconds  float64 `json:"uptime_seconds"`
	Error          string  `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

func (s *Server) handleAPIPredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: "bad_request"})
		return
	}

	ctx := assess.WithSource(r.Context(), assess.SourceAPI)
	var out assess.Outcome
	switch {
	case req.Features != nil && req.Values != nil:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "set either features or values, not both", Kind: "bad_request"})
		return
	case req.Features != nil:
		out = s.svc.AssessNamed(ctx, req.Features)
	case req.Values != nil:
		out = s.svc.AssessValues(ctx, req.Values)
	default:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "features or values are required", Kind: "bad_request"})
		return
	}

	if out.Err != nil {
		resp := ErrorResponse{Error: out.Err.Message, Field: out.Err.Field, RequestID: out.RequestID}
		if out.Err.Kind == assess.KindValidation {
			resp.Kind = string(out.Err.ValidationKind)
			writeJSON(w, http.StatusUnprocessableEntity, resp)
			return
		}
		resp.Kind = string(assess.KindInference)
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	p := out.Presentation
	writeJSON(w, http.StatusOK, PredictResponse{
		RequestID:      out.RequestID,
		PredictedClass: out.Result.PredictedClass,
		Label:          p.Label,
		Probabilities:  [2]float64{out.Result.ProbabilityClass0, out.Result.ProbabilityClass1},
		ConfidencePct:  p.ConfidencePct,
		RiskPct:        p.RiskPct,
		Summary:        p.Summary(),
	})
}

// handleClassify speaks the remote backend protocol, so one instance can
// serve as the classifier of another.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req ml.ClassifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ml.ClassifyResponse{Error: err.Error()})
		return
	}
	if len(req.FeatureNames) > 0 && !features.MatchesNames(req.FeatureNames) {
		writeJSON(w, http.StatusBadRequest, ml.ClassifyResponse{Error: ml.ErrFeatureMismatch.Error()})
		return
	}

	x, err := features.ValidateValues(req.Features)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ml.ClassifyResponse{Error: err.Error()})
		return
	}

	ctx := r.Context()
	if req.RequestID != "" {
		ctx = ml.WithRequestID(ctx, req.RequestID)
	}
	result, err := s.predictor.Infer(ctx, x)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ml.ClassifyResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, ml.ClassifyResponse{
		Prediction:    result.PredictedClass,
		Probabilities: []float64{result.ProbabilityClass0, result.ProbabilityClass1},
		ModelVersion:  s.predictor.Info().Version,
	})
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, features.Contract())
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.predictor.Info())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer", Kind: "bad_request"})
			return
		}
		limit = n
	}
	if limit > s.historyLimit {
		limit = s.historyLimit
	}

	q := r.URL.Query()
	var records []storage.PredictionRecord
	var err error
	if q.Get("since") == "" && q.Get("until") == "" {
		records, err = s.svc.Recent(limit)
	} else {
		since, until, perr := parseWindow(q.Get("since"), q.Get("until"))
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: perr.Error(), Kind: "bad_request"})
			return
		}
		records, err = s.svc.Between(since, until)
		records = newestFirst(records, limit)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to read prediction history")
		s.countError()
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to read history", Kind: "storage"})
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Enabled: s.svc.HistoryEnabled(), Records: records})
}

// parseWindow reads the RFC 3339 since/until bounds of a history query.
// since defaults to the Unix epoch and until to now.
func parseWindow(sinceRaw, untilRaw string) (time.Time, time.Time, error) {
	since, until := time.Unix(0, 0).UTC(), time.Now().UTC()
	if sinceRaw != "" {
		t, err := time.Parse(time.RFC3339Nano, sinceRaw)
		if err != nil {
			return since, until, errors.New("since must be an RFC 3339 timestamp")
		}
		since = t
	}
	if untilRaw != "" {
		t, err := time.Parse(time.RFC3339Nano, untilRaw)
		if err != nil {
			return since, until, errors.New("until must be an RFC 3339 timestamp")
		}
		until = t
	}
	if latest := time.Unix(0, math.MaxInt64); until.After(latest) {
		until = latest
	}
	if since.Before(time.Unix(0, 0)) {
		return since, until, errors.New("since must not be before 1970-01-01")
	}
	if until.Before(since) {
		return since, until, errors.New("until must not be before since")
	}
	return since, until, nil
}

// newestFirst reverses oldest-first records and keeps at most limit of the
// newest.
func newestFirst(records []storage.PredictionRecord, limit int) []storage.PredictionRecord {
	if len(records) > limit {
		records = records[len(records)-limit:]
	}
	out := make([]storage.PredictionRecord, len(records))
	for i, r := range records {
		out[len(records)-1-i] = r
	}
	return out
}

func (s *Server) handleDrift(w http.ResponseWriter, r *http.Request) {
	if s.drift == nil {
		writeJSON(w, http.StatusOK, ml.DriftReport{})
		return
	}
	writeJSON(w, http.StatusOK, s.drift.Report())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := s.predictor.Info()
	resp := HealthResponse{
		Status:         "ok",
		Backend:        info.Backend,
		ModelVersion:   info.Version,
		HistoryEnabled: s.svc.HistoryEnabled(),
		UptimeSeconds:  time.Since(s.started).Seconds(),
	}
	if m := s.metrics.Metrics(); m != nil {
		resp.ErrorRate = m.ErrorRate()
	}
	if n, err := s.svc.HistoryCount(); err != nil {
		log.Warn().Err(err).Msg("Failed to count prediction history")
	} else {
		resp.HistoryRecords = n
	}

	status := http.StatusOK
	if err := s.predictor.Health(r.Context()); err != nil {
		resp.Status = "unavailable"
		resp.Error = err.Error()
		status = http.StatusServiceUnavailable
		log.Warn().Err(err).Msg("Health check failed")
	}
	writeJSON(w, status, resp)
}
