// Package web serves the browser form, the JSON API, live validation over
// WebSocket, health and Prometheus metrics for the diabetes risk service.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"diabetes-risk/internal/assess"
	"diabetes-risk/internal/features"
	"diabetes-risk/internal/metrics"
	"diabetes-risk/internal/ml"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Predictor is the part of *ml.Predictor the web layer uses directly.
type Predictor interface {
	Infer(ctx context.Context, x features.Vector) (ml.PredictionResult, error)
	Info() ml.Info
	Health(ctx context.Context) error
}

// DriftReporter exposes input drift. *ml.DriftDetector implements it.
type DriftReporter interface {
	Report() ml.DriftReport
}

// Config wires a Server.
type Config struct {
	Port         int
	Service      *assess.Service
	Predictor    Predictor
	Metrics      *metrics.MetricsWrapper
	Gatherer     prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	HistoryLimit int                 // upper bound for /api/v1/history
	Drift        DriftReporter       // optional
}

// Server is the HTTP front-end.
type Server struct {
	svc          *assess.Service
	predictor    Predictor
	metrics      *metrics.MetricsWrapper
	gatherer     prometheus.Gatherer
	historyLimit int
	drift        DriftReporter
	page         *template.Template
	started      time.Time

	server    *http.Server
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	isRunning bool
	mu        sync.Mutex
}

// NewServer builds the router and the underlying http.Server.
func NewServer(c Config) (*Server, error) {
	if c.Service == nil || c.Predictor == nil {
		return nil, errors.New("web: service and predictor are required")
	}
	if c.Gatherer == nil {
		c.Gatherer = prometheus.DefaultGatherer
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 50
	}

	page, err := template.New("form").Funcs(template.FuncMap{
		"pct": func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
	}).Parse(formTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse form template: %w", err)
	}

	s := &Server{
		svc:          c.Service,
		predictor:    c.Predictor,
		metrics:      c.Metrics,
		gatherer:     c.Gatherer,
		historyLimit: c.HistoryLimit,
		drift:        c.Drift,
		page:         page,
		started:      time.Now(),
		upgrader:     websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:      make(map[*websocket.Conn]bool),
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", c.Port),
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

// Router returns the HTTP handler with every route registered.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/", s.handleForm).Methods(http.MethodGet)
	r.HandleFunc("/predict", s.handleFormPredict).Methods(http.MethodPost)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/predict", s.handleAPIPredict).Methods(http.MethodPost)
	api.HandleFunc("/classify", s.handleClassify).Methods(http.MethodPost)
	api.HandleFunc("/features", s.handleFeatures).Methods(http.MethodGet)
	api.HandleFunc("/model", s.handleModel).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/drift", s.handleDrift).Methods(http.MethodGet)

	r.HandleFunc("/ws/validate", s.handleValidateSocket).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return r
}

// countError records a failure the web layer handled itself.
func (s *Server) countError() {
	if s.metrics != nil {
		s.metrics.ErrorsTotal().Inc()
	}
}

// Start serves in the background. Errors other than a clean shutdown are
// sent on the returned channel.
func (s *Server) Start() (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil, fmt.Errorf("web server is already running")
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("address", s.server.Addr).Msg("Starting web server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Web server failed")
			errc <- err
		}
		close(errc)
	}()

	s.isRunning = true
	return errc, nil
}

// Shutdown closes live-validation sockets and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.clientsMu.Lock()
	for client := range s.clients {
		client.Close()
	}
	s.clients = make(map[*websocket.Conn]bool)
	s.clientsMu.Unlock()

	if err := s.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown web server")
		return err
	}

	s.isRunning = false
	log.Info().Msg("Web server stopped")
	return nil
}
