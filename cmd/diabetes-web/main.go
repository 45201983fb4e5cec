package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"diabetes-risk/internal/assess"
	"diabetes-risk/internal/cfg"
	"diabetes-risk/internal/metrics"
	"diabetes-risk/internal/ml"
	"diabetes-risk/internal/present"
	"diabetes-risk/internal/storage"
	"diabetes-risk/internal/web"

	"github.com/rs/zerolog/log"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	logCloser, err := cfg.ConfigureLogging(c)
	if err != nil {
		log.Fatal().Err(err).Msg("logging setup failed")
	}
	defer logCloser.Close()

	if err := run(c); err != nil {
		log.Error().Err(err).Msg("diabetes-web stopped")
		logCloser.Close()
		os.Exit(1)
	}
}

func run(c cfg.Settings) error {
	m := metrics.New()
	mw := metrics.NewWrapper(m)

	predictor, err := ml.Load(c.ModelPath, ml.Options{
		Backend:    c.ModelBackend,
		ModelURL:   c.ModelURL,
		PythonPath: c.PythonPath,
		Timeout:    c.PredictTimeout,
		Metrics:    mw,
	})
	if err != nil {
		if errors.Is(err, ml.ErrModelNotFound) {
			fmt.Fprintln(os.Stderr, present.ModelNotFound(c.ModelPath))
		}
		return fmt.Errorf("load model: %w", err)
	}
	defer predictor.Close()

	info := predictor.Info()
	m.SetModelInfo(info.Backend, info.Version)
	log.Info().
		Str("backend", info.Backend).
		Str("version", info.Version).
		Str("path", info.Path).
		Msg("Model loaded")

	opts := []assess.Option{assess.WithMetrics(mw), assess.WithModelInfo(info)}
	if store := initializeStorage(c); store != nil {
		defer store.Close()
		opts = append(opts, assess.WithHistory(store, c.HistoryLimit))
	}
	webCfg := web.Config{
		Port:         c.HTTPPort,
		Predictor:    predictor,
		Metrics:      mw,
		HistoryLimit: c.HistoryLimit,
	}
	if drift := initializeDrift(c, predictor, mw); drift != nil {
		opts = append(opts, assess.WithDrift(drift))
		webCfg.Drift = drift
	}
	webCfg.Service = assess.NewService(predictor, opts...)

	server, err := web.NewServer(webCfg)
	if err != nil {
		return err
	}

	errc, err := server.Start()
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var serveErr error
	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case serveErr = <-errc:
	}

	log.Info().Msg("shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
	}
	return serveErr
}

// initializeDrift starts input drift monitoring when the artifact carries
// training statistics.
func initializeDrift(c cfg.Settings, p *ml.Predictor, mw *metrics.MetricsWrapper) *ml.DriftDetector {
	if c.DriftWindow == 0 {
		return nil
	}
	b, ok := p.Baseline()
	if !ok {
		log.Info().Str("backend", p.Info().Backend).Msg("Artifact has no training statistics, drift monitoring disabled")
		return nil
	}
	return ml.NewDriftDetector(b, ml.DriftConfig{WindowSize: c.DriftWindow}, mw)
}

// initializeStorage opens prediction history when DATA_PATH is set. A store
// that cannot be opened disables history instead of failing startup.
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without history")
		return nil
	}
	log.Info().Str("path", c.DataPath).Msg("Prediction history enabled")
	return store
}
