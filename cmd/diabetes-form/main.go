package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"diabetes-risk/internal/assess"
	"diabetes-risk/internal/cfg"
	"diabetes-risk/internal/common"
	"diabetes-risk/internal/form"
	"diabetes-risk/internal/metrics"
	"diabetes-risk/internal/ml"
	"diabetes-risk/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config load failed:", err)
		os.Exit(1)
	}

	c = cfg.FormLogging(c)
	logCloser, err := cfg.ConfigureLogging(c)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging setup failed:", err)
		os.Exit(1)
	}

	code := run(c)
	logCloser.Close()
	os.Exit(code)
}

func run(c cfg.Settings) int {
	// Nothing scrapes the terminal form, so its metrics stay off the
	// default registry.
	mw := metrics.NewWrapper(metrics.NewWithRegistry(prometheus.NewRegistry()))

	predictor, err := ml.Load(c.ModelPath, ml.Options{
		Backend:    c.ModelBackend,
		ModelURL:   c.ModelURL,
		PythonPath: c.PythonPath,
		Timeout:    c.PredictTimeout,
		Metrics:    mw,
	})
	if err != nil {
		if errors.Is(err, ml.ErrModelNotFound) {
			fmt.Fprintln(os.Stderr, form.RenderModelNotFound(c.ModelPath))
		} else {
			fmt.Fprintln(os.Stderr, "failed to load model:", err)
		}
		log.Error().Err(err).Str("path", c.ModelPath).Msg("Model load failed")
		return 1
	}
	defer predictor.Close()

	opts := []assess.Option{assess.WithMetrics(mw), assess.WithModelInfo(predictor.Info())}
	if c.DataPath != "" {
		store, err := storage.New(c.DataPath)
		if err != nil {
			log.Warn().Err(err).Msg("storage initialization failed, continuing without history")
		} else {
			defer store.Close()
			opts = append(opts, assess.WithHistory(store, c.HistoryLimit))
		}
	}

	if b, ok := predictor.Baseline(); ok && c.DriftWindow > 0 {
		opts = append(opts, assess.WithDrift(ml.NewDriftDetector(b, ml.DriftConfig{WindowSize: c.DriftWindow}, mw)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := form.New(assess.NewService(predictor, opts...), form.Options{
		Accessible: os.Getenv(common.EnvAccessible) == "true",
	})
	if err := app.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		log.Error().Err(err).Msg("Form failed")
		return 1
	}
	return 0
}
