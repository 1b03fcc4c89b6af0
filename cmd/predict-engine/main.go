package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miradorstack/mirador-predict/internal/api"
	"github.com/miradorstack/mirador-predict/internal/config"
	"github.com/miradorstack/mirador-predict/internal/engine"
	"github.com/miradorstack/mirador-predict/internal/learning"
	"github.com/miradorstack/mirador-predict/internal/metrics"
	"github.com/miradorstack/mirador-predict/internal/repo"
	"github.com/miradorstack/mirador-predict/internal/services"
	"github.com/miradorstack/mirador-predict/internal/utils"
)

type modelStore interface {
	learning.Storage
	io.Closer
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting mirador-predict", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	store := openModelStore(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	learned, err := engine.LoadModels(ctx, cfg.Models, store, logger)
	if err != nil {
		logger.Error("failed to load models", slog.Any("error", err))
		os.Exit(1)
	}

	ruleEngine, err := engine.NewRuleEngine(cfg.Rules.Path, logger)
	if err != nil {
		logger.Error("failed to load rule pack", slog.Any("error", err))
		os.Exit(1)
	}

	predictor := engine.New(logger, cfg.Predictive, engine.Dependencies{
		Models:  learned,
		Rules:   ruleEngine,
		Storage: store,
	})
	defer func() {
		if err := predictor.Close(); err != nil {
			logger.Warn("engine close", slog.Any("error", err))
		}
	}()

	if core := cfg.Clients.Core; core.BaseURL != "" && len(core.Backfill) > 0 {
		client := repo.NewCoreMetricsClient(core.BaseURL, core.MetricsPath, core.Timeout)
		recorded := predictor.Backfill(ctx, client, core.Source, core.Backfill, core.Lookback)
		logger.Info("history backfill complete", slog.Int("points", recorded))
	}

	predictService := services.NewPredictService(logger, predictor)

	server, err := api.NewServerWithLogger(cfg.Server, predictService, logger)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("mirador-predict stopped", slog.Duration("p95_latency", predictService.LatencyP95()))
}

// openModelStore opens the configured snapshot backend. When it cannot be
// opened the failure is logged and nil is returned, so every model starts
// untrained and predictions fall back to heuristics.
func openModelStore(cfg *config.Config, logger *slog.Logger) modelStore {
	store, err := dialModelStore(cfg)
	if err != nil {
		logger.Warn("model storage unavailable, models start untrained",
			slog.String("backend", cfg.Storage.Backend),
			slog.String("path", cfg.Storage.Path),
			slog.Any("error", err))
		return nil
	}
	return store
}

// dialModelStore selects the snapshot backend. Per-model storage paths only
// apply to the file backend; bolt keeps every model in one database.
func dialModelStore(cfg *config.Config) (modelStore, error) {
	switch cfg.Storage.Backend {
	case config.StorageBolt:
		store, err := repo.OpenBoltModelStore(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageFile, "":
		store := repo.NewFileModelStore(cfg.Storage.Path)
		for name, def := range cfg.Models {
			if def.StoragePath != "" {
				store.SetPath(name, def.StoragePath)
			}
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
}
