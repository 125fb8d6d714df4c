package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/renewgrid/sitescout/internal/adapter/earthengine"
	httpadapter "github.com/renewgrid/sitescout/internal/adapter/http"
	kafkaadapter "github.com/renewgrid/sitescout/internal/adapter/kafka"
	"github.com/renewgrid/sitescout/internal/config"
	"github.com/renewgrid/sitescout/internal/observability"
	"github.com/renewgrid/sitescout/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	client := earthengine.NewClient(earthengine.Config{
		BaseURL:    cfg.EngineBaseURL,
		Project:    cfg.EngineProject,
		Token:      cfg.EngineToken,
		Timeout:    cfg.EngineTimeout,
		MaxRetries: cfg.EngineMaxRetries,
	}, metrics, logger)
	engine := earthengine.NewCachedEngine(client, cfg.VegetationCacheSize, metrics)

	surveyor := pipeline.NewSurveyor(engine, logger, metrics, cfg.SurveyTimeout)

	// Result publication is feature-flagged via EVENTS_ENABLED.
	var events httpadapter.ResultPublisher
	var writer *kafkaadapter.Writer
	if cfg.EventsEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		events = writer
		metrics.EventsEnabled.Set(1)
		logger.Info("result publication enabled", "topic", cfg.KafkaResultTopic)
	} else {
		logger.Info("result publication disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, surveyor, engine, events, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
