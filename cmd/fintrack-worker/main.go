package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig((*config.Config).ValidateWorker)
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting fintrack-worker")

	m := metrics.New()
	var metricsSrv *http.Server
	if cfg.WorkerMetricsAddr != "" {
		metricsSrv = metrics.NewServer(cfg.WorkerMetricsAddr, m)
	}
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Metrics server shutdown failed", log.FieldError, err)
			}
		}
	})

	if metricsSrv != nil {
		go func() {
			logger.Info("Serving worker metrics", "addr", cfg.WorkerMetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", log.FieldError, err)
			}
		}()
	}

	mirror, err := backend.NewFactory(logger).CreateMirror(ctx, backend.MirrorFromAppConfig(cfg))
	if err != nil {
		logger.Error("Failed to initialize mirror", log.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	amqpClient.WithLogger(logger)
	defer amqpClient.Close()

	w := worker.NewMirrorWorker(mirror.Mirror, m, logger)
	logger.Info("Consuming transaction events",
		"queue", cfg.AMQPQueue,
		"remote_mirror", mirror.Remote)

	if err := amqpClient.ConsumeWithRetry(ctx, w.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
