package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/backend"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig((*config.Config).Validate)
	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	store, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize store", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	m := metrics.New()

	// Event publishing is optional; the API works without a broker.
	var (
		publisher  services.EventPublisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, transaction events disabled", log.FieldError, err)
		} else {
			publisher = amqpClient.WithLogger(logger)
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP_URL not set, transaction events disabled")
	}

	txns := services.NewTransactionService(store.Store, store.Store, services.Options{
		ListLimit:      cfg.ListLimit,
		ReportCacheTTL: cfg.ReportCacheTTL,
		Publisher:      publisher,
		Metrics:        m,
		Logger:         logger,
	})
	contacts := services.NewContactService(store.Store, m, logger)

	caches := cache.NewManager(logger)
	caches.Register(txns.ReportCache())
	caches.StartCleanup(time.Minute)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Verifier: auth.NewVerifier(auth.VerifierConfig{
			Secret:     cfg.AuthJWTSecret,
			Issuer:     cfg.AuthJWTIssuer,
			Audience:   cfg.AuthJWTAudience,
			UserPrefix: cfg.AuthUserPrefix,
		}),
		Ready:   store.Store.Ping,
		Metrics: m,
		Logger:  logger,
	}, txns, contacts)

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := store.Cleanup(); err != nil {
			logger.Error("Store close error", log.FieldError, err)
		}
	})

	logger.Info("Starting fintrack server", "port", cfg.Port, log.FieldBackend, cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
