package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"worklog/internal/backend"
	"worklog/internal/cli"
	"worklog/internal/event"
	apphttp "worklog/internal/http"
	"worklog/internal/journal"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	location, err := cfg.Location()
	if err != nil {
		logger.Error("Failed to resolve UTC offset", "error", err, "offset", cfg.UTCOffset)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger.Logger)
	result, err := factory.CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", "error", err)
			}
		}()
	}

	// Publish mutations to the archive worker when a broker is configured.
	var publisher journal.UpdatePublisher
	if cfg.AMQPURL != "" {
		eventClient, err := event.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without update publishing", "error", err)
		} else {
			defer eventClient.Close()
			publisher = eventClient
			logger.Info("AMQP client initialized, updates will fan out to the archive worker")
		}
	} else {
		logger.Info("AMQP disabled, archive stays in sync via worker reconcile only")
	}

	srv := apphttp.NewServer(":"+cfg.Port, result.Backend, result.Backend, result.Backend, location, apphttp.Options{
		Publisher: publisher,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting worklog server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"utc_offset", cfg.UTCOffset)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
