package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"tourbook/cmd/consumers/jobs"
	"tourbook/internal/app"
	"tourbook/internal/config"
	"tourbook/internal/consumers"
	"tourbook/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	slog.Info("Starting consumers service...")

	// Override NATS client ID for consumers
	cfg.NATS.ClientID = "tourbook-consumers"

	a, err := app.New(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize application", "error", err)
	}

	var consumerService *consumers.ConsumerService
	if a.NATS != nil && a.Search != nil {
		consumerService = consumers.NewConsumerService(a.NATS, a.Search)
		if err := consumerService.Start(); err != nil {
			logger.Fatal("Failed to start consumers", "error", err)
		}
	} else {
		slog.Warn("Audit indexing disabled, NATS or Elasticsearch is not available")
	}

	var locker jobs.Locker
	if a.Redis != nil {
		locker = a.Redis
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduled := []*jobs.Job{
		jobs.NewHoldExpirationJob(a.Services.Expiry, locker, cfg.Booking.SweepInterval),
		jobs.NewTourCompletionJob(a.Services.Expiry, locker, cfg.Booking.CompletionInterval),
	}
	for _, job := range scheduled {
		job.Start(ctx)
	}

	slog.Info("Consumers service started successfully")
	<-ctx.Done()

	slog.Info("Shutting down consumers service...")

	for _, job := range scheduled {
		job.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if consumerService != nil {
		if err := consumerService.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error during shutdown", "error", err)
		}
	}
	if err := a.Close(); err != nil {
		slog.Error("Error closing connections", "error", err)
	}

	slog.Info("Consumers service stopped")
}
