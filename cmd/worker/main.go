package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"claimease/internal/app"
	"claimease/internal/config"
	"claimease/internal/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.Setup(cfg.Log)

	if cfg.Queue.Backend == "memory" {
		return fmt.Errorf("queue backend %q cannot be shared with a separate worker; run the server with embedded workers", cfg.Queue.Backend)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	defer a.Close()

	reaper := a.Reaper()
	if err := reaper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reaper: %w", err)
	}
	defer reaper.Stop()

	logger.Info("worker: started", "queue", cfg.Queue.Backend, "concurrency", cfg.Queue.Concurrency)
	a.WorkerPool().Start(ctx)
	logger.Info("worker: stopped")
	return nil
}
