package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"claimease/internal/app"
	"claimease/internal/config"
	"claimease/internal/handler"
	"claimease/internal/logging"
	"claimease/internal/router"
	"claimease/internal/service"
)

// @title						ClaimEase API
// @version					1.0
// @description				Prior-authorization form extraction and filling.
// @BasePath					/api/v1
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	defer a.Close()

	// Initialize services
	authSvc := service.NewAuthService(cfg.Auth)
	jobSvc := a.JobService()

	// Initialize handlers
	jobH := handler.NewJobHandler(jobSvc)
	healthH := handler.NewHealthHandler(a.Store)

	r := router.Setup(cfg, authSvc, jobH, healthH, logger)

	// The in-memory queue is only reachable from this process.
	var wg sync.WaitGroup
	if cfg.Queue.EmbeddedWorkers || cfg.Queue.Backend == "memory" {
		pool := a.WorkerPool()
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Start(ctx)
		}()

		reaper := a.Reaper()
		if err := reaper.Start(ctx); err != nil {
			return fmt.Errorf("failed to start reaper: %w", err)
		}
		defer reaper.Stop()
		logger.Info("server: embedded workers started", "concurrency", cfg.Queue.Concurrency)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server: listening", "addr", cfg.Server.Port, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	stop()
	wg.Wait()
	return nil
}
