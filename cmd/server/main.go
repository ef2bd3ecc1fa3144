package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vytor/bunpo/internal/api"
	"github.com/vytor/bunpo/internal/app"
	"github.com/vytor/bunpo/internal/config"
	"github.com/vytor/bunpo/internal/logger"
	"github.com/vytor/bunpo/internal/scheduler"
)

func main() {
	cfg := config.Load()

	// Initialize logger
	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithColors(true),
	)
	logger.SetDefault(log)

	log.Info("===========================================")
	log.Info("Bunpo Server Starting")
	log.Info("===========================================")
	if err := cfg.Validate(); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
	log.Info("configuration loaded")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("db_path=%s", cfg.DBPath)
	log.Debug("log_level=%s", cfg.LogLevel)
	log.Debug("remote_driver=%s", cfg.RemoteDriver)
	log.Debug("remote_timeout=%s remote_retries=%d", cfg.RemoteTimeout, cfg.RemoteRetries)
	log.Debug("sync_worker_count=%d sync_queue_size=%d", cfg.SyncWorkerCount, cfg.SyncQueueSize)
	log.Debug("resync_interval=%s", cfg.ResyncInterval)
	log.Debug("session_size=%d default_daily_goal=%d", cfg.SessionSize, cfg.DefaultDailyGoal)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Error("failed to start: %v", err)
		os.Exit(1)
	}
	application.Start(ctx)

	// Warm the cache so the first request does not pay for the remote load.
	if _, err := application.Grammar.Load(ctx, false); err != nil {
		log.Warn("initial load failed: %v", err)
	}

	sched := scheduler.New(scheduler.Config{ResyncInterval: cfg.ResyncInterval}, application.Grammar, application.Queue)
	if err := sched.Start(); err != nil {
		log.Error("failed to start scheduler: %v", err)
		os.Exit(1)
	}

	srv := &api.Server{
		DB:             application.DB.DB,
		Remote:         application.Remote,
		Grammar:        application.Grammar,
		QuickLearn:     application.QuickLearn,
		Exercises:      application.Exercises,
		Imports:        application.Imports,
		Notices:        application.Notices,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
	}

	// Configure HTTP server
	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error: %v", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Info("received signal %v, initiating graceful shutdown", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Debug("stopping scheduler")
	sched.Stop()

	log.Debug("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error: %v", err)
	}

	log.Debug("flushing remote writes")
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error: %v", err)
	}

	log.Info("===========================================")
	log.Info("Bunpo Server Stopped")
	log.Info("===========================================")
}
