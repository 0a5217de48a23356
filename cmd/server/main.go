package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rostersync-service/internal/infrastructure/config"
	"rostersync-service/internal/infrastructure/persistence"
	"rostersync-service/internal/interface/httpapi"
	rosterRepo "rostersync-service/internal/interface/repository"
	"rostersync-service/internal/usecase"
	"rostersync-service/pkg/logger"
	"rostersync-service/pkg/metrics"

	"github.com/robfig/cron/v3"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Exit(1)
	}

	// Create logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("Starting Roster Sync Service", "version", cfg.AppVersion)

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up PostgreSQL connection
	log.Info("Connecting to PostgreSQL")
	gormDB, err := persistence.NewPostgresDB(cfg.PostgresURI, rosterRepo.Models()...)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", "error", err)
	}

	// Set up metrics and repositories
	m := metrics.NewMetrics("rostersync")
	repo := rosterRepo.NewGormRosterRepository(gormDB, log)

	// Set up use cases
	syncer := usecase.NewRosterSyncer(repo, log, m, cfg.SyncMaxRetries)
	statsCollector := usecase.NewStatsCollector(repo, log, m)

	// Refresh storage gauges on a schedule
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.StatsCronSpec, func() {
		statsCollector.Refresh(ctx)
	}); err != nil {
		log.Fatal("Invalid stats cron spec", "spec", cfg.StatsCronSpec, "error", err)
	}
	scheduler.Start()
	statsCollector.Refresh(ctx)

	// Set up HTTP server
	router := httpapi.NewRouter(syncer, repo, log)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig.String())

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	<-scheduler.Stop().Done()
	cancel()

	log.Info("Roster Sync Service stopped")
}
